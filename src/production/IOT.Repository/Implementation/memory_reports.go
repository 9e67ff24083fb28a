package implementation

import (
	"context"
	"sync"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryReportRepository keeps the newest reports of each project, up to
// limit per project.
type MemoryReportRepository struct {
	mu      sync.RWMutex
	limit   int
	reports map[int64][]panel_models.InputReport // oldest first
	totals  map[int64]int64
}

func NewMemoryReportRepository(limit int) *MemoryReportRepository {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryReportRepository{
		limit:   limit,
		reports: make(map[int64][]panel_models.InputReport),
		totals:  make(map[int64]int64),
	}
}

func (m *MemoryReportRepository) Insert(ctx context.Context, report *panel_models.InputReport) error {
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.reports[report.ProjectID], *report)
	if len(list) > m.limit {
		list = list[len(list)-m.limit:]
	}
	m.reports[report.ProjectID] = list
	m.totals[report.ProjectID]++
	return nil
}

func (m *MemoryReportRepository) Latest(ctx context.Context, projectID int64, limit int) ([]panel_models.InputReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.reports[projectID]
	out := make([]panel_models.InputReport, 0, len(list))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (m *MemoryReportRepository) Count(ctx context.Context, projectID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals[projectID], nil
}
