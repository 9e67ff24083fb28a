package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

// MemoryProjectRepository stores projects in process memory. Documents are
// kept serialized so callers never share maps with the store.
type MemoryProjectRepository struct {
	mu       sync.RWMutex
	nextID   int64
	projects map[int64]*memoryProject
}

type memoryProject struct {
	project panel_models.Project
	doc     []byte
}

func NewMemoryProjectRepository() *MemoryProjectRepository {
	return &MemoryProjectRepository{projects: make(map[int64]*memoryProject)}
}

func (m *MemoryProjectRepository) Create(ctx context.Context, project *panel_models.Project) (*panel_models.Project, error) {
	doc, err := project.Properties.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.projects {
		if p.project.Name == project.Name {
			return nil, fmt.Errorf("project %q: %w", project.Name, interfaces.ErrDuplicate)
		}
	}
	m.nextID++
	now := time.Now().UTC()
	project.ID = m.nextID
	project.Version = 1
	project.CreatedAt = now
	project.UpdatedAt = now

	m.projects[project.ID] = &memoryProject{project: *project, doc: doc}
	return project, nil
}

func (m *MemoryProjectRepository) load(p *memoryProject) (*panel_models.Project, error) {
	out := p.project
	doc, err := properties.ParseDocument(p.doc)
	if err != nil {
		return nil, err
	}
	out.Properties = doc
	return &out, nil
}

func (m *MemoryProjectRepository) GetByID(ctx context.Context, id int64) (*panel_models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return m.load(p)
}

func (m *MemoryProjectRepository) GetByName(ctx context.Context, name string) (*panel_models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.projects {
		if p.project.Name == name {
			return m.load(p)
		}
	}
	return nil, interfaces.ErrNotFound
}

func (m *MemoryProjectRepository) List(ctx context.Context) ([]*panel_models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*panel_models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		loaded, err := m.load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryProjectRepository) UpdateDetails(ctx context.Context, project *panel_models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[project.ID]
	if !ok {
		return interfaces.ErrNotFound
	}
	for id, other := range m.projects {
		if id != project.ID && other.project.Name == project.Name {
			return fmt.Errorf("project %q: %w", project.Name, interfaces.ErrDuplicate)
		}
	}
	project.UpdatedAt = time.Now().UTC()
	p.project.Name = project.Name
	p.project.Description = project.Description
	p.project.UpdatedAt = project.UpdatedAt
	return nil
}

func (m *MemoryProjectRepository) UpdateProperties(ctx context.Context, id int64, doc properties.Document, expected int64) (int64, error) {
	raw, err := doc.Marshal()
	if err != nil {
		return 0, fmt.Errorf("failed to marshal properties: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return 0, interfaces.ErrNotFound
	}
	if p.project.Version != expected {
		return 0, interfaces.ErrVersionConflict
	}
	p.doc = raw
	p.project.Version++
	p.project.UpdatedAt = time.Now().UTC()
	return p.project.Version, nil
}

func (m *MemoryProjectRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[id]; !ok {
		return interfaces.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

// SetRawProperties overwrites the stored document bytes without any
// validation. Tests use it to plant corrupt documents.
func (m *MemoryProjectRepository) SetRawProperties(id int64, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	p.doc = append([]byte(nil), raw...)
	return nil
}
