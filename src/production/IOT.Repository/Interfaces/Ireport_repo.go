package interfaces

import (
	"context"
	"io"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
)

// ReportRepository keeps the history of accepted input reports.
type ReportRepository interface {
	Insert(ctx context.Context, report *panel_models.InputReport) error
	Latest(ctx context.Context, projectID int64, limit int) ([]panel_models.InputReport, error)
	Count(ctx context.Context, projectID int64) (int64, error)
}

// PhotoStore persists device photos and returns the public URL.
type PhotoStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
