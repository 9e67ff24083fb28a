package interfaces

import (
	"context"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
)

type ProjectRepository interface {
	// Create assigns ID and Version. A taken name yields ErrDuplicate.
	Create(ctx context.Context, project *panel_models.Project) (*panel_models.Project, error)

	GetByID(ctx context.Context, id int64) (*panel_models.Project, error)
	GetByName(ctx context.Context, name string) (*panel_models.Project, error)
	List(ctx context.Context) ([]*panel_models.Project, error)

	// UpdateDetails changes name and description only.
	UpdateDetails(ctx context.Context, project *panel_models.Project) error

	// UpdateProperties stores doc if the project is still at version
	// expected and returns the new version. A concurrent write in between
	// yields ErrVersionConflict.
	UpdateProperties(ctx context.Context, id int64, doc properties.Document, expected int64) (int64, error)

	Delete(ctx context.Context, id int64) error
}
