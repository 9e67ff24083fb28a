package implementation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

const projectColumns = `id, name, description, properties, version, created_at, updated_at`

type PostgresProjectRepository struct {
	db *sql.DB
}

func NewPostgresProjectRepository(db *sql.DB) *PostgresProjectRepository {
	return &PostgresProjectRepository{db: db}
}

func scanProject(row rowScanner) (*panel_models.Project, error) {
	var p panel_models.Project
	var doc []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &doc, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := properties.ParseDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("project %d: %w", p.ID, err)
	}
	p.Properties = parsed
	return &p, nil
}

func (r *PostgresProjectRepository) Create(ctx context.Context, project *panel_models.Project) (*panel_models.Project, error) {
	doc, err := project.Properties.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	project.Version = 1

	query := `
		INSERT INTO projects (name, description, properties, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err = r.db.QueryRowContext(ctx, query, project.Name, project.Description, doc,
		project.Version, project.CreatedAt, project.UpdatedAt).Scan(&project.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("project %q: %w", project.Name, interfaces.ErrDuplicate)
		}
		return nil, err
	}
	return project, nil
}

func (r *PostgresProjectRepository) GetByID(ctx context.Context, id int64) (*panel_models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return p, nil
}

func (r *PostgresProjectRepository) GetByName(ctx context.Context, name string) (*panel_models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE name = $1`
	p, err := scanProject(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return p, nil
}

func (r *PostgresProjectRepository) List(ctx context.Context) ([]*panel_models.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]*panel_models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *PostgresProjectRepository) UpdateDetails(ctx context.Context, project *panel_models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		project.Name, project.Description, project.UpdatedAt, project.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("project %q: %w", project.Name, interfaces.ErrDuplicate)
		}
		return err
	}
	return expectRows(result)
}

// UpdateProperties is a compare-and-set on the version column. When no row
// matches, a second lookup tells a missing project from a stale version.
func (r *PostgresProjectRepository) UpdateProperties(ctx context.Context, id int64, doc properties.Document, expected int64) (int64, error) {
	raw, err := doc.Marshal()
	if err != nil {
		return 0, fmt.Errorf("failed to marshal properties: %w", err)
	}

	var version int64
	err = r.db.QueryRowContext(ctx, `
		UPDATE projects
		SET properties = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING version
	`, raw, id, expected).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, interfaces.ErrNotFound
	}
	return 0, interfaces.ErrVersionConflict
}

func (r *PostgresProjectRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result)
}
