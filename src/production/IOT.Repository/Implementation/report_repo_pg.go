package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostgresReportRepository keeps input report history in the input_reports
// table when no MongoDB is configured.
type PostgresReportRepository struct {
	db *sql.DB
}

func NewPostgresReportRepository(db *sql.DB) *PostgresReportRepository {
	return &PostgresReportRepository{db: db}
}

func (r *PostgresReportRepository) Insert(ctx context.Context, report *panel_models.InputReport) error {
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	values, err := json.Marshal(report.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal values: %w", err)
	}
	control, err := json.Marshal(report.Control)
	if err != nil {
		return fmt.Errorf("failed to marshal control: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO input_reports (report_id, project_id, project, source, input_values, control, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, report.ID.Hex(), report.ProjectID, report.Project, report.Source, values, control, report.ReceivedAt)
	return err
}

func (r *PostgresReportRepository) Latest(ctx context.Context, projectID int64, limit int) ([]panel_models.InputReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT report_id, project_id, project, source, input_values, control, received_at
		FROM input_reports
		WHERE project_id = $1
		ORDER BY received_at DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]panel_models.InputReport, 0)
	for rows.Next() {
		var rep panel_models.InputReport
		var id string
		var values, control []byte
		if err := rows.Scan(&id, &rep.ProjectID, &rep.Project, &rep.Source, &values, &control, &rep.ReceivedAt); err != nil {
			return nil, err
		}
		if rep.ID, err = primitive.ObjectIDFromHex(id); err != nil {
			return nil, fmt.Errorf("report id %q: %w", id, err)
		}
		if err := json.Unmarshal(values, &rep.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal values: %w", err)
		}
		if err := json.Unmarshal(control, &rep.Control); err != nil {
			return nil, fmt.Errorf("failed to unmarshal control: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

func (r *PostgresReportRepository) Count(ctx context.Context, projectID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM input_reports WHERE project_id = $1`, projectID).Scan(&n)
	return n, err
}
