package implementation

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
)

type PostgresRoleRepository struct {
	db *sql.DB
}

func NewPostgresRoleRepository(db *sql.DB) *PostgresRoleRepository {
	return &PostgresRoleRepository{db: db}
}

// Create inserts the role keyed by name, refreshing the description of an
// existing one.
func (r *PostgresRoleRepository) Create(ctx context.Context, role *auth_models.Role) (*auth_models.Role, error) {
	if role.RoleID == "" {
		role.RoleID = uuid.New().String()
	}
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now

	query := `
		INSERT INTO roles (role_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name)
		DO UPDATE SET description = EXCLUDED.description, updated_at = EXCLUDED.updated_at
		RETURNING role_id, created_at
	`

	err := r.db.QueryRowContext(ctx, query, role.RoleID, role.Name,
		role.Description, role.CreatedAt, role.UpdatedAt).Scan(&role.RoleID, &role.CreatedAt)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// FindByName finds a role by name
func (r *PostgresRoleRepository) FindByName(ctx context.Context, name string) (*auth_models.Role, error) {
	query := `SELECT role_id, name, description, created_at, updated_at FROM roles WHERE name = $1`

	var role auth_models.Role
	err := r.db.QueryRowContext(ctx, query, name).Scan(&role.RoleID, &role.Name,
		&role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &role, nil
}

// FindAll retrieves all roles
func (r *PostgresRoleRepository) FindAll(ctx context.Context) ([]*auth_models.Role, error) {
	query := `SELECT role_id, name, description, created_at, updated_at FROM roles ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*auth_models.Role
	for rows.Next() {
		var role auth_models.Role
		if err := rows.Scan(&role.RoleID, &role.Name,
			&role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}
