package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

const userColumns = `user_id, username, email, password, role, active, last_login, created_at, updated_at`

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*auth_models.User, error) {
	var user auth_models.User
	var lastLogin sql.NullTime
	if err := row.Scan(&user.UserID, &user.Username, &user.Email, &user.Password,
		&user.Role, &user.Active, &lastLogin, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return &user, nil
}

// Create user
func (r *PostgresUserRepository) Create(ctx context.Context, user *auth_models.User) (*auth_models.User, error) {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (user_id, username, email, password, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query, user.UserID, user.Username, user.Email,
		user.Password, user.Role, user.Active, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", user.Username, interfaces.ErrDuplicate)
		}
		return nil, err
	}

	return user, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, userID string) (*auth_models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*auth_models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return user, nil
}

func (r *PostgresUserRepository) List(ctx context.Context, page, pageSize int, role string) (*interfaces.PaginationResult, error) {
	offset := (page - 1) * pageSize
	var query string
	var args []interface{}

	if role != "" {
		query = `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []interface{}{role, pageSize, offset}
	} else {
		query = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = []interface{}{pageSize, offset}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*auth_models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &interfaces.PaginationResult{Items: users}
	if len(users) == pageSize {
		nextPage := page + 1
		result.NextPage = &nextPage
	}
	return result, nil
}

func (r *PostgresUserRepository) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1 AND active`, role).Scan(&n)
	return n, err
}

// Update user
func (r *PostgresUserRepository) Update(ctx context.Context, user *auth_models.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET username = $1, email = $2, password = $3, role = $4, active = $5, last_login = $6, updated_at = $7
		WHERE user_id = $8
	`

	result, err := r.db.ExecContext(ctx, query, user.Username, user.Email, user.Password,
		user.Role, user.Active, user.LastLogin, user.UpdatedAt, user.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", user.Username, interfaces.ErrDuplicate)
		}
		return err
	}
	return expectRows(result)
}

// Delete removes the user, or only deactivates it unless hardDelete is set.
func (r *PostgresUserRepository) Delete(ctx context.Context, userID string, hardDelete bool) error {
	query := `UPDATE users SET active = false, updated_at = now() WHERE user_id = $1`
	if hardDelete {
		query = `DELETE FROM users WHERE user_id = $1`
	}

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}
	return expectRows(result)
}
