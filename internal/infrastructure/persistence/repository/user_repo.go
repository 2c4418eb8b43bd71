package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/infrastructure/persistence/sqlite"
)

const userColumns = `id, username, email, password_hash, role, section_id, created_at, updated_at`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, section_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		u.Username,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		nullInt64(u.SectionID),
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user",
			zap.String("username", u.Username),
			zap.String("role", string(u.Role)),
			zap.Error(err))
		return mapError("create user", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperr.Infrastructure("get last insert id", err)
	}

	u.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, "username", username)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, "email", email)
}

// getOne looks a user up by a unique column; column is never caller input
func (r *UserRepository) getOne(ctx context.Context, column string, value interface{}) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`

	u, err := scanUser(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user with %s %v", column, value)
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("by", column), zap.Error(err))
		return nil, mapError("get user", err)
	}
	return u, nil
}

// List returns all users ordered by username
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
}

// ListByRole returns users holding the role, optionally restricted to one section
func (r *UserRepository) ListByRole(ctx context.Context, role entity.Role, sectionID *int64) ([]*entity.User, error) {
	if sectionID != nil {
		return r.query(ctx,
			`SELECT `+userColumns+` FROM users WHERE role = ? AND section_id = ? ORDER BY username ASC`,
			string(role), *sectionID)
	}
	return r.query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY username ASC`,
		string(role))
}

// Update writes the editable user fields
func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	query := `
		UPDATE users
		SET email = ?, password_hash = ?, role = ?, section_id = ?, updated_at = ?
		WHERE id = ?
	`

	u.UpdatedAt = time.Now().UTC()

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		nullInt64(u.SectionID),
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update user", zap.Int64("id", u.ID), zap.Error(err))
		return mapError("update user", err)
	}

	return requireAffected(result, "user", u.ID)
}

// Delete removes a user
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete user", zap.Int64("id", id), zap.Error(err))
		return mapError("delete user", err)
	}
	return requireAffected(result, "user", id)
}

// ExistsBySection reports whether any user is assigned to the section
func (r *UserRepository) ExistsBySection(ctx context.Context, sectionID int64) (bool, error) {
	var found bool
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE section_id = ?)`, sectionID).Scan(&found)
	if err != nil {
		return false, mapError("check user by section", err)
	}
	return found, nil
}

func (r *UserRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, mapError("list users", err)
	}
	defer rows.Close()

	users := make([]*entity.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate users", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var role string
	var sectionID sql.NullInt64

	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&sectionID,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	u.Role = entity.Role(role)
	u.SectionID = int64PtrFrom(sectionID)
	return &u, nil
}

func requireAffected(result sql.Result, what string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Infrastructure("rows affected", err)
	}
	if affected == 0 {
		return apperr.NotFound("%s %d", what, id)
	}
	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
