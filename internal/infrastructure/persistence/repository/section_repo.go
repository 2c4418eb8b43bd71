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

// SectionRepository implements port.SectionRepository
type SectionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSectionRepository creates a new section repository
func NewSectionRepository(db *sql.DB, logger *zap.Logger) port.SectionRepository {
	return &SectionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new section
func (r *SectionRepository) Create(ctx context.Context, s *entity.Section) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO sections (name, created_at) VALUES (?, ?)`, s.Name, s.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create section", zap.String("name", s.Name), zap.Error(err))
		return mapError("create section", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperr.Infrastructure("get last insert id", err)
	}

	s.ID = id
	return nil
}

// GetByID retrieves a section by ID
func (r *SectionRepository) GetByID(ctx context.Context, id int64) (*entity.Section, error) {
	var s entity.Section
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, created_at FROM sections WHERE id = ?`, id).Scan(&s.ID, &s.Name, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("section %d", id)
	}
	if err != nil {
		r.logger.Error("Failed to get section", zap.Int64("id", id), zap.Error(err))
		return nil, mapError("get section", err)
	}
	return &s, nil
}

// List returns all sections ordered by name
func (r *SectionRepository) List(ctx context.Context) ([]*entity.Section, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx,
		`SELECT id, name, created_at FROM sections ORDER BY name ASC`)
	if err != nil {
		r.logger.Error("Failed to list sections", zap.Error(err))
		return nil, mapError("list sections", err)
	}
	defer rows.Close()

	sections := make([]*entity.Section, 0)
	for rows.Next() {
		var s entity.Section
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, mapError("scan section", err)
		}
		sections = append(sections, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate sections", err)
	}
	return sections, nil
}

// Update renames a section
func (r *SectionRepository) Update(ctx context.Context, s *entity.Section) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`UPDATE sections SET name = ? WHERE id = ?`, s.Name, s.ID)
	if err != nil {
		r.logger.Error("Failed to update section", zap.Int64("id", s.ID), zap.Error(err))
		return mapError("update section", err)
	}
	return requireAffected(result, "section", s.ID)
}

// Delete removes a section; still-referenced sections fail with a conflict
func (r *SectionRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete section", zap.Int64("id", id), zap.Error(err))
		return mapError("delete section", err)
	}
	return requireAffected(result, "section", id)
}

var _ port.SectionRepository = (*SectionRepository)(nil)
