package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/view"
	"github.com/garyjia/receipt-approval/internal/infrastructure/persistence/sqlite"
)

const receiptColumns = `id, title, description, image_url, section_id, written_by_id,
	status, current_approver_role, last_action_by_role, rejection_reason,
	created_at, updated_at`

const actionColumns = `id, receipt_id, stage_role, actor_id, actor_username, action,
	from_status, to_status, reason, created_at`

// ReceiptRepository implements port.ReceiptRepository
type ReceiptRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *sql.DB, logger *zap.Logger) port.ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new receipt
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entity.Receipt) error {
	query := `
		INSERT INTO receipts (
			title, description, image_url, section_id, written_by_id,
			status, current_approver_role, last_action_by_role, rejection_reason,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = now
	}
	if receipt.UpdatedAt.IsZero() {
		receipt.UpdatedAt = receipt.CreatedAt
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		receipt.Title,
		receipt.Description,
		receipt.ImageURL,
		receipt.SectionID,
		receipt.WrittenByID,
		string(receipt.Status),
		nullString(string(receipt.CurrentApproverRole)),
		nullString(string(receipt.LastActionByRole)),
		nullString(receipt.RejectionReason),
		receipt.CreatedAt,
		receipt.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create receipt",
			zap.String("title", receipt.Title),
			zap.Int64("section_id", receipt.SectionID),
			zap.Error(err))
		return mapError("create receipt", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperr.Infrastructure("get last insert id", err)
	}

	receipt.ID = id
	return nil
}

// GetByID retrieves a receipt together with its audit trail
func (r *ReceiptRepository) GetByID(ctx context.Context, id int64) (*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = ?`

	receipt, err := scanReceipt(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("receipt %d", id)
	}
	if err != nil {
		r.logger.Error("Failed to get receipt", zap.Int64("id", id), zap.Error(err))
		return nil, mapError("get receipt", err)
	}

	if err := r.attachActions(ctx, []*entity.Receipt{receipt}); err != nil {
		return nil, err
	}
	return receipt, nil
}

// UpdateConditional writes the patch only when the stored status still equals expected
func (r *ReceiptRepository) UpdateConditional(ctx context.Context, id int64, expected entity.Status, patch port.ReceiptPatch) error {
	query := `
		UPDATE receipts
		SET status = ?, current_approver_role = ?, last_action_by_role = ?,
			rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		string(patch.Status),
		nullString(string(patch.CurrentApproverRole)),
		nullString(string(patch.LastActionByRole)),
		nullString(patch.RejectionReason),
		updatedAt,
		id,
		string(expected),
	)
	if err != nil {
		r.logger.Error("Failed to update receipt",
			zap.Int64("id", id),
			zap.String("expected_status", string(expected)),
			zap.Error(err))
		return mapError("update receipt", err)
	}

	return r.checkAffected(ctx, result, id, expected)
}

// AppendAction adds an audit entry
func (r *ReceiptRepository) AppendAction(ctx context.Context, a *entity.ReceiptAction) error {
	query := `
		INSERT INTO receipt_actions (
			receipt_id, stage_role, actor_id, actor_username, action,
			from_status, to_status, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		a.ReceiptID,
		string(a.StageRole),
		a.ActorID,
		a.ActorUsername,
		a.Action,
		string(a.FromStatus),
		string(a.ToStatus),
		nullString(a.Reason),
		a.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append receipt action",
			zap.Int64("receipt_id", a.ReceiptID),
			zap.String("stage_role", string(a.StageRole)),
			zap.Error(err))
		return mapError("append receipt action", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperr.Infrastructure("get last insert id", err)
	}

	a.ID = id
	return nil
}

// DeleteConditional removes the receipt only when the stored status still equals expected.
// The audit trail goes with it.
func (r *ReceiptRepository) DeleteConditional(ctx context.Context, id int64, expected entity.Status) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM receipts WHERE id = ? AND status = ?`, id, string(expected))
	if err != nil {
		r.logger.Error("Failed to delete receipt", zap.Int64("id", id), zap.Error(err))
		return mapError("delete receipt", err)
	}

	return r.checkAffected(ctx, result, id, expected)
}

// List returns receipts matching the filter, newest first
func (r *ReceiptRepository) List(ctx context.Context, f view.Filter, opts port.ListOptions) ([]*entity.Receipt, error) {
	if f.None {
		return []*entity.Receipt{}, nil
	}

	where, args := buildWhere(f, opts)
	query := `SELECT ` + receiptColumns + ` FROM receipts`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	limit := -1
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	offset := 0
	if opts.Offset > 0 {
		offset = opts.Offset
	}
	args = append(args, limit, offset)

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list receipts", zap.Error(err))
		return nil, mapError("list receipts", err)
	}
	defer rows.Close()

	receipts := make([]*entity.Receipt, 0)
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, mapError("scan receipt", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate receipts", err)
	}

	if err := r.attachActions(ctx, receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

// ExistsBySection reports whether any receipt belongs to the section
func (r *ReceiptRepository) ExistsBySection(ctx context.Context, sectionID int64) (bool, error) {
	return r.exists(ctx, "receipt by section",
		`SELECT EXISTS(SELECT 1 FROM receipts WHERE section_id = ?)`, sectionID)
}

// ExistsByUser reports whether the user wrote or acted on any receipt
func (r *ReceiptRepository) ExistsByUser(ctx context.Context, userID int64) (bool, error) {
	return r.exists(ctx, "receipt by user",
		`SELECT EXISTS(SELECT 1 FROM receipts WHERE written_by_id = ?)
			OR EXISTS(SELECT 1 FROM receipt_actions WHERE actor_id = ?)`, userID, userID)
}

func (r *ReceiptRepository) exists(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	var found bool
	if err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, mapError("check "+op, err)
	}
	return found, nil
}

// checkAffected separates "receipt gone" from "status moved on" when a conditional write matched nothing
func (r *ReceiptRepository) checkAffected(ctx context.Context, result sql.Result, id int64, expected entity.Status) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Infrastructure("rows affected", err)
	}
	if affected > 0 {
		return nil
	}

	found, err := r.exists(ctx, "receipt", `SELECT EXISTS(SELECT 1 FROM receipts WHERE id = ?)`, id)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("receipt %d", id)
	}

	r.logger.Info("Conditional write lost the race",
		zap.Int64("id", id),
		zap.String("expected_status", string(expected)))
	return apperr.Conflict("receipt %d is no longer %s", id, expected)
}

// attachActions loads the audit trails of all receipts in one query
func (r *ReceiptRepository) attachActions(ctx context.Context, receipts []*entity.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}

	byID := make(map[int64]*entity.Receipt, len(receipts))
	args := make([]interface{}, 0, len(receipts))
	for _, receipt := range receipts {
		receipt.Actions = []entity.ReceiptAction{}
		byID[receipt.ID] = receipt
		args = append(args, receipt.ID)
	}

	query := `SELECT ` + actionColumns + ` FROM receipt_actions
		WHERE receipt_id IN (` + placeholders(len(args)) + `)
		ORDER BY id ASC`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to load receipt actions", zap.Int("receipts", len(receipts)), zap.Error(err))
		return mapError("load receipt actions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a entity.ReceiptAction
		var stageRole, fromStatus, toStatus string
		var reason sql.NullString

		if err := rows.Scan(
			&a.ID, &a.ReceiptID, &stageRole, &a.ActorID, &a.ActorUsername, &a.Action,
			&fromStatus, &toStatus, &reason, &a.CreatedAt,
		); err != nil {
			return mapError("scan receipt action", err)
		}

		a.StageRole = entity.Role(stageRole)
		a.FromStatus = entity.Status(fromStatus)
		a.ToStatus = entity.Status(toStatus)
		a.Reason = reason.String

		if receipt, ok := byID[a.ReceiptID]; ok {
			receipt.Actions = append(receipt.Actions, a)
		}
	}
	return mapError("iterate receipt actions", rows.Err())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var receipt entity.Receipt
	var status string
	var approver, lastAction, reason sql.NullString

	err := row.Scan(
		&receipt.ID,
		&receipt.Title,
		&receipt.Description,
		&receipt.ImageURL,
		&receipt.SectionID,
		&receipt.WrittenByID,
		&status,
		&approver,
		&lastAction,
		&reason,
		&receipt.CreatedAt,
		&receipt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	receipt.Status = entity.Status(status)
	receipt.CurrentApproverRole = entity.Role(approver.String)
	receipt.LastActionByRole = entity.Role(lastAction.String)
	receipt.RejectionReason = reason.String
	return &receipt, nil
}

// buildWhere translates a view filter into a conjunction of SQL predicates
func buildWhere(f view.Filter, opts port.ListOptions) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.WrittenByID != nil {
		clauses = append(clauses, "written_by_id = ?")
		args = append(args, *f.WrittenByID)
	}
	if f.SectionID != nil {
		clauses = append(clauses, "section_id = ?")
		args = append(args, *f.SectionID)
	}
	if f.Statuses != nil {
		if len(f.Statuses) == 0 {
			clauses = append(clauses, "1 = 0")
		} else {
			clauses = append(clauses, fmt.Sprintf("status IN (%s)", placeholders(len(f.Statuses))))
			for _, s := range f.Statuses {
				args = append(args, string(s))
			}
		}
	}
	if f.ActedByID != nil {
		clauses = append(clauses,
			"EXISTS (SELECT 1 FROM receipt_actions ra WHERE ra.receipt_id = receipts.id AND ra.actor_id = ?)")
		args = append(args, *f.ActedByID)
	}
	if opts.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*opts.Status))
	}

	return strings.Join(clauses, " AND "), args
}

var _ port.ReceiptRepository = (*ReceiptRepository)(nil)
