package port

import (
	"context"
	"time"

	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/view"
)

// ReceiptPatch carries the mutable receipt fields written by a transition
type ReceiptPatch struct {
	Status              entity.Status
	CurrentApproverRole entity.Role
	LastActionByRole    entity.Role
	RejectionReason     string
	UpdatedAt           time.Time
}

// PatchFrom copies the mutable fields of a receipt into a patch
func PatchFrom(r *entity.Receipt) ReceiptPatch {
	return ReceiptPatch{
		Status:              r.Status,
		CurrentApproverRole: r.CurrentApproverRole,
		LastActionByRole:    r.LastActionByRole,
		RejectionReason:     r.RejectionReason,
		UpdatedAt:           r.UpdatedAt,
	}
}

// ListOptions narrows and pages a receipt listing. Results are newest first.
type ListOptions struct {
	Status *entity.Status
	Limit  int
	Offset int
}

// ReceiptRepository defines persistence operations for Receipt and its audit trail
type ReceiptRepository interface {
	// Create inserts the receipt and sets its ID
	Create(ctx context.Context, r *entity.Receipt) error

	// GetByID loads the receipt with its audit trail; apperr.ErrNotFound if absent
	GetByID(ctx context.Context, id int64) (*entity.Receipt, error)

	// UpdateConditional applies the patch only if the stored status still equals expected.
	// apperr.ErrConflict if no row matched, apperr.ErrNotFound if the receipt is gone.
	UpdateConditional(ctx context.Context, id int64, expected entity.Status, patch ReceiptPatch) error

	// AppendAction adds an audit entry and sets its ID
	AppendAction(ctx context.Context, a *entity.ReceiptAction) error

	// DeleteConditional removes the receipt only if its status still equals expected
	DeleteConditional(ctx context.Context, id int64, expected entity.Status) error

	// List returns receipts matching the filter
	List(ctx context.Context, f view.Filter, opts ListOptions) ([]*entity.Receipt, error)

	// ExistsBySection reports whether any receipt references the section
	ExistsBySection(ctx context.Context, sectionID int64) (bool, error)

	// ExistsByUser reports whether the user wrote or acted on any receipt
	ExistsByUser(ctx context.Context, userID int64) (bool, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	// Create inserts the user; apperr.ErrConflict on duplicate username or email
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)

	// ListByRole returns users with the role; a non-nil sectionID also filters by section
	ListByRole(ctx context.Context, role entity.Role, sectionID *int64) ([]*entity.User, error)

	// Update writes email, role, section and password hash; apperr.ErrConflict on duplicate email
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id int64) error
	ExistsBySection(ctx context.Context, sectionID int64) (bool, error)
}

// SectionRepository defines persistence operations for Section
type SectionRepository interface {
	// Create inserts the section; apperr.ErrConflict on duplicate name
	Create(ctx context.Context, s *entity.Section) error
	GetByID(ctx context.Context, id int64) (*entity.Section, error)

	// List returns sections ordered by name
	List(ctx context.Context) ([]*entity.Section, error)
	Update(ctx context.Context, s *entity.Section) error
	Delete(ctx context.Context, id int64) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
