package workflow

import (
	"fmt"

	"github.com/garyjia/receipt-approval/internal/domain/apperr"
)

var (
	// ErrInvalidTransition is returned when an action is not permitted from the current status
	ErrInvalidTransition = fmt.Errorf("%w: transition not permitted", apperr.ErrInvalidState)

	// ErrNotApprover is returned when the acting role has no stage in the approval chain
	ErrNotApprover = fmt.Errorf("%w: role is not an approver", apperr.ErrForbidden)

	// ErrWrongSection is returned when a manager acts on a receipt outside their section
	ErrWrongSection = fmt.Errorf("%w: receipt belongs to another section", apperr.ErrForbidden)

	// ErrUnknownAction is returned for actions other than approve and reject
	ErrUnknownAction = fmt.Errorf("%w: unknown action", apperr.ErrValidation)

	// ErrReasonRequired is returned for a blank rejection reason when reasons are mandatory
	ErrReasonRequired = fmt.Errorf("%w: rejection reason is required", apperr.ErrValidation)
)
