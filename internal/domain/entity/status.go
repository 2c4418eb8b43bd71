package entity

// Status is the persisted receipt status. The string values are stored as-is
// and must not change.
type Status string

const (
	StatusPendingManagerApproval      Status = "PENDING_MANAGER_APPROVAL"
	StatusApprovedByManagerPendingDGM Status = "APPROVED_BY_MANAGER_PENDING_DGM"
	StatusApprovedByDGMPendingGM      Status = "APPROVED_BY_DGM_PENDING_GM"
	StatusApprovedFinal               Status = "APPROVED_FINAL"
	StatusRejectedByManager           Status = "REJECTED_BY_MANAGER"
	StatusRejectedByDGM               Status = "REJECTED_BY_DGM"
	StatusRejectedByGM                Status = "REJECTED_BY_GM"
)

// InitialStatus is assigned to every newly created receipt
const InitialStatus = StatusPendingManagerApproval

// AllStatuses lists the closed status enumeration
var AllStatuses = []Status{
	StatusPendingManagerApproval,
	StatusApprovedByManagerPendingDGM,
	StatusApprovedByDGMPendingGM,
	StatusApprovedFinal,
	StatusRejectedByManager,
	StatusRejectedByDGM,
	StatusRejectedByGM,
}

// Category groups statuses for display and reporting
type Category string

const (
	CategoryPending  Category = "PENDING"
	CategoryApproved Category = "APPROVED"
	CategoryRejected Category = "REJECTED"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the defined constants
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingManagerApproval,
		StatusApprovedByManagerPendingDGM,
		StatusApprovedByDGMPendingGM,
		StatusApprovedFinal,
		StatusRejectedByManager,
		StatusRejectedByDGM,
		StatusRejectedByGM:
		return true
	default:
		return false
	}
}

// IsTerminal returns true when no further transition is possible
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApprovedFinal, StatusRejectedByManager, StatusRejectedByDGM, StatusRejectedByGM:
		return true
	default:
		return false
	}
}

// Category classifies the status. Intermediate approvals are still pending.
func (s Status) Category() Category {
	switch s {
	case StatusApprovedFinal:
		return CategoryApproved
	case StatusRejectedByManager, StatusRejectedByDGM, StatusRejectedByGM:
		return CategoryRejected
	default:
		return CategoryPending
	}
}

// ParseStatus validates a raw status value
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.IsValid()
}
