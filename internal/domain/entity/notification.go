package entity

// NotificationDirective describes who should hear about a receipt change.
// It is produced by a successful transition or creation and consumed by the
// notification service after the change is committed.
type NotificationDirective struct {
	ReceiptID   int64  `json:"receipt_id"`
	Title       string `json:"title"`
	SectionID   int64  `json:"section_id"`
	WrittenByID int64  `json:"written_by_id"`
	NewStatus   Status `json:"new_status"`
	ActingRole  Role   `json:"acting_role"`
	ActorName   string `json:"actor_name"`
	Reason      string `json:"reason,omitempty"`
}
