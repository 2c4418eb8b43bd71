package event

// Type identifies the type of domain event
type Type string

const (
	TypeReceiptCreated  Type = "receipt.created"
	TypeReceiptApproved Type = "receipt.approved"
	TypeReceiptRejected Type = "receipt.rejected"
	TypeReceiptDeleted  Type = "receipt.deleted"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeReceiptCreated,
		TypeReceiptApproved,
		TypeReceiptRejected,
		TypeReceiptDeleted:
		return true
	default:
		return false
	}
}
