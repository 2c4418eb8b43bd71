package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/receipt-approval/internal/domain/entity"
)

// Payload keys written by FromDirective
const (
	KeyTitle       = "title"
	KeySectionID   = "section_id"
	KeyWrittenByID = "written_by_id"
	KeyNewStatus   = "new_status"
	KeyActingRole  = "acting_role"
	KeyActorName   = "actor_name"
	KeyReason      = "reason"
)

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	ReceiptID     int64                  `json:"receipt_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, receiptID int64, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		ReceiptID:     receiptID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// FromDirective wraps a notification directive in an event
func FromDirective(eventType Type, d entity.NotificationDirective) *Event {
	return NewEvent(eventType, d.ReceiptID, map[string]interface{}{
		KeyTitle:       d.Title,
		KeySectionID:   d.SectionID,
		KeyWrittenByID: d.WrittenByID,
		KeyNewStatus:   d.NewStatus.String(),
		KeyActingRole:  d.ActingRole.String(),
		KeyActorName:   d.ActorName,
		KeyReason:      d.Reason,
	})
}

// Directive rebuilds the notification directive carried by the event
func (e *Event) Directive() entity.NotificationDirective {
	return entity.NotificationDirective{
		ReceiptID:   e.ReceiptID,
		Title:       e.GetPayloadString(KeyTitle),
		SectionID:   e.GetPayloadInt(KeySectionID),
		WrittenByID: e.GetPayloadInt(KeyWrittenByID),
		NewStatus:   entity.Status(e.GetPayloadString(KeyNewStatus)),
		ActingRole:  entity.Role(e.GetPayloadString(KeyActingRole)),
		ActorName:   e.GetPayloadString(KeyActorName),
		Reason:      e.GetPayloadString(KeyReason),
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
