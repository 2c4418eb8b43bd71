package entity

import (
	"encoding/json"
	"time"
)

// Receipt is a document submitted by HR and routed through the approval chain
type Receipt struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url"`
	SectionID   int64     `json:"section_id"`
	WrittenByID int64     `json:"written_by_id"`
	CreatedAt   time.Time `json:"created_at"`

	Status              Status    `json:"status"`
	CurrentApproverRole Role      `json:"current_approver_role,omitempty"`
	LastActionByRole    Role      `json:"last_action_by_role,omitempty"`
	RejectionReason     string    `json:"rejection_reason,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`

	Actions []ReceiptAction `json:"actions"`
}

// ReceiptAction is one entry of the append-only audit trail
type ReceiptAction struct {
	ID            int64     `json:"id"`
	ReceiptID     int64     `json:"receipt_id"`
	StageRole     Role      `json:"stage_role"`
	ActorID       int64     `json:"actor_id"`
	ActorUsername string    `json:"actor_username"`
	Action        string    `json:"action"`
	FromStatus    Status    `json:"from_status"`
	ToStatus      Status    `json:"to_status"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ActionBy returns the audit entry recorded for the given approval stage, or nil
func (r *Receipt) ActionBy(stage Role) *ReceiptAction {
	for i := range r.Actions {
		if r.Actions[i].StageRole == stage {
			return &r.Actions[i]
		}
	}
	return nil
}

// StageActions are the per-stage audit entries derived from the trail
type StageActions struct {
	ManagerActionBy *ReceiptAction `json:"manager_action_by"`
	DGMActionBy     *ReceiptAction `json:"dgm_action_by"`
	GMActionBy      *ReceiptAction `json:"gm_action_by"`
}

// StageActions collects ActionBy for every approval stage
func (r *Receipt) StageActions() StageActions {
	return StageActions{
		ManagerActionBy: r.ActionBy(RoleManager),
		DGMActionBy:     r.ActionBy(RoleDGM),
		GMActionBy:      r.ActionBy(RoleGM),
	}
}

// MarshalJSON emits the receipt with its stage actions inlined
func (r Receipt) MarshalJSON() ([]byte, error) {
	type plain Receipt
	return json.Marshal(struct {
		plain
		StageActions
	}{plain(r), r.StageActions()})
}

// ActedBy reports whether the user appears anywhere in the audit trail
func (r *Receipt) ActedBy(userID int64) bool {
	for _, a := range r.Actions {
		if a.ActorID == userID {
			return true
		}
	}
	return false
}
