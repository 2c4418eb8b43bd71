package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/receipt-approval/internal/domain/entity"
)

// Options tunes approval behavior
type Options struct {
	// RequireRejectionReason rejects blank reasons instead of filling in a default
	RequireRejectionReason bool
}

// Decision is the outcome of a permitted transition, computed before anything is persisted
type Decision struct {
	From         entity.Status
	To           entity.Status
	NextApprover entity.Role
	Stage        entity.Role
	Action       Action
	Reason       string
}

// Policy decides approval transitions for the fixed chain
type Policy struct {
	builder StateMachineBuilder
	opts    Options
}

// NewPolicy creates a policy over the standard approval chain
func NewPolicy(opts Options) *Policy {
	return &Policy{
		builder: NewChainBuilder(),
		opts:    opts,
	}
}

// DefaultRejectionReason is recorded when a rejecter leaves the reason blank
func DefaultRejectionReason(role entity.Role) string {
	return "Rejected by " + role.DisplayName()
}

// Decide validates that the actor may perform the action on the receipt now
// and computes the resulting status. The receipt is not modified.
func (p *Policy) Decide(r *entity.Receipt, actor entity.Identity, action Action, reason string) (Decision, error) {
	route, ok := RouteFor(actor.Role)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrNotApprover, actor.Role)
	}

	if actor.Role == entity.RoleManager && !actor.InSection(r.SectionID) {
		return Decision{}, fmt.Errorf("%w: receipt %d", ErrWrongSection, r.ID)
	}

	if r.Status != route.From || r.CurrentApproverRole != route.Role {
		return Decision{}, fmt.Errorf("%w: %s cannot act on receipt %d in status %s",
			ErrInvalidTransition, actor.Role, r.ID, r.Status)
	}

	machine := p.builder.Build(r.Status)
	if err := machine.Fire(action); err != nil {
		return Decision{}, err
	}

	d := Decision{
		From:         r.Status,
		To:           machine.State(),
		NextApprover: nextApprover(machine.State()),
		Stage:        route.Role,
		Action:       action,
	}

	if action == ActionReject {
		d.Reason = strings.TrimSpace(reason)
		if d.Reason == "" {
			if p.opts.RequireRejectionReason {
				return Decision{}, ErrReasonRequired
			}
			d.Reason = DefaultRejectionReason(actor.Role)
		}
	}

	return d, nil
}

// PermittedActions returns the actions the actor may perform on the receipt right now
func (p *Policy) PermittedActions(r *entity.Receipt, actor entity.Identity) []Action {
	route, ok := RouteFor(actor.Role)
	if !ok {
		return []Action{}
	}
	if actor.Role == entity.RoleManager && !actor.InSection(r.SectionID) {
		return []Action{}
	}
	if r.Status != route.From || r.CurrentApproverRole != route.Role {
		return []Action{}
	}
	return p.builder.Build(r.Status).PermittedActions()
}

// Apply stamps the decision onto the receipt and returns the audit entry to append
func (d Decision) Apply(r *entity.Receipt, actor entity.Identity, at time.Time) entity.ReceiptAction {
	r.Status = d.To
	r.CurrentApproverRole = d.NextApprover
	r.LastActionByRole = d.Stage
	r.UpdatedAt = at
	if d.Action == ActionReject {
		r.RejectionReason = d.Reason
	}

	entry := entity.ReceiptAction{
		ReceiptID:     r.ID,
		StageRole:     d.Stage,
		ActorID:       actor.UserID,
		ActorUsername: actor.Username,
		Action:        d.Action.String(),
		FromStatus:    d.From,
		ToStatus:      d.To,
		Reason:        d.Reason,
		CreatedAt:     at,
	}
	r.Actions = append(r.Actions, entry)
	return entry
}
