package workflow

import "github.com/garyjia/receipt-approval/internal/domain/entity"

// Route is one stage of the approval chain
type Route struct {
	Role      entity.Role
	From      entity.Status
	OnApprove entity.Status
	NextRole  entity.Role
	OnReject  entity.Status
}

// Routes is the fixed approval chain, in order
var Routes = []Route{
	{
		Role:      entity.RoleManager,
		From:      entity.StatusPendingManagerApproval,
		OnApprove: entity.StatusApprovedByManagerPendingDGM,
		NextRole:  entity.RoleDGM,
		OnReject:  entity.StatusRejectedByManager,
	},
	{
		Role:      entity.RoleDGM,
		From:      entity.StatusApprovedByManagerPendingDGM,
		OnApprove: entity.StatusApprovedByDGMPendingGM,
		NextRole:  entity.RoleGM,
		OnReject:  entity.StatusRejectedByDGM,
	},
	{
		Role:      entity.RoleGM,
		From:      entity.StatusApprovedByDGMPendingGM,
		OnApprove: entity.StatusApprovedFinal,
		OnReject:  entity.StatusRejectedByGM,
	},
}

// RouteFor returns the stage the role acts at. HR and SECURITY have none.
func RouteFor(role entity.Role) (Route, bool) {
	for _, r := range Routes {
		if r.Role == role {
			return r, true
		}
	}
	return Route{}, false
}

// ApproverFor returns the role expected to act in the given status, or "" for terminal statuses
func ApproverFor(status entity.Status) entity.Role {
	for _, r := range Routes {
		if r.From == status {
			return r.Role
		}
	}
	return ""
}

// NewChainBuilder returns a builder configured with every route
func NewChainBuilder() StateMachineBuilder {
	b := NewBuilder()
	for _, r := range Routes {
		b.Configure(r.From).
			Permit(ActionApprove, r.OnApprove).
			Permit(ActionReject, r.OnReject)
	}
	return b
}

func nextApprover(to entity.Status) entity.Role {
	if to.IsTerminal() {
		return ""
	}
	return ApproverFor(to)
}
