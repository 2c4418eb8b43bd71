package workflow

import "strings"

// Action is what an approver does to a receipt
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsValid checks if the action is one of the defined constants
func (a Action) IsValid() bool {
	return a == ActionApprove || a == ActionReject
}

// ParseAction converts user input into an Action, ignoring case
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	return a, a.IsValid()
}
