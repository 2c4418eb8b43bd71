package entity

import (
	"slices"
	"strings"
)

// Role is the organizational role a user acts under
type Role string

const (
	RoleHR       Role = "HR"
	RoleManager  Role = "MANAGER"
	RoleDGM      Role = "DGM"
	RoleGM       Role = "GM"
	RoleSecurity Role = "SECURITY"
)

// AllRoles lists every role in routing order
var AllRoles = []Role{RoleHR, RoleManager, RoleDGM, RoleGM, RoleSecurity}

// String returns the persisted representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants
func (r Role) IsValid() bool {
	return slices.Contains(AllRoles, r)
}

// DisplayName is the label used in notification subjects
func (r Role) DisplayName() string {
	if r == RoleManager {
		return "Manager"
	}
	return string(r)
}

// ParseRole converts user input into a Role, ignoring case and surrounding spaces
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// Identity is the authenticated actor performing an operation
type Identity struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	SectionID *int64 `json:"section_id,omitempty"`
}

// InSection reports whether the identity is attached to the given section
func (i Identity) InSection(sectionID int64) bool {
	return i.SectionID != nil && *i.SectionID == sectionID
}
