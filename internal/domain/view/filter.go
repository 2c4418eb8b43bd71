// Package view builds the per-role predicates behind the "pending for me" and
// "history for me" lists. A Filter can be evaluated against a receipt in
// memory or translated into a store query by a repository.
package view

import "github.com/garyjia/receipt-approval/internal/domain/entity"

// Filter is a conjunction of optional constraints. The zero value matches every receipt.
type Filter struct {
	// WrittenByID restricts to receipts authored by the user
	WrittenByID *int64
	// SectionID restricts to receipts of one section
	SectionID *int64
	// Statuses restricts to receipts whose status is in the set
	Statuses []entity.Status
	// ActedByID restricts to receipts whose audit trail contains the user
	ActedByID *int64
	// None makes the filter match nothing
	None bool
}

// Options tunes how history is computed
type Options struct {
	// StrictHistory limits DGM and GM history to receipts they personally acted on
	StrictHistory bool
}

// Match evaluates the filter against a receipt
func (f Filter) Match(r *entity.Receipt) bool {
	if f.None {
		return false
	}
	if f.WrittenByID != nil && r.WrittenByID != *f.WrittenByID {
		return false
	}
	if f.SectionID != nil && r.SectionID != *f.SectionID {
		return false
	}
	if f.Statuses != nil && !containsStatus(f.Statuses, r.Status) {
		return false
	}
	if f.ActedByID != nil && !r.ActedBy(*f.ActedByID) {
		return false
	}
	return true
}

// WithStatus narrows the filter to a single status. A status outside the
// filter's own set yields a filter that matches nothing.
func (f Filter) WithStatus(status entity.Status) Filter {
	if f.Statuses != nil && !containsStatus(f.Statuses, status) {
		return Filter{None: true}
	}
	f.Statuses = []entity.Status{status}
	return f
}

// PendingFor returns the receipts awaiting attention from the identity
func PendingFor(id entity.Identity) Filter {
	switch id.Role {
	case entity.RoleHR:
		return Filter{WrittenByID: int64Ptr(id.UserID)}
	case entity.RoleManager:
		if id.SectionID == nil {
			return Filter{None: true}
		}
		return Filter{
			Statuses:  []entity.Status{entity.StatusPendingManagerApproval},
			SectionID: int64Ptr(*id.SectionID),
		}
	case entity.RoleDGM:
		return Filter{Statuses: []entity.Status{entity.StatusApprovedByManagerPendingDGM}}
	case entity.RoleGM:
		return Filter{Statuses: []entity.Status{entity.StatusApprovedByDGMPendingGM}}
	case entity.RoleSecurity:
		return Filter{Statuses: []entity.Status{entity.StatusApprovedFinal}}
	default:
		return Filter{None: true}
	}
}

// HistoryFor returns the receipts the identity has been involved with.
// DGM and GM history is status-based unless opts.StrictHistory is set.
func HistoryFor(id entity.Identity, opts Options) Filter {
	switch id.Role {
	case entity.RoleHR:
		return Filter{WrittenByID: int64Ptr(id.UserID)}
	case entity.RoleManager:
		if id.SectionID == nil {
			return Filter{None: true}
		}
		return Filter{SectionID: int64Ptr(*id.SectionID)}
	case entity.RoleDGM:
		f := Filter{Statuses: []entity.Status{
			entity.StatusRejectedByDGM,
			entity.StatusApprovedByDGMPendingGM,
			entity.StatusApprovedFinal,
		}}
		if opts.StrictHistory {
			f.ActedByID = int64Ptr(id.UserID)
		}
		return f
	case entity.RoleGM:
		f := Filter{Statuses: []entity.Status{
			entity.StatusRejectedByGM,
			entity.StatusApprovedFinal,
		}}
		if opts.StrictHistory {
			f.ActedByID = int64Ptr(id.UserID)
		}
		return f
	case entity.RoleSecurity:
		return Filter{}
	default:
		return Filter{None: true}
	}
}

// Visible reports whether the identity may see the receipt at all
func Visible(id entity.Identity, r *entity.Receipt, opts Options) bool {
	return PendingFor(id).Match(r) || HistoryFor(id, opts).Match(r)
}

func containsStatus(set []entity.Status, s entity.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func int64Ptr(v int64) *int64 { return &v }
