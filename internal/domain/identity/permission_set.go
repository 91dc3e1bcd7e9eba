package identity

import (
	"github.com/google/uuid"
)

// PermissionSet is the resolved set of actions a caller holds in one organization.
// The zero value is the empty set and denies everything.
type PermissionSet struct {
	orgID    uuid.UUID
	callerID uuid.UUID
	role     Role
	actions  map[Action]struct{}
}

// NewPermissionSet builds a set directly. Mostly useful for tests and tooling.
func NewPermissionSet(orgID, callerID uuid.UUID, role Role, actions ...Action) *PermissionSet {
	set := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return &PermissionSet{orgID: orgID, callerID: callerID, role: role, actions: set}
}

// IsEmpty reports whether the set grants nothing.
func (p *PermissionSet) IsEmpty() bool {
	return p == nil || len(p.actions) == 0
}

// OrgID returns the organization the set was resolved for.
func (p *PermissionSet) OrgID() uuid.UUID {
	if p == nil {
		return uuid.Nil
	}
	return p.orgID
}

// CallerID returns the caller the set was resolved for.
func (p *PermissionSet) CallerID() uuid.UUID {
	if p == nil {
		return uuid.Nil
	}
	return p.callerID
}

// Role returns the resolved role, or "" for an empty set.
func (p *PermissionSet) Role() Role {
	if p == nil {
		return ""
	}
	return p.role
}

// Has reports whether action is granted.
func (p *PermissionSet) Has(action Action) bool {
	if p.IsEmpty() {
		return false
	}
	_, ok := p.actions[action]
	return ok
}

// HasAll reports whether every action is granted. An empty set never passes.
func (p *PermissionSet) HasAll(actions ...Action) bool {
	if p.IsEmpty() {
		return false
	}
	for _, a := range actions {
		if !p.Has(a) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one action is granted.
func (p *PermissionSet) HasAny(actions ...Action) bool {
	for _, a := range actions {
		if p.Has(a) {
			return true
		}
	}
	return false
}

// CanActOn reports whether action may be performed on a record owned by recordOrgID.
// Cross-organization access is denied regardless of the granted actions.
func (p *PermissionSet) CanActOn(action Action, recordOrgID uuid.UUID) bool {
	if p.IsEmpty() || recordOrgID == uuid.Nil || recordOrgID != p.orgID {
		return false
	}
	return p.Has(action)
}

// Actions returns the granted actions in canonical order.
func (p *PermissionSet) Actions() []Action {
	if p.IsEmpty() {
		return nil
	}
	out := make([]Action, 0, len(p.actions))
	for _, a := range allActions {
		if _, ok := p.actions[a]; ok {
			out = append(out, a)
		}
	}
	return out
}
