package identity

import (
	"fmt"
)

// RolePermissionTable maps every role to the fixed set of actions it grants.
// Roles do not inherit from each other; each entry enumerates its actions explicitly.
// A table is immutable once constructed and safe for concurrent use.
type RolePermissionTable struct {
	grants map[Role]map[Action]struct{}
}

// NewRolePermissionTable builds a table from an explicit role→actions mapping.
// Every role must be present (possibly with no actions) and every action must be known.
func NewRolePermissionTable(grants map[Role][]Action) (*RolePermissionTable, error) {
	table := &RolePermissionTable{grants: make(map[Role]map[Action]struct{}, len(grants))}
	for role, actions := range grants {
		if !role.IsValid() {
			return nil, fmt.Errorf("permission table: unknown role %q", role)
		}
		set := make(map[Action]struct{}, len(actions))
		for _, action := range actions {
			if !action.IsValid() {
				return nil, fmt.Errorf("permission table: role %q grants unknown action %q", role, action)
			}
			set[action] = struct{}{}
		}
		table.grants[role] = set
	}
	for _, role := range AllRoles() {
		if _, ok := table.grants[role]; !ok {
			return nil, fmt.Errorf("permission table: role %q has no entry", role)
		}
	}
	return table, nil
}

// DefaultRolePermissionTable returns the built-in role table.
func DefaultRolePermissionTable() *RolePermissionTable {
	table, err := NewRolePermissionTable(map[Role][]Action{
		RoleOwner: AllActions(),
		RoleAdmin: {
			ActionView, ActionCreate, ActionEdit, ActionDelete,
			ActionExportData, ActionImportData, ActionBulkOperations,
			ActionManageMembers, ActionManageProjects, ActionManageCertifications, ActionManageFinance,
			ActionViewAnalytics,
		},
		RoleManager: {
			ActionView, ActionCreate, ActionEdit,
			ActionExportData, ActionImportData, ActionBulkOperations,
			ActionManageProjects, ActionManageCertifications,
			ActionViewAnalytics,
		},
		RoleMember: {ActionView, ActionCreate, ActionEdit, ActionExportData},
		RoleViewer: {ActionView},
	})
	if err != nil {
		panic(err)
	}
	return table
}

// Grants reports whether role grants action.
func (t *RolePermissionTable) Grants(role Role, action Action) bool {
	_, ok := t.grants[role][action]
	return ok
}

// Actions returns the actions granted to role in canonical order.
func (t *RolePermissionTable) Actions(role Role) []Action {
	set := t.grants[role]
	out := make([]Action, 0, len(set))
	for _, action := range allActions {
		if _, ok := set[action]; ok {
			out = append(out, action)
		}
	}
	return out
}

// PermissionSetFor resolves a membership into a permission set.
// A nil or non-active membership yields an empty set.
func (t *RolePermissionTable) PermissionSetFor(m *Membership) *PermissionSet {
	if m == nil || !m.IsActive() {
		return &PermissionSet{}
	}
	granted := make(map[Action]struct{}, len(t.grants[m.Role]))
	for action := range t.grants[m.Role] {
		granted[action] = struct{}{}
	}
	return &PermissionSet{
		orgID:    m.OrgID,
		callerID: m.UserID,
		role:     m.Role,
		actions:  granted,
	}
}
