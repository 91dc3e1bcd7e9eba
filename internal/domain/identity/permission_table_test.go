package identity

import (
	"errors"
	"testing"

	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRolePermissionTable_IsTotal(t *testing.T) {
	table := DefaultRolePermissionTable()
	for _, role := range AllRoles() {
		assert.NotEmpty(t, table.Actions(role), "role %s should grant at least one action", role)
		assert.True(t, table.Grants(role, ActionView), "role %s should be able to view", role)
	}
}

func TestDefaultRolePermissionTable_NoImplicitInheritance(t *testing.T) {
	table := DefaultRolePermissionTable()

	assert.ElementsMatch(t, AllActions(), table.Actions(RoleOwner))
	assert.False(t, table.Grants(RoleAdmin, ActionManageSettings))
	assert.False(t, table.Grants(RoleMember, ActionImportData))
	assert.True(t, table.Grants(RoleMember, ActionExportData))
	assert.Equal(t, []Action{ActionView}, table.Actions(RoleViewer))
}

func TestNewRolePermissionTable(t *testing.T) {
	full := func() map[Role][]Action {
		return map[Role][]Action{
			RoleOwner:   {ActionView},
			RoleAdmin:   {ActionView},
			RoleManager: {ActionView},
			RoleMember:  {ActionView},
			RoleViewer:  {},
		}
	}

	tests := []struct {
		name        string
		grants      func() map[Role][]Action
		errContains string
	}{
		{
			name:   "complete table",
			grants: full,
		},
		{
			name: "missing role",
			grants: func() map[Role][]Action {
				g := full()
				delete(g, RoleViewer)
				return g
			},
			errContains: `role "viewer" has no entry`,
		},
		{
			name: "unknown role",
			grants: func() map[Role][]Action {
				g := full()
				g[Role("superuser")] = []Action{ActionView}
				return g
			},
			errContains: "unknown role",
		},
		{
			name: "unknown action",
			grants: func() map[Role][]Action {
				g := full()
				g[RoleMember] = []Action{"launch_rockets"}
				return g
			},
			errContains: "unknown action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewRolePermissionTable(tt.grants())
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, table.Actions(RoleViewer))
		})
	}
}

func TestRolePermissionTable_IsNotMutatedThroughInput(t *testing.T) {
	grants := map[Role][]Action{
		RoleOwner:   {ActionView},
		RoleAdmin:   {ActionView},
		RoleManager: {ActionView},
		RoleMember:  {ActionView},
		RoleViewer:  {ActionView},
	}
	table, err := NewRolePermissionTable(grants)
	require.NoError(t, err)

	grants[RoleViewer] = append(grants[RoleViewer], ActionDelete)
	grants[RoleViewer][0] = ActionImportData

	assert.Equal(t, []Action{ActionView}, table.Actions(RoleViewer))
}

func TestPermissionSetFor(t *testing.T) {
	table := DefaultRolePermissionTable()
	orgID := uuid.New()
	userID := uuid.New()

	t.Run("nil membership is empty", func(t *testing.T) {
		set := table.PermissionSetFor(nil)
		assert.True(t, set.IsEmpty())
		assert.False(t, set.Has(ActionView))
	})

	t.Run("inactive membership is empty", func(t *testing.T) {
		m, err := NewMembership(orgID, userID, RoleOwner)
		require.NoError(t, err)
		m.Deactivate()

		set := table.PermissionSetFor(m)
		assert.True(t, set.IsEmpty())
		assert.False(t, set.HasAny(AllActions()...))
	})

	t.Run("active membership resolves role", func(t *testing.T) {
		m, err := NewMembership(orgID, userID, RoleManager)
		require.NoError(t, err)

		set := table.PermissionSetFor(m)
		assert.Equal(t, RoleManager, set.Role())
		assert.Equal(t, orgID, set.OrgID())
		assert.Equal(t, userID, set.CallerID())
		assert.True(t, set.Has(ActionImportData))
		assert.False(t, set.Has(ActionDelete))
	})
}

func TestAuthorizationError(t *testing.T) {
	err := &AuthorizationError{
		CallerID: uuid.New(),
		OrgID:    uuid.New(),
		Actions:  []Action{ActionImportData},
		Reason:   "no active membership",
	}

	assert.Contains(t, err.Error(), "import_data")
	assert.Contains(t, err.Error(), "no active membership")
	assert.True(t, errors.Is(err, shared.ErrForbidden))
	assert.False(t, errors.Is(err, shared.ErrNotFound))
}
