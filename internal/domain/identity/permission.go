package identity

import (
	"fmt"
	"strings"
)

// Action is a fine-grained operation a role may be granted.
// The set is closed: adding an action is a design change, not configuration.
type Action string

const (
	ActionView                 Action = "view"
	ActionCreate               Action = "create"
	ActionEdit                 Action = "edit"
	ActionDelete               Action = "delete"
	ActionExportData           Action = "export_data"
	ActionImportData           Action = "import_data"
	ActionBulkOperations       Action = "bulk_operations"
	ActionManageMembers        Action = "manage_members"
	ActionManageProjects       Action = "manage_projects"
	ActionManageCertifications Action = "manage_certifications"
	ActionManageFinance        Action = "manage_finance"
	ActionManageSettings       Action = "manage_settings"
	ActionViewAnalytics        Action = "view_analytics"
)

var allActions = []Action{
	ActionView,
	ActionCreate,
	ActionEdit,
	ActionDelete,
	ActionExportData,
	ActionImportData,
	ActionBulkOperations,
	ActionManageMembers,
	ActionManageProjects,
	ActionManageCertifications,
	ActionManageFinance,
	ActionManageSettings,
	ActionViewAnalytics,
}

// AllActions returns a copy of the closed action set.
func AllActions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

// IsValid reports whether a is part of the closed action set.
func (a Action) IsValid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

func (a Action) String() string {
	return string(a)
}

// ParseAction parses an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("unknown permission action %q", s)
	}
	return a, nil
}
