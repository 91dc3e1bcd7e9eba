package identity

import (
	"fmt"
	"strings"

	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
)

// AuthorizationError is returned when a caller lacks a required action,
// or when the target record belongs to another organization.
type AuthorizationError struct {
	CallerID uuid.UUID
	OrgID    uuid.UUID
	Actions  []Action
	Reason   string
}

func (e *AuthorizationError) Error() string {
	names := make([]string, len(e.Actions))
	for i, a := range e.Actions {
		names[i] = string(a)
	}
	msg := fmt.Sprintf("caller %s is not authorized for [%s] in organization %s",
		e.CallerID, strings.Join(names, ", "), e.OrgID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, shared.ErrForbidden) hold for authorization failures.
func (e *AuthorizationError) Is(target error) bool {
	return target == shared.ErrForbidden
}
