package bulk

import (
	"fmt"

	"github.com/erp/bulkops/internal/domain/shared"
)

// Row-level error codes
const (
	CodeRequired         = "VALIDATION_REQUIRED"
	CodeInvalidType      = "VALIDATION_TYPE"
	CodeLength           = "VALIDATION_LENGTH"
	CodePattern          = "VALIDATION_PATTERN"
	CodeEnum             = "VALIDATION_ENUM"
	CodeRange            = "VALIDATION_RANGE"
	CodeCrossField       = "VALIDATION_CROSS_FIELD"
	CodeDuplicateInStore = "DUPLICATE_IN_STORE"
	CodeDuplicateInFile  = "DUPLICATE_IN_FILE"
	CodeCommitFailed     = "COMMIT_FAILED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeMalformedRequest = "MALFORMED_REQUEST"
)

// Sentinel errors
var (
	ErrMalformedRequest = shared.NewDomainError("MALFORMED_REQUEST", "Malformed request")
	ErrUnknownEntity    = shared.NewDomainError("UNKNOWN_ENTITY", "Unknown entity")
	ErrUnknownFormat    = shared.NewDomainError("UNKNOWN_FORMAT", "Unknown format")

	// ErrConstraintViolation is returned by stores when a unique constraint rejects a write.
	ErrConstraintViolation = shared.NewDomainError("CONSTRAINT_VIOLATION", "Unique constraint violated")
	// ErrStoreUnavailable is returned by stores when the backing database cannot be reached.
	ErrStoreUnavailable = shared.NewDomainError("STORE_UNAVAILABLE", "Record store unavailable")
)

// RowError is a per-record error. Row 0 denotes a job-level error.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d, field %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}
