package csvimport

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/erp/bulkops/internal/domain/bulk"
)

// Input decoding errors
var (
	// ErrEmptyFile is returned when the input has no content
	ErrEmptyFile = errors.New("input file is empty")

	// ErrInvalidEncoding is returned when the input is not valid UTF-8
	ErrInvalidEncoding = errors.New("invalid file encoding: expected UTF-8")

	// ErrMissingHeader is returned when a delimited file has no header row
	ErrMissingHeader = errors.New("delimited file missing header row")

	// ErrDuplicateHeader is returned when two header columns share a name
	ErrDuplicateHeader = errors.New("delimited file has duplicate header")

	// ErrNotArray is returned when structured input is not an array of objects
	ErrNotArray = errors.New("structured input must be an array of objects")
)

// DefaultMaxErrors caps how many row errors a collection keeps.
const DefaultMaxErrors = 1000

// ErrorCollection keeps row errors up to a limit while counting all of them.
// It is not safe for concurrent use.
type ErrorCollection struct {
	errors     []bulk.RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	return &ErrorCollection{
		errors:    make([]bulk.RowError, 0),
		maxErrors: maxErrors,
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(errs ...bulk.RowError) {
	for _, err := range errs {
		ec.totalCount++
		if len(ec.errors) < ec.maxErrors {
			ec.errors = append(ec.errors, err)
		}
	}
}

// Errors returns a copy of the kept errors
func (ec *ErrorCollection) Errors() []bulk.RowError {
	return append([]bulk.RowError(nil), ec.errors...)
}

// TotalCount returns the number of errors added, including dropped ones
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// IsTruncated reports whether errors were dropped
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > len(ec.errors)
}

// TruncationWarning describes dropped errors, or "" if nothing was dropped.
func (ec *ErrorCollection) TruncationWarning() string {
	if !ec.IsTruncated() {
		return ""
	}
	return fmt.Sprintf("%d of %d errors omitted from the result", ec.totalCount-len(ec.errors), ec.totalCount)
}

// ErrorSummary counts kept errors by code
func (ec *ErrorCollection) ErrorSummary() map[string]int {
	summary := make(map[string]int)
	for _, err := range ec.errors {
		summary[err.Code]++
	}
	return summary
}

// String renders a short per-code summary
func (ec *ErrorCollection) String() string {
	if ec.totalCount == 0 {
		return "no errors"
	}
	summary := ec.ErrorSummary()
	codes := make([]string, 0, len(summary))
	for code := range summary {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = fmt.Sprintf("%s=%d", code, summary[code])
	}
	return fmt.Sprintf("%d errors (%s)", ec.totalCount, strings.Join(parts, ", "))
}
