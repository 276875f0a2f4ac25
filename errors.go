package daogen

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors returned by generated data-access code.
var (
	// ErrNoRows is returned when a single-value query matched no row.
	ErrNoRows = errors.New("daogen: no rows in result")

	// ErrTooManyRows is returned when a single-value query matched more than one row.
	ErrTooManyRows = errors.New("daogen: more than one row in result")

	// ErrNullColumn is returned when a NULL value was read into a non-null destination.
	ErrNullColumn = errors.New("daogen: column was null")

	// ErrDataAccess matches every error wrapped at a statement boundary.
	ErrDataAccess = errors.New("daogen: data access failed")

	// ErrNotGenerated is returned by method bodies that could not be generated.
	ErrNotGenerated = errors.New("daogen: method was not generated")
)

// NoRowsError represents a single-value query that returned no rows.
type NoRowsError struct {
	Op string // Method that ran the query, e.g. "UserStore.Name".
}

// Error returns the error string.
func (e *NoRowsError) Error() string {
	return fmt.Sprintf("daogen: %s: no rows in result", e.Op)
}

// Is reports whether the target error matches NoRowsError.
// This allows errors.Is(noRowsErr, ErrNoRows) to return true.
func (e *NoRowsError) Is(err error) bool {
	return err == ErrNoRows
}

// NewNoRowsError returns a new NoRowsError for the given operation.
func NewNoRowsError(op string) *NoRowsError {
	return &NoRowsError{Op: op}
}

// IsNoRows returns true if the error is a NoRowsError.
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	var e *NoRowsError
	return errors.As(err, &e) || errors.Is(err, ErrNoRows)
}

// TooManyRowsError represents a single-value query that returned an extra row.
type TooManyRowsError struct {
	Op string
}

// Error returns the error string.
func (e *TooManyRowsError) Error() string {
	return fmt.Sprintf("daogen: %s: more than one row in result", e.Op)
}

// Is reports whether the target error matches TooManyRowsError.
func (e *TooManyRowsError) Is(err error) bool {
	return err == ErrTooManyRows
}

// NewTooManyRowsError returns a new TooManyRowsError for the given operation.
func NewTooManyRowsError(op string) *TooManyRowsError {
	return &TooManyRowsError{Op: op}
}

// IsTooManyRows returns true if the error is a TooManyRowsError.
func IsTooManyRows(err error) bool {
	if err == nil {
		return false
	}
	var e *TooManyRowsError
	return errors.As(err, &e) || errors.Is(err, ErrTooManyRows)
}

// NullColumnError represents a NULL value read into a non-null destination.
type NullColumnError struct {
	Op     string
	Column string // Column name, or the 1-based index when the name is unknown.
}

// Error returns the error string.
func (e *NullColumnError) Error() string {
	return fmt.Sprintf("daogen: %s: column %s was null", e.Op, e.Column)
}

// Is reports whether the target error matches NullColumnError.
func (e *NullColumnError) Is(err error) bool {
	return err == ErrNullColumn
}

// NewNullColumnError returns a new NullColumnError.
func NewNullColumnError(op, column string) *NullColumnError {
	return &NullColumnError{Op: op, Column: column}
}

// IsNullColumn returns true if the error is a NullColumnError.
func IsNullColumn(err error) bool {
	if err == nil {
		return false
	}
	var e *NullColumnError
	return errors.As(err, &e) || errors.Is(err, ErrNullColumn)
}

// DataAccessError wraps a driver error raised at a statement boundary.
type DataAccessError struct {
	Op    string // Method that ran the statement.
	Query string // Native SQL text, if known.
	Err   error  // Underlying driver error.
}

// Error returns the error string.
func (e *DataAccessError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("daogen: %s: %v (query: %s)", e.Op, e.Err, e.Query)
	}
	return fmt.Sprintf("daogen: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches DataAccessError.
func (e *DataAccessError) Is(err error) bool {
	return err == ErrDataAccess
}

// Wrap wraps err into a DataAccessError. It returns nil for a nil error and
// leaves errors that are already classified by this package untouched.
func Wrap(op, query string, err error) error {
	if err == nil {
		return nil
	}
	var (
		dae *DataAccessError
		nre *NoRowsError
		tmr *TooManyRowsError
		nce *NullColumnError
	)
	if errors.As(err, &dae) || errors.As(err, &nre) || errors.As(err, &tmr) || errors.As(err, &nce) {
		return err
	}
	return &DataAccessError{Op: op, Query: query, Err: err}
}

// IsDataAccess returns true if the error is a DataAccessError.
func IsDataAccess(err error) bool {
	if err == nil {
		return false
	}
	var e *DataAccessError
	return errors.As(err, &e)
}

// EnumError is returned when a column holds a name that is not a declared
// constant of the destination enum type.
type EnumError struct {
	Op    string
	Type  string
	Value string
}

// Error returns the error string.
func (e *EnumError) Error() string {
	return fmt.Sprintf("daogen: %s: %q is not a valid %s", e.Op, e.Value, e.Type)
}

// NewEnumError returns a new EnumError.
func NewEnumError(op, typ, value string) *EnumError {
	return &EnumError{Op: op, Type: typ, Value: value}
}

// GenerationError is returned (or raised) by method bodies the generator
// replaced with a stub. It carries the diagnostics that prevented generation.
type GenerationError struct {
	Op          string
	Diagnostics []string
}

// Error returns the diagnostics formatted one per line.
func (e *GenerationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "daogen: %s was not generated:", e.Op)
	for _, d := range e.Diagnostics {
		sb.WriteString("\n  ")
		sb.WriteString(d)
	}
	return sb.String()
}

// Is reports whether the target error matches GenerationError.
func (e *GenerationError) Is(err error) bool {
	return err == ErrNotGenerated
}

// NewGenerationError returns a new GenerationError.
func NewGenerationError(op string, diagnostics ...string) *GenerationError {
	return &GenerationError{Op: op, Diagnostics: diagnostics}
}

// Must panics with err if it is not nil. Generated methods without an error
// result use it to raise failures.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}
