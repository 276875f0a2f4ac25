// Package gen assembles and writes DAO implementations for repository
// interfaces found by the loader.
package gen

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for run-level failures.
var (
	// ErrMissingConfig indicates a configuration error.
	ErrMissingConfig = errors.New("daogen: invalid configuration")
	// ErrLoadFailed indicates that the input packages could not be loaded.
	ErrLoadFailed = errors.New("daogen: load failed")
	// ErrGenerationFailed indicates a rendering or write failure.
	ErrGenerationFailed = errors.New("daogen: code generation failed")
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("daogen: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("daogen: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// LoadError is returned when the packages given to the generator fail to
// load or type-check.
type LoadError struct {
	Patterns []string
	Cause    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("daogen: load error")
	if len(e.Patterns) > 0 {
		b.WriteString(" for ")
		b.WriteString(strings.Join(e.Patterns, " "))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for LoadError.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailed
}

// NewLoadError creates a new LoadError.
func NewLoadError(patterns []string, cause error) *LoadError {
	return &LoadError{Patterns: patterns, Cause: cause}
}

// GenerationError represents a failure while rendering or writing a file.
type GenerationError struct {
	Repository string
	File       string
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	var b strings.Builder
	b.WriteString("daogen: generation error")
	if e.Repository != "" {
		b.WriteString(" for ")
		b.WriteString(e.Repository)
	}
	if e.File != "" {
		b.WriteString(" (file: ")
		b.WriteString(e.File)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(repo, file, message string, cause error) *GenerationError {
	return &GenerationError{
		Repository: repo,
		File:       file,
		Message:    message,
		Cause:      cause,
	}
}

// InternalError reports a broken generator invariant. It is raised with
// panic and recovered at the top of Generator.Generate, where it aborts
// the run.
type InternalError struct {
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return "daogen: internal error: " + e.Message
}

// Is reports whether the target matches ErrGenerationFailed.
func (e *InternalError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// internalf panics with an *InternalError.
func internalf(format string, args ...any) {
	panic(&InternalError{Message: fmt.Sprintf(format, args...)})
}

// recoverInternal converts a recovered *InternalError into *errp. Other
// panics are re-raised.
func recoverInternal(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InternalError); ok {
		*errp = ie
		return
	}
	panic(r)
}

// IsConfigError reports whether the error is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsLoadError reports whether the error is a LoadError.
func IsLoadError(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}

// IsGenerationError reports whether the error is a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}

// IsInternalError reports whether the error is an InternalError.
func IsInternalError(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
