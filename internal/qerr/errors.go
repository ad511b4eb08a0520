// Package qerr defines the translation error taxonomy.
//
// Every failure a translation can report is a *Error carrying one of three
// codes. Errors are local to a single translation: they are never cached and
// never affect concurrently running translations.
package qerr

import (
	"errors"
	"fmt"
)

// Code categorizes translation errors.
type Code string

const (
	// CodeUnsupportedPattern indicates a query shape with no translation rule.
	// The caller may fall back to client-side evaluation.
	CodeUnsupportedPattern Code = "UNSUPPORTED_PATTERN"

	// CodeModelResolution indicates a shape, property, navigation or
	// relationship that is not in the model. Always fatal to the translation.
	CodeModelResolution Code = "MODEL_RESOLUTION"

	// CodeDialectCapability indicates a required SQL feature the configured
	// dialect version does not provide.
	CodeDialectCapability Code = "DIALECT_CAPABILITY"
)

// Error is a translation failure with structured diagnostics.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Operator is the offending operator or expression kind
	// (UNSUPPORTED_PATTERN).
	Operator string

	// Path locates the offending subtree, e.g. "Project.Fields[1].Source".
	Path string

	// Name is the unresolved model element (MODEL_RESOLUTION).
	Name string

	// Capability and MinVersion name the missing feature
	// (DIALECT_CAPABILITY).
	Capability string
	MinVersion string

	// Err is an optional underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Code == CodeDialectCapability && e.MinVersion != "":
		return fmt.Sprintf("%s: %s (requires %s, available from %s)", e.Code, e.Message, e.Capability, e.MinVersion)
	case e.Code == CodeDialectCapability:
		return fmt.Sprintf("%s: %s (requires %s)", e.Code, e.Message, e.Capability)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Unsupported creates an UNSUPPORTED_PATTERN error for operator at path.
func Unsupported(operator, path, format string, args ...any) *Error {
	return &Error{
		Code:     CodeUnsupportedPattern,
		Message:  fmt.Sprintf(format, args...),
		Operator: operator,
		Path:     path,
	}
}

// Unresolved creates a MODEL_RESOLUTION error for the named element.
func Unresolved(name, format string, args ...any) *Error {
	return &Error{
		Code:    CodeModelResolution,
		Message: fmt.Sprintf(format, args...),
		Name:    name,
	}
}

// Capability creates a DIALECT_CAPABILITY error.
func Capability(capability, minVersion, format string, args ...any) *Error {
	return &Error{
		Code:       CodeDialectCapability,
		Message:    fmt.Sprintf(format, args...),
		Capability: capability,
		MinVersion: minVersion,
	}
}

// At returns a copy of e located at path, unless e already has one.
func At(err error, path string) error {
	var e *Error
	if !errors.As(err, &e) || e.Path != "" {
		return err
	}
	cp := *e
	cp.Path = path
	return &cp
}

// CodeOf returns the code of err, or "" if err is not a *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUnsupportedPattern returns true if err is an UNSUPPORTED_PATTERN error.
func IsUnsupportedPattern(err error) bool {
	return CodeOf(err) == CodeUnsupportedPattern
}

// IsModelResolution returns true if err is a MODEL_RESOLUTION error.
func IsModelResolution(err error) bool {
	return CodeOf(err) == CodeModelResolution
}

// IsDialectCapability returns true if err is a DIALECT_CAPABILITY error.
func IsDialectCapability(err error) bool {
	return CodeOf(err) == CodeDialectCapability
}
