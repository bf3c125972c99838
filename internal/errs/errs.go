// Package errs defines the error kinds surfaced by the SPOCK GOS core,
// matching spec.md §7 one-for-one. Every kind is a distinct type so callers
// can use errors.As to recover structured fields (line, declaration,
// expected/actual tags) instead of parsing error strings.
package errs

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed line, duplicate declaration, missing
// @result, or an unterminated macro.
type ParseError struct {
	Message string
	Line    int
	Column  int // 0 if unavailable
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// CycleError reports a dependency graph cycle, naming one participant.
type CycleError struct {
	Declaration string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected involving %s", e.Declaration)
}

// UnknownReferenceError reports a $-prefixed operand that does not resolve.
type UnknownReferenceError struct {
	Name string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown reference: %s", e.Name)
}

// UnknownVerbError reports a verb name that resolved against no registry.
type UnknownVerbError struct {
	Verb string
}

func (e *UnknownVerbError) Error() string {
	return fmt.Sprintf("unknown verb: %s", e.Verb)
}

// TypeError reports a runtime tag mismatch at a specific operand position.
type TypeError struct {
	Expected []string
	Actual   string
	Verb     string
	Position int // 1 = subject, 2 = object
}

func (e *TypeError) Error() string {
	pos := "subject"
	if e.Position == 2 {
		pos = "object"
	}
	return fmt.Sprintf("type error in %s: expected %s for %s, got %s", e.Verb, strings.Join(e.Expected, " or "), pos, e.Actual)
}

// TheoryNotFoundError reports a theory name with no matching descriptor.
type TheoryNotFoundError struct {
	Name string
}

func (e *TheoryNotFoundError) Error() string {
	return fmt.Sprintf("theory not found: %s", e.Name)
}

// MergeConflictError reports a conflicting declaration under the fail
// merge strategy.
type MergeConflictError struct {
	Declaration  string
	TargetVersion string
	SourceVersion string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on %s between target version %s and source version %s", e.Declaration, e.TargetVersion, e.SourceVersion)
}

// ExecutionError is the catch-all for planner failures, recursion
// overflow, and step-cap overflow.
type ExecutionError struct {
	Message   string
	Statement string
	Line      int
}

func (e *ExecutionError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("execution error at line %d (%s): %s", e.Line, e.Statement, e.Message)
	}
	return fmt.Sprintf("execution error: %s", e.Message)
}

// NumericError reports division by zero or incompatible units.
type NumericError struct {
	Message string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("numeric error: %s", e.Message)
}
