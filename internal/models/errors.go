package models

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed field on a Sample, Annotation or
// import row.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateIDError reports sample ids that collided with existing rows
// during a batch insert. The batch is never partially applied.
type DuplicateIDError struct {
	IDs []string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate sample ids: %s", strings.Join(e.IDs, ", "))
}

// DuplicateAnnotationError reports an attempt to write a second annotation
// for an already-annotated sample.
type DuplicateAnnotationError struct {
	SampleID string
}

func (e *DuplicateAnnotationError) Error() string {
	return fmt.Sprintf("sample %s is already annotated", e.SampleID)
}

// NotFoundError reports a lookup miss.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// StaleStateError reports that the session cursor pointed at a sample which
// was annotated out from under it.
type StaleStateError struct {
	SampleID string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("sample %s was annotated by a concurrent write, cursor is stale", e.SampleID)
}
