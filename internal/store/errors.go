package store

import (
	"errors"
	"fmt"
)

// Error represents a failure detected while validating or executing a
// store operation.
//
// Store errors include:
//   - Not found: a named object, membership, or data row doesn't exist
//   - Conflict: a create collides with an existing row
//   - Schema violation: a class, collection, or tag isn't declared in the catalog
//   - Invalid property: a property name isn't valid for its collection
//
// Error includes structured fields so callers can report which entity
// the operation was acting on without parsing the message.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Class names the object class involved, when known.
	Class string

	// Object names the object involved, when known.
	Object string

	// Collection names the collection involved, when known.
	Collection string

	// Property names the property involved, when known.
	Property string
}

// Code categorizes store errors.
type Code string

const (
	// ErrCodeNotFound indicates a named entity doesn't exist.
	ErrCodeNotFound Code = "NOT_FOUND"

	// ErrCodeConflict indicates a create collided with an existing row.
	ErrCodeConflict Code = "CONFLICT"

	// ErrCodeSchemaViolation indicates a class, collection, attribute, or
	// tag target isn't declared in the catalog.
	ErrCodeSchemaViolation Code = "SCHEMA_VIOLATION"

	// ErrCodeInvalidProperty indicates a property name isn't valid for
	// the collection being written.
	ErrCodeInvalidProperty Code = "INVALID_PROPERTY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Class != "" && e.Object != "" {
		return fmt.Sprintf("%s: %s (class=%s, object=%s)", e.Code, e.Message, e.Class, e.Object)
	}
	if e.Collection != "" && e.Property != "" {
		return fmt.Sprintf("%s: %s (collection=%s, property=%s)", e.Code, e.Message, e.Collection, e.Property)
	}
	if e.Class != "" {
		return fmt.Sprintf("%s: %s (class=%s)", e.Code, e.Message, e.Class)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound returns true if the error is a not-found error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeNotFound
	}
	return false
}

// IsConflict returns true if the error is a conflict error.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeConflict
	}
	return false
}

// IsSchemaViolation returns true if the error is a schema violation.
// Uses errors.As to handle wrapped errors.
func IsSchemaViolation(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeSchemaViolation
	}
	return false
}

// IsInvalidProperty returns true if the error is an invalid-property error.
// Uses errors.As to handle wrapped errors.
func IsInvalidProperty(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidProperty
	}
	return false
}

// NewNotFoundError creates an Error for a missing object.
func NewNotFoundError(class, object string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: "object does not exist",
		Class:   class,
		Object:  object,
	}
}

// NewConflictError creates an Error for a name collision.
func NewConflictError(class, object string) *Error {
	return &Error{
		Code:    ErrCodeConflict,
		Message: "object already exists",
		Class:   class,
		Object:  object,
	}
}

// NewSchemaViolationError creates an Error for an entity the catalog
// doesn't declare.
func NewSchemaViolationError(message string) *Error {
	return &Error{
		Code:    ErrCodeSchemaViolation,
		Message: message,
	}
}

// NewInvalidPropertyError creates an Error for a property that isn't
// valid for the collection, listing the names that are.
func NewInvalidPropertyError(collection, property string, valid []string) *Error {
	return &Error{
		Code:       ErrCodeInvalidProperty,
		Message:    fmt.Sprintf("property is not valid for collection (valid: %v)", valid),
		Collection: collection,
		Property:   property,
	}
}

// BulkError wraps an error raised while applying a bulk batch, recording
// which chunk and record triggered it. Chunk and Record are zero-based;
// Record indexes into the original batch, not the chunk.
type BulkError struct {
	Chunk  int
	Record int
	Err    error
}

// Error implements the error interface.
func (e *BulkError) Error() string {
	return fmt.Sprintf("record %d (chunk %d): %v", e.Record, e.Chunk, e.Err)
}

// Unwrap returns the underlying error so errors.As sees through BulkError.
func (e *BulkError) Unwrap() error {
	return e.Err
}
