// Package errors provides error types and handling for object storage operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents an object storage operation error with context about the
// operation that failed. It wraps the underlying error with additional context
// for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "newRequest", "addPart", "commit")
	Op string

	// Namespace is the object storage namespace (if applicable)
	Namespace string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// UploadID is the multipart upload id (if applicable)
	UploadID string

	// Err is the underlying error from the storage service or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("objectstorage.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "" && e.UploadID != "":
		return fmt.Sprintf("objectstorage.%s bucket %s upload %s: %v", e.Op, e.Bucket, e.UploadID, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("objectstorage.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	case e.UploadID != "":
		return fmt.Sprintf("objectstorage.%s upload %s: %v", e.Op, e.UploadID, e.Err)
	default:
		return fmt.Sprintf("objectstorage.%s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithNamespace adds namespace context to an existing error.
func (e *Error) WithNamespace(namespace string) *Error {
	e.Namespace = namespace
	return e
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithUploadID adds upload id context to an existing error.
func (e *Error) WithUploadID(uploadID string) *Error {
	e.UploadID = uploadID
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for common object storage operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidState indicates a session-lifecycle violation: an operation was
	// attempted on an assembler that is not in the required state, or a commit
	// was attempted while parts have failed. This signals a programming error
	// and is never retried.
	ErrInvalidState = errors.New("objectstorage: invalid state")

	// ErrUploadNotFound indicates that the upload id supplied to a resume does
	// not correspond to any in-progress multipart upload in the bucket.
	ErrUploadNotFound = errors.New("objectstorage: multipart upload not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("objectstorage: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("objectstorage: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("objectstorage: invalid object key")

	// ErrInvalidNamespace indicates that the namespace is invalid
	ErrInvalidNamespace = errors.New("objectstorage: invalid namespace")

	// ErrPartConflict indicates that a part already exists under the requested
	// part number and the upload was issued as a conditional create-only write
	ErrPartConflict = errors.New("objectstorage: part already exists")

	// ErrChecksumMismatch indicates that the supplied content digest did not
	// match the uploaded payload
	ErrChecksumMismatch = errors.New("objectstorage: checksum mismatch")

	// ErrPreconditionFailed indicates that a conditional create-only write
	// found an existing object under the target key
	ErrPreconditionFailed = errors.New("objectstorage: precondition failed")
)

// IsInvalidState checks if an error indicates a session-state violation.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsUploadNotFound checks if an error indicates that a multipart upload was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsUploadNotFound(err error) bool {
	return errors.Is(err, ErrUploadNotFound)
}

// IsInvalidInput checks if an error indicates invalid input.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
