// Package validation provides centralized input validation for object storage
// targets. Inputs are checked before any RPC is issued so that malformed
// names and part numbers fail fast with a classified error.
package validation

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/errors"
)

// Service ceilings shared across backends.
const (
	maxObjectKeyLength = 1024
	maxNamespaceLength = 63
	minPartNumber      = 1
	maxPartNumber      = 10000
)

// ValidateNamespace validates a storage namespace. Empty is allowed: backends
// without namespaced addressing never set one.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return nil
	}

	if len(namespace) > maxNamespaceLength {
		return errors.NewError("validateNamespace", errors.ErrInvalidNamespace).
			WithNamespace(namespace).
			WithMessage("namespace cannot exceed 63 characters")
	}

	for _, char := range namespace {
		valid := (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-'
		if !valid {
			return errors.NewError("validateNamespace", errors.ErrInvalidNamespace).
				WithNamespace(namespace).
				WithMessage("namespace can only contain lowercase letters, numbers, and hyphens")
		}
	}

	return nil
}

// ValidateBucketName validates that a bucket name is DNS-compliant.
// Returns ErrInvalidBucketName if the bucket name is invalid.
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot be empty")
	}

	if len(bucket) < 3 || len(bucket) > 63 {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name must be between 3 and 63 characters long")
	}

	for _, char := range bucket {
		valid := (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
		if !valid {
			return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
				WithBucket(bucket).
				WithMessage("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	if bucket[0] == '-' || bucket[0] == '.' || bucket[len(bucket)-1] == '-' || bucket[len(bucket)-1] == '.' {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot start or end with a hyphen or dot")
	}

	if strings.Contains(bucket, "..") || strings.Contains(bucket, "--") {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot contain two adjacent periods or hyphens")
	}

	if isIPAddress(bucket) {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot be formatted as an IP address")
	}

	return nil
}

// ValidateObjectKey validates that an object key is acceptable to the storage
// service. This includes preventing path traversal attempts and control
// characters.
func ValidateObjectKey(key string) error {
	if key == "" {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("object key cannot be empty")
	}

	if len(key) > maxObjectKeyLength {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("object key cannot exceed 1024 characters")
	}

	if hasPathTraversal(key) {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("object key cannot contain path traversal sequences")
	}

	for _, char := range key {
		if unicode.IsControl(char) {
			return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
				WithKey(key).
				WithMessage("object key cannot contain control characters")
		}
	}

	return nil
}

// ValidatePartNumber validates that a multipart part number is within the
// service's allowed range.
func ValidatePartNumber(partNumber int32) error {
	if partNumber < minPartNumber || partNumber > maxPartNumber {
		return errors.NewError("validatePartNumber", errors.ErrInvalidInput).
			WithMessage("part number must be between 1 and 10000")
	}
	return nil
}

// ValidateUploadID validates a multipart upload id.
func ValidateUploadID(uploadID string) error {
	if uploadID == "" {
		return errors.NewError("validateUploadID", errors.ErrInvalidInput).
			WithMessage("upload id cannot be empty")
	}
	return nil
}

// isIPAddress checks if a string is formatted as a dotted-quad IP address.
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return true
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}

	return true
}

// hasPathTraversal checks for path traversal attempts in object keys.
func hasPathTraversal(key string) bool {
	if strings.Contains(key, "..") {
		return true
	}

	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "..") || strings.HasPrefix(cleaned, "/") {
		return true
	}

	return false
}
