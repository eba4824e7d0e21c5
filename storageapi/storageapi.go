// Package storageapi defines the object storage service interface used by the
// multipart transfer machinery. The interface allows for mocking in tests and
// for alternative storage backends.
package storageapi

import (
	"context"
	"io"
	"time"
)

// DefaultPageLimit is the page size used when enumerating multipart uploads
// and their parts.
const DefaultPageLimit int32 = 100

// StorageAPI defines the object storage operations required to drive a
// multipart upload from creation through commit or abort.
//
// Implementations must be safe for concurrent use: part uploads are issued
// from multiple worker goroutines against a single client.
type StorageAPI interface {
	// CreateMultipartUpload starts a new multipart upload session and returns
	// its service-assigned upload id.
	CreateMultipartUpload(
		ctx context.Context,
		params *CreateMultipartUploadInput,
	) (*CreateMultipartUploadOutput, error)

	// ListMultipartUploads enumerates in-progress multipart uploads in a bucket,
	// one page at a time.
	ListMultipartUploads(
		ctx context.Context,
		params *ListMultipartUploadsInput,
	) (*ListMultipartUploadsOutput, error)

	// ListMultipartUploadParts enumerates the parts already uploaded for an
	// in-progress multipart upload, one page at a time.
	ListMultipartUploadParts(
		ctx context.Context,
		params *ListMultipartUploadPartsInput,
	) (*ListMultipartUploadPartsOutput, error)

	// UploadPart uploads a single numbered part and returns its entity tag.
	UploadPart(ctx context.Context, params *UploadPartInput) (*UploadPartOutput, error)

	// CommitMultipartUpload assembles the final object from the given ordered
	// part list.
	CommitMultipartUpload(
		ctx context.Context,
		params *CommitMultipartUploadInput,
	) (*CommitMultipartUploadOutput, error)

	// AbortMultipartUpload discards an in-progress multipart upload and any
	// parts already stored for it.
	AbortMultipartUpload(
		ctx context.Context,
		params *AbortMultipartUploadInput,
	) (*AbortMultipartUploadOutput, error)
}

// CreateMultipartUploadInput carries the parameters for starting a multipart upload.
type CreateMultipartUploadInput struct {
	// Namespace is the top-level tenancy the bucket lives in. Backends without
	// namespaced addressing may ignore it.
	Namespace string

	// Bucket is the bucket the object will be written to
	Bucket string

	// Object is the key of the object being assembled
	Object string

	// ContentType is the MIME type recorded on the final object
	ContentType string

	// ContentLanguage is the content language recorded on the final object
	ContentLanguage string

	// ContentEncoding is the content encoding recorded on the final object
	ContentEncoding string

	// Metadata contains user-defined metadata recorded on the final object
	Metadata map[string]string
}

// CreateMultipartUploadOutput is the result of starting a multipart upload.
type CreateMultipartUploadOutput struct {
	// UploadID is the service-assigned identifier for the new upload session
	UploadID string
}

// ListMultipartUploadsInput carries the parameters for one page of upload enumeration.
type ListMultipartUploadsInput struct {
	Namespace string
	Bucket    string

	// PageToken is the opaque continuation token from the previous page, or
	// empty for the first page.
	PageToken string

	// Limit is the maximum number of items to return in this page
	Limit int32
}

// MultipartUploadSummary describes one in-progress multipart upload.
type MultipartUploadSummary struct {
	// Object is the key the upload targets
	Object string

	// UploadID identifies the upload session
	UploadID string

	// TimeCreated is when the upload session was started
	TimeCreated time.Time
}

// ListMultipartUploadsOutput is one page of in-progress multipart uploads.
type ListMultipartUploadsOutput struct {
	Items []MultipartUploadSummary

	// NextPageToken is the continuation token for the next page, or empty when
	// this is the final page.
	NextPageToken string
}

// ListMultipartUploadPartsInput carries the parameters for one page of part enumeration.
type ListMultipartUploadPartsInput struct {
	Namespace string
	Bucket    string
	Object    string
	UploadID  string

	// PageToken is the opaque continuation token from the previous page, or
	// empty for the first page.
	PageToken string

	// Limit is the maximum number of items to return in this page
	Limit int32
}

// PartSummary describes one part already stored for a multipart upload.
type PartSummary struct {
	// PartNumber is the 1-based number the part was uploaded under
	PartNumber int32

	// ETag is the entity tag the service assigned to the stored part
	ETag string

	// Size is the stored part size in bytes
	Size int64
}

// ListMultipartUploadPartsOutput is one page of stored parts.
type ListMultipartUploadPartsOutput struct {
	Items []PartSummary

	// NextPageToken is the continuation token for the next page, or empty when
	// this is the final page.
	NextPageToken string
}

// UploadPartInput carries the parameters for uploading a single part.
type UploadPartInput struct {
	Namespace string
	Bucket    string
	Object    string
	UploadID  string

	// PartNumber is the 1-based number this part is stored under
	PartNumber int32

	// ContentMD5 is the caller-supplied base64 MD5 digest of the body, passed
	// through to the service for integrity verification. Empty disables the check.
	ContentMD5 string

	// IfNoneMatch, when set to "*", makes the write conditional: the part is
	// stored only if no part already exists under PartNumber.
	IfNoneMatch string

	// ContentLength is the exact body length in bytes
	ContentLength int64

	// Body is the part payload
	Body io.Reader
}

// UploadPartOutput is the result of uploading a single part.
type UploadPartOutput struct {
	// ETag is the entity tag assigned to the stored part, required to commit it
	ETag string
}

// CommittedPart pairs a part number with the entity tag proving its identity.
type CommittedPart struct {
	PartNumber int32
	ETag       string
}

// CommitMultipartUploadInput carries the parameters for committing a multipart upload.
type CommitMultipartUploadInput struct {
	Namespace string
	Bucket    string
	Object    string
	UploadID  string

	// Parts is the part list in ascending part-number order. The order defines
	// final object assembly order.
	Parts []CommittedPart

	// IfNoneMatch, when set to "*", makes the commit conditional: the final
	// object is created only if no object already exists under the key.
	IfNoneMatch string
}

// CommitMultipartUploadOutput is the result of committing a multipart upload.
type CommitMultipartUploadOutput struct {
	// ETag is the entity tag of the assembled object
	ETag string

	// VersionID is the object version if versioning is enabled
	VersionID string
}

// AbortMultipartUploadInput carries the parameters for aborting a multipart upload.
type AbortMultipartUploadInput struct {
	Namespace string
	Bucket    string
	Object    string
	UploadID  string
}

// AbortMultipartUploadOutput is the result of aborting a multipart upload.
type AbortMultipartUploadOutput struct{}
