// Package s3api defines the interface over the S3 SDK client used by this
// module, to enable testing and mocking.
package s3api

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the multipart slice of the S3 SDK client this module depends on.
type S3API interface {
	// CreateMultipartUpload initiates a multipart upload
	CreateMultipartUpload(
		ctx context.Context,
		params *s3.CreateMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error)

	// ListMultipartUploads lists in-progress multipart uploads in a bucket
	ListMultipartUploads(
		ctx context.Context,
		params *s3.ListMultipartUploadsInput,
		optFns ...func(*s3.Options),
	) (*s3.ListMultipartUploadsOutput, error)

	// ListParts lists the parts uploaded for a multipart upload
	ListParts(
		ctx context.Context,
		params *s3.ListPartsInput,
		optFns ...func(*s3.Options),
	) (*s3.ListPartsOutput, error)

	// UploadPart uploads a part in a multipart upload
	UploadPart(
		ctx context.Context,
		params *s3.UploadPartInput,
		optFns ...func(*s3.Options),
	) (*s3.UploadPartOutput, error)

	// CompleteMultipartUpload completes a multipart upload
	CompleteMultipartUpload(
		ctx context.Context,
		params *s3.CompleteMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CompleteMultipartUploadOutput, error)

	// AbortMultipartUpload aborts a multipart upload
	AbortMultipartUpload(
		ctx context.Context,
		params *s3.AbortMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.AbortMultipartUploadOutput, error)
}

// Verify that the AWS S3 client implements our interface
var _ S3API = (*s3.Client)(nil)
