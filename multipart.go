package objectstorage

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/storageapi"
)

// pageTokenSeparator joins the two S3 upload-listing markers into the port's
// single opaque page token. The unit separator cannot appear in object keys
// accepted by validation, and upload ids never contain it.
const pageTokenSeparator = "\x1f"

// CreateMultipartUpload starts a new multipart upload session.
func (c *Client) CreateMultipartUpload(
	ctx context.Context,
	params *storageapi.CreateMultipartUploadInput,
) (*storageapi.CreateMultipartUploadOutput, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(params.Bucket),
		Key:    aws.String(params.Object),
	}
	if params.ContentType != "" {
		input.ContentType = aws.String(params.ContentType)
	}
	if params.ContentLanguage != "" {
		input.ContentLanguage = aws.String(params.ContentLanguage)
	}
	if params.ContentEncoding != "" {
		input.ContentEncoding = aws.String(params.ContentEncoding)
	}
	if len(params.Metadata) > 0 {
		input.Metadata = params.Metadata
	}

	out, err := c.s3Client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return nil, errors.NewObjectError("createMultipartUpload", params.Bucket, params.Object,
			classifyError(err))
	}

	c.logger.Debug("multipart upload created",
		"bucket", params.Bucket, "object", params.Object, "upload_id", aws.ToString(out.UploadId))
	return &storageapi.CreateMultipartUploadOutput{
		UploadID: aws.ToString(out.UploadId),
	}, nil
}

// ListMultipartUploads enumerates in-progress multipart uploads in a bucket,
// one page at a time. S3 paginates this listing with a pair of markers; they
// are folded into the port's single page token.
func (c *Client) ListMultipartUploads(
	ctx context.Context,
	params *storageapi.ListMultipartUploadsInput,
) (*storageapi.ListMultipartUploadsOutput, error) {
	input := &s3.ListMultipartUploadsInput{
		Bucket: aws.String(params.Bucket),
	}
	if params.Limit > 0 {
		input.MaxUploads = aws.Int32(params.Limit)
	}
	if params.PageToken != "" {
		keyMarker, uploadIDMarker := decodeUploadsPageToken(params.PageToken)
		if keyMarker != "" {
			input.KeyMarker = aws.String(keyMarker)
		}
		if uploadIDMarker != "" {
			input.UploadIdMarker = aws.String(uploadIDMarker)
		}
	}

	out, err := c.s3Client.ListMultipartUploads(ctx, input)
	if err != nil {
		return nil, errors.NewError("listMultipartUploads", classifyError(err)).
			WithBucket(params.Bucket)
	}

	items := make([]storageapi.MultipartUploadSummary, 0, len(out.Uploads))
	for _, upload := range out.Uploads {
		items = append(items, storageapi.MultipartUploadSummary{
			Object:      aws.ToString(upload.Key),
			UploadID:    aws.ToString(upload.UploadId),
			TimeCreated: aws.ToTime(upload.Initiated),
		})
	}

	nextToken := ""
	if aws.ToBool(out.IsTruncated) {
		nextToken = encodeUploadsPageToken(
			aws.ToString(out.NextKeyMarker),
			aws.ToString(out.NextUploadIdMarker),
		)
	}

	return &storageapi.ListMultipartUploadsOutput{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// ListMultipartUploadParts enumerates the parts already stored for an
// in-progress multipart upload, one page at a time.
func (c *Client) ListMultipartUploadParts(
	ctx context.Context,
	params *storageapi.ListMultipartUploadPartsInput,
) (*storageapi.ListMultipartUploadPartsOutput, error) {
	input := &s3.ListPartsInput{
		Bucket:   aws.String(params.Bucket),
		Key:      aws.String(params.Object),
		UploadId: aws.String(params.UploadID),
	}
	if params.Limit > 0 {
		input.MaxParts = aws.Int32(params.Limit)
	}
	if params.PageToken != "" {
		input.PartNumberMarker = aws.String(params.PageToken)
	}

	out, err := c.s3Client.ListParts(ctx, input)
	if err != nil {
		return nil, errors.NewObjectError("listMultipartUploadParts", params.Bucket, params.Object,
			classifyError(err)).
			WithUploadID(params.UploadID)
	}

	items := make([]storageapi.PartSummary, 0, len(out.Parts))
	for _, part := range out.Parts {
		items = append(items, storageapi.PartSummary{
			PartNumber: aws.ToInt32(part.PartNumber),
			ETag:       aws.ToString(part.ETag),
			Size:       aws.ToInt64(part.Size),
		})
	}

	nextToken := ""
	if aws.ToBool(out.IsTruncated) {
		nextToken = aws.ToString(out.NextPartNumberMarker)
	}

	return &storageapi.ListMultipartUploadPartsOutput{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// UploadPart uploads a single numbered part. The SDK input has no field for a
// conditional create-only write, so the If-None-Match header is injected
// through the request middleware stack when requested.
func (c *Client) UploadPart(
	ctx context.Context,
	params *storageapi.UploadPartInput,
) (*storageapi.UploadPartOutput, error) {
	input := &s3.UploadPartInput{
		Bucket:     aws.String(params.Bucket),
		Key:        aws.String(params.Object),
		UploadId:   aws.String(params.UploadID),
		PartNumber: aws.Int32(params.PartNumber),
		Body:       params.Body,
	}
	if params.ContentLength >= 0 {
		input.ContentLength = aws.Int64(params.ContentLength)
	}
	if params.ContentMD5 != "" {
		input.ContentMD5 = aws.String(params.ContentMD5)
	}

	var optFns []func(*s3.Options)
	if params.IfNoneMatch != "" {
		optFns = append(optFns, withIfNoneMatchHeader(params.IfNoneMatch))
	}

	out, err := c.s3Client.UploadPart(ctx, input, optFns...)
	if err != nil {
		return nil, errors.NewObjectError("uploadPart", params.Bucket, params.Object,
			classifyError(err)).
			WithUploadID(params.UploadID)
	}

	return &storageapi.UploadPartOutput{
		ETag: aws.ToString(out.ETag),
	}, nil
}

// CommitMultipartUpload assembles the final object from the given ordered
// part list.
func (c *Client) CommitMultipartUpload(
	ctx context.Context,
	params *storageapi.CommitMultipartUploadInput,
) (*storageapi.CommitMultipartUploadOutput, error) {
	completed := make([]types.CompletedPart, 0, len(params.Parts))
	for _, part := range params.Parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(part.PartNumber),
			ETag:       aws.String(part.ETag),
		})
	}

	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(params.Bucket),
		Key:      aws.String(params.Object),
		UploadId: aws.String(params.UploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	}
	if params.IfNoneMatch != "" {
		input.IfNoneMatch = aws.String(params.IfNoneMatch)
	}

	out, err := c.s3Client.CompleteMultipartUpload(ctx, input)
	if err != nil {
		return nil, errors.NewObjectError("commitMultipartUpload", params.Bucket, params.Object,
			classifyError(err)).
			WithUploadID(params.UploadID)
	}

	c.logger.Debug("multipart upload committed",
		"bucket", params.Bucket, "object", params.Object, "upload_id", params.UploadID,
		"parts", len(params.Parts))
	return &storageapi.CommitMultipartUploadOutput{
		ETag:      aws.ToString(out.ETag),
		VersionID: aws.ToString(out.VersionId),
	}, nil
}

// AbortMultipartUpload discards an in-progress multipart upload and any parts
// already stored for it.
func (c *Client) AbortMultipartUpload(
	ctx context.Context,
	params *storageapi.AbortMultipartUploadInput,
) (*storageapi.AbortMultipartUploadOutput, error) {
	_, err := c.s3Client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(params.Bucket),
		Key:      aws.String(params.Object),
		UploadId: aws.String(params.UploadID),
	})
	if err != nil {
		return nil, errors.NewObjectError("abortMultipartUpload", params.Bucket, params.Object,
			classifyError(err)).
			WithUploadID(params.UploadID)
	}

	c.logger.Debug("multipart upload aborted",
		"bucket", params.Bucket, "object", params.Object, "upload_id", params.UploadID)
	return &storageapi.AbortMultipartUploadOutput{}, nil
}

var _ storageapi.StorageAPI = (*Client)(nil)

// withIfNoneMatchHeader injects an If-None-Match header into the outgoing
// request for one SDK call.
func withIfNoneMatchHeader(value string) func(*s3.Options) {
	return s3.WithAPIOptions(func(stack *middleware.Stack) error {
		return stack.Build.Add(middleware.BuildMiddlewareFunc("IfNoneMatchHeader",
			func(
				ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler,
			) (middleware.BuildOutput, middleware.Metadata, error) {
				if req, ok := in.Request.(*smithyhttp.Request); ok {
					req.Header.Set("If-None-Match", value)
				}
				return next.HandleBuild(ctx, in)
			}), middleware.After)
	})
}

// classifyError maps service error codes onto this module's sentinels so
// callers can use errors.Is without knowing the backend.
func classifyError(err error) error {
	var apiErr smithy.APIError
	if !stderrors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchUpload":
		return fmt.Errorf("%w: %s", errors.ErrUploadNotFound, apiErr.ErrorMessage())
	case "PreconditionFailed":
		return fmt.Errorf("%w: %s", errors.ErrPreconditionFailed, apiErr.ErrorMessage())
	case "BadDigest", "InvalidDigest":
		return fmt.Errorf("%w: %s", errors.ErrChecksumMismatch, apiErr.ErrorMessage())
	}
	return err
}

// encodeUploadsPageToken folds S3's key and upload-id markers into one opaque
// continuation token.
func encodeUploadsPageToken(keyMarker, uploadIDMarker string) string {
	if keyMarker == "" && uploadIDMarker == "" {
		return ""
	}
	return keyMarker + pageTokenSeparator + uploadIDMarker
}

// decodeUploadsPageToken splits an opaque continuation token back into S3's
// key and upload-id markers.
func decodeUploadsPageToken(token string) (keyMarker, uploadIDMarker string) {
	keyMarker, uploadIDMarker, _ = strings.Cut(token, pageTokenSeparator)
	return keyMarker, uploadIDMarker
}
