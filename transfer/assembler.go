// Package transfer provides the multipart upload machinery: a session
// assembler that dispatches part uploads onto a concurrent executor, the
// manifest that tracks per-part outcomes, and a manager that drives whole-file
// uploads end to end.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	oserrors "github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/storageapi"
)

const (
	// DefaultContentType is recorded on the final object when the caller does
	// not supply a content type.
	DefaultContentType = "application/octet-stream"

	// conditionalCreateOnly is the If-None-Match value that makes a write
	// succeed only when the target does not exist yet.
	conditionalCreateOnly = "*"
)

// sessionState tracks the assembler lifecycle. Transitions are one-way:
// uninitialized -> active (via NewRequest or ResumeRequest, exactly once) and
// active -> finalized (via Commit or Abort, exactly once).
type sessionState int

const (
	stateUninitialized sessionState = iota
	stateActive
	stateFinalized
)

// MultipartAssembler controls the lifecycle of a single multipart upload
// session against one target object: it creates or resumes the session,
// dispatches part uploads onto its executor, and finalizes the session with a
// commit or an abort.
//
// One caller goroutine is expected to drive the lifecycle methods; part
// uploads themselves run concurrently on the executor. The only method that
// blocks on outstanding work is Commit.
type MultipartAssembler struct {
	client   storageapi.StorageAPI
	executor Executor
	fsys     fs.Filesystem
	logger   *slog.Logger

	namespace      string
	bucket         string
	object         string
	allowOverwrite bool

	mu       sync.Mutex
	state    sessionState
	manifest *MultipartManifest
	tasks    sync.WaitGroup
}

// AssemblerOption configures a MultipartAssembler.
type AssemblerOption func(*MultipartAssembler)

// WithFilesystem sets the filesystem used to read file-sourced parts.
// Defaults to the OS filesystem.
func WithFilesystem(fsys fs.Filesystem) AssemblerOption {
	return func(a *MultipartAssembler) {
		a.fsys = fsys
	}
}

// WithLogger sets the structured logger. The assembler is silent by default.
func WithLogger(logger *slog.Logger) AssemblerOption {
	return func(a *MultipartAssembler) {
		a.logger = logger
	}
}

// NewMultipartAssembler creates an assembler bound to one target object.
// The executor supplies the concurrency for part uploads; a single-worker
// pool is valid and serializes them.
//
// When allowOverwrite is false, the final commit is issued as a conditional
// create-only write and fails if an object already exists under the key.
func NewMultipartAssembler(
	client storageapi.StorageAPI,
	namespace, bucket, object string,
	allowOverwrite bool,
	executor Executor,
	opts ...AssemblerOption,
) *MultipartAssembler {
	a := &MultipartAssembler{
		client:         client,
		executor:       executor,
		namespace:      namespace,
		bucket:         bucket,
		object:         object,
		allowOverwrite: allowOverwrite,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.fsys == nil {
		a.fsys = billy.NewOSFS("/")
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}

	return a
}

// NewRequest starts a fresh multipart upload session for the bound object and
// returns its manifest. It may be called at most once per assembler, and is
// mutually exclusive with ResumeRequest.
//
// Returns ErrInvalidState if the session has already been initialized.
func (a *MultipartAssembler) NewRequest(
	ctx context.Context,
	contentType, contentLanguage, contentEncoding string,
	metadata map[string]string,
) (*MultipartManifest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateUninitialized {
		return nil, a.stateError("newRequest", "session already initialized")
	}
	if err := a.validateTarget("newRequest"); err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = DefaultContentType
	}

	out, err := a.client.CreateMultipartUpload(ctx, &storageapi.CreateMultipartUploadInput{
		Namespace:       a.namespace,
		Bucket:          a.bucket,
		Object:          a.object,
		ContentType:     contentType,
		ContentLanguage: contentLanguage,
		ContentEncoding: contentEncoding,
		Metadata:        metadata,
	})
	if err != nil {
		return nil, err
	}

	a.manifest = newManifest(out.UploadID)
	a.state = stateActive
	a.logger.Debug("multipart upload created",
		"bucket", a.bucket, "object", a.object, "upload_id", out.UploadID)
	return a.manifest, nil
}

// ResumeRequest attaches the assembler to an existing in-progress multipart
// upload. It confirms the upload id by enumerating the bucket's in-progress
// uploads, then seeds the manifest with the parts already stored, so that the
// next AddPart reserves one past the highest existing part number. It may be
// called at most once per assembler, and is mutually exclusive with NewRequest.
//
// Returns ErrUploadNotFound if no page of the upload enumeration contains the
// given id, and ErrInvalidState if the session has already been initialized.
func (a *MultipartAssembler) ResumeRequest(
	ctx context.Context,
	uploadID string,
) (*MultipartManifest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateUninitialized {
		return nil, a.stateError("resumeRequest", "session already initialized")
	}
	if err := a.validateTarget("resumeRequest"); err != nil {
		return nil, err
	}
	if err := validation.ValidateUploadID(uploadID); err != nil {
		return nil, oserrors.NewObjectError("resumeRequest", a.bucket, a.object, err)
	}

	found, err := a.findUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, oserrors.NewError("resumeRequest", oserrors.ErrUploadNotFound).
			WithBucket(a.bucket).
			WithUploadID(uploadID)
	}

	manifest := newManifest(uploadID)
	if err := a.seedExistingParts(ctx, uploadID, manifest); err != nil {
		return nil, err
	}

	a.manifest = manifest
	a.state = stateActive
	a.logger.Debug("multipart upload resumed",
		"bucket", a.bucket, "object", a.object, "upload_id", uploadID,
		"existing_parts", len(manifest.ListCompletedParts()))
	return a.manifest, nil
}

// findUpload pages through the bucket's in-progress multipart uploads until
// the id is found or the listing is exhausted.
func (a *MultipartAssembler) findUpload(ctx context.Context, uploadID string) (bool, error) {
	pageToken := ""
	for {
		out, err := a.client.ListMultipartUploads(ctx, &storageapi.ListMultipartUploadsInput{
			Namespace: a.namespace,
			Bucket:    a.bucket,
			PageToken: pageToken,
			Limit:     storageapi.DefaultPageLimit,
		})
		if err != nil {
			return false, err
		}

		for _, item := range out.Items {
			if item.UploadID == uploadID {
				return true, nil
			}
		}

		if out.NextPageToken == "" {
			return false, nil
		}
		pageToken = out.NextPageToken
	}
}

// seedExistingParts pages through the upload's stored parts and records each
// one as succeeded.
func (a *MultipartAssembler) seedExistingParts(
	ctx context.Context,
	uploadID string,
	manifest *MultipartManifest,
) error {
	pageToken := ""
	for {
		out, err := a.client.ListMultipartUploadParts(ctx, &storageapi.ListMultipartUploadPartsInput{
			Namespace: a.namespace,
			Bucket:    a.bucket,
			Object:    a.object,
			UploadID:  uploadID,
			PageToken: pageToken,
			Limit:     storageapi.DefaultPageLimit,
		})
		if err != nil {
			return err
		}

		for _, item := range out.Items {
			if err := validation.ValidatePartNumber(item.PartNumber); err != nil {
				return oserrors.NewObjectError("resumeRequest", a.bucket, a.object, err).
					WithUploadID(uploadID)
			}
			manifest.seedPart(item.PartNumber, item.ETag)
		}

		if out.NextPageToken == "" {
			return nil
		}
		pageToken = out.NextPageToken
	}
}

// AddPart reserves the next part number and schedules an asynchronous upload
// of the body on the executor. The body must have a known exact length; it is
// read fully by the upload task, so the caller must not reuse the reader.
//
// AddPart itself never performs network I/O. Upload failures are not returned
// here: they are recorded in the manifest and surface through
// IsUploadSuccessful, ListFailedParts, and Commit refusing to finalize.
//
// contentMD5 is the base64 MD5 digest of the body, passed through to the
// service for integrity verification; empty disables the check.
//
// Returns ErrInvalidState if the session is not active and ErrInvalidInput if
// the body is nil or the length is negative.
func (a *MultipartAssembler) AddPart(
	ctx context.Context,
	body io.Reader,
	contentLength int64,
	contentMD5 string,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateActive {
		return a.stateError("addPart", "session is not active")
	}
	if body == nil {
		return oserrors.NewObjectError("addPart", a.bucket, a.object, oserrors.ErrInvalidInput).
			WithMessage("part body cannot be nil")
	}
	if contentLength < 0 {
		return oserrors.NewObjectError("addPart", a.bucket, a.object, oserrors.ErrInvalidInput).
			WithMessage("content length must be known for stream sources")
	}

	return a.submitPart(func(taskCtx context.Context, partNumber int32) {
		a.uploadPart(taskCtx, partNumber, body, contentLength, contentMD5)
	}, ctx)
}

// AddPartFromFile reserves the next part number and schedules an asynchronous
// upload of the file's full contents. The file is opened and read by the
// upload task, not by AddPartFromFile itself.
//
// Returns ErrInvalidState if the session is not active and ErrInvalidInput if
// the path does not name a regular file.
func (a *MultipartAssembler) AddPartFromFile(
	ctx context.Context,
	path string,
	contentMD5 string,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateActive {
		return a.stateError("addPart", "session is not active")
	}

	info, err := a.fsys.Stat(path)
	if err != nil {
		return oserrors.NewObjectError("addPart", a.bucket, a.object, err)
	}
	if info.IsDir() {
		return oserrors.NewObjectError("addPart", a.bucket, a.object, oserrors.ErrInvalidInput).
			WithMessage("path points to a directory, not a file")
	}
	size := info.Size()

	return a.submitPart(func(taskCtx context.Context, partNumber int32) {
		file, openErr := a.fsys.Open(path)
		if openErr != nil {
			a.logger.Debug("part upload failed",
				"bucket", a.bucket, "object", a.object, "part", partNumber, "error", openErr)
			a.recordFailure(partNumber)
			return
		}
		defer file.Close()

		a.uploadPart(taskCtx, partNumber, file, size, contentMD5)
	}, ctx)
}

// submitPart reserves a part number and hands the upload task to the
// executor. Reservation and submission happen under the assembler lock so
// part numbers are assigned in calling order. Must be called with a.mu held.
func (a *MultipartAssembler) submitPart(
	task func(ctx context.Context, partNumber int32),
	ctx context.Context,
) error {
	partNumber := a.manifest.NextPartNumber()

	a.tasks.Add(1)
	err := a.executor.Submit(func() {
		defer a.tasks.Done()
		task(ctx, partNumber)
	})
	if err != nil {
		a.tasks.Done()
		a.recordFailure(partNumber)
		return err
	}
	return nil
}

// uploadPart reads the full part payload and issues the upload-part call.
// Any failure is swallowed into the manifest; it is never propagated to the
// submitter.
func (a *MultipartAssembler) uploadPart(
	ctx context.Context,
	partNumber int32,
	body io.Reader,
	contentLength int64,
	contentMD5 string,
) {
	payload, err := io.ReadAll(body)
	if err == nil && int64(len(payload)) != contentLength {
		err = fmt.Errorf("read %d bytes, expected %d", len(payload), contentLength)
	}
	if err != nil {
		a.logger.Debug("part upload failed",
			"bucket", a.bucket, "object", a.object, "part", partNumber, "error", err)
		a.recordFailure(partNumber)
		return
	}

	out, err := a.client.UploadPart(ctx, &storageapi.UploadPartInput{
		Namespace:     a.namespace,
		Bucket:        a.bucket,
		Object:        a.object,
		UploadID:      a.manifest.UploadID(),
		PartNumber:    partNumber,
		ContentMD5:    contentMD5,
		IfNoneMatch:   conditionalCreateOnly,
		ContentLength: contentLength,
		Body:          bytes.NewReader(payload),
	})
	if err != nil {
		a.logger.Debug("part upload failed",
			"bucket", a.bucket, "object", a.object, "part", partNumber, "error", err)
		a.recordFailure(partNumber)
		return
	}

	if recErr := a.manifest.RecordSuccess(partNumber, out.ETag); recErr != nil {
		a.logger.Warn("part outcome could not be recorded",
			"bucket", a.bucket, "object", a.object, "part", partNumber, "error", recErr)
	}
}

// recordFailure marks a part failed, logging the manifest's complaint if the
// part was already resolved.
func (a *MultipartAssembler) recordFailure(partNumber int32) {
	if err := a.manifest.RecordFailure(partNumber); err != nil {
		a.logger.Warn("part outcome could not be recorded",
			"bucket", a.bucket, "object", a.object, "part", partNumber, "error", err)
	}
}

// Commit waits for every submitted part task to reach a terminal outcome and
// finalizes the session. This is the subsystem's only blocking call; no
// internal timeout is imposed, so a hung part upload hangs Commit until the
// executor or the storage client enforces its own deadline.
//
// If any part failed, the session transitions to finalized, the commit
// endpoint is NOT called, and ErrInvalidState is returned; the server-side
// upload is left open for the caller to inspect or abort. Otherwise the
// succeeded parts are committed in ascending part-number order.
func (a *MultipartAssembler) Commit(ctx context.Context) (*storageapi.CommitMultipartUploadOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateActive {
		return nil, a.stateError("commit", "session is not active")
	}

	a.tasks.Wait()
	a.state = stateFinalized

	if !a.manifest.IsUploadSuccessful() {
		failed := a.manifest.ListFailedParts()
		return nil, a.stateError("commit",
			fmt.Sprintf("%d part upload(s) failed; refusing to commit", len(failed)))
	}

	input := &storageapi.CommitMultipartUploadInput{
		Namespace: a.namespace,
		Bucket:    a.bucket,
		Object:    a.object,
		UploadID:  a.manifest.UploadID(),
		Parts:     a.manifest.ListCompletedParts(),
	}
	if !a.allowOverwrite {
		input.IfNoneMatch = conditionalCreateOnly
	}

	out, err := a.client.CommitMultipartUpload(ctx, input)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("multipart upload committed",
		"bucket", a.bucket, "object", a.object, "upload_id", a.manifest.UploadID(),
		"parts", len(input.Parts))
	return out, nil
}

// Abort discards the server-side upload and finalizes the session
// immediately. It does not wait for in-flight part tasks; a part task that
// completes afterwards is tolerated, its outcome is simply ignored by the
// already-terminal manifest.
//
// If the abort call itself fails the session stays active so the caller can
// retry.
func (a *MultipartAssembler) Abort(ctx context.Context) (*storageapi.AbortMultipartUploadOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateActive {
		return nil, a.stateError("abort", "session is not active")
	}

	out, err := a.client.AbortMultipartUpload(ctx, &storageapi.AbortMultipartUploadInput{
		Namespace: a.namespace,
		Bucket:    a.bucket,
		Object:    a.object,
		UploadID:  a.manifest.UploadID(),
	})
	if err != nil {
		return nil, err
	}

	a.manifest.MarkAborted()
	a.state = stateFinalized
	a.logger.Debug("multipart upload aborted",
		"bucket", a.bucket, "object", a.object, "upload_id", a.manifest.UploadID())
	return out, nil
}

// stateError builds the session-state violation error for an operation.
func (a *MultipartAssembler) stateError(op, message string) error {
	return oserrors.NewObjectError(op, a.bucket, a.object, oserrors.ErrInvalidState).
		WithMessage(message)
}

// validateTarget checks the bound namespace, bucket, and object once, at
// session initialization.
func (a *MultipartAssembler) validateTarget(op string) error {
	if err := validation.ValidateNamespace(a.namespace); err != nil {
		return oserrors.NewObjectError(op, a.bucket, a.object, err)
	}
	if err := validation.ValidateBucketName(a.bucket); err != nil {
		return oserrors.NewObjectError(op, a.bucket, a.object, err)
	}
	if err := validation.ValidateObjectKey(a.object); err != nil {
		return oserrors.NewObjectError(op, a.bucket, a.object, err)
	}
	return nil
}
