package transfer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	oserrors "github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/storageapi"
)

const (
	// DefaultPartSize is the part size used when the caller does not configure
	// one. Storage backends commonly require 5 MiB minimum for non-final
	// parts, so the default sits comfortably above that.
	DefaultPartSize int64 = 8 * 1024 * 1024

	// DefaultConcurrency is the number of parts uploaded in parallel per
	// upload when the caller does not configure one.
	DefaultConcurrency = 5

	// maxPartCount is the service ceiling on parts per upload. Part size is
	// grown as needed so a known-size upload never exceeds it.
	maxPartCount int64 = 10000
)

// UploadManager uploads whole payloads by slicing them into parts and driving
// a MultipartAssembler end to end: it creates the session, submits every part
// with its MD5 digest, and commits. It is the convenience layer above the
// assembler for callers that do not need per-part control.
//
// A manager is stateless between uploads and safe for concurrent use; each
// Upload call gets its own assembler and worker pool.
type UploadManager struct {
	client storageapi.StorageAPI
	fsys   fs.Filesystem
	logger *slog.Logger

	partSize       int64
	concurrency    int
	abortOnFailure bool
}

// ManagerOption configures an UploadManager.
type ManagerOption func(*UploadManager)

// WithPartSize sets the slice size for multipart uploads. Values below the
// backend's minimum part size will be rejected by the service for all but the
// final part.
func WithPartSize(size int64) ManagerOption {
	return func(m *UploadManager) {
		if size > 0 {
			m.partSize = size
		}
	}
}

// WithConcurrency sets how many parts are uploaded in parallel per upload.
func WithConcurrency(n int) ManagerOption {
	return func(m *UploadManager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithAbortOnFailure controls whether a failed upload's server-side session is
// aborted by the manager. Defaults to true; disable it to leave the session
// open for inspection or a manual resume.
func WithAbortOnFailure(abort bool) ManagerOption {
	return func(m *UploadManager) {
		m.abortOnFailure = abort
	}
}

// WithManagerFilesystem sets the filesystem used by UploadFile.
// Defaults to the OS filesystem.
func WithManagerFilesystem(fsys fs.Filesystem) ManagerOption {
	return func(m *UploadManager) {
		m.fsys = fsys
	}
}

// WithManagerLogger sets the structured logger passed down to each upload's
// assembler. The manager is silent by default.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *UploadManager) {
		m.logger = logger
	}
}

// NewUploadManager creates an upload manager over the given storage client.
func NewUploadManager(client storageapi.StorageAPI, opts ...ManagerOption) *UploadManager {
	m := &UploadManager{
		client:         client,
		partSize:       DefaultPartSize,
		concurrency:    DefaultConcurrency,
		abortOnFailure: true,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.fsys == nil {
		m.fsys = billy.NewOSFS("/")
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}

	return m
}

// UploadInput carries the per-upload parameters for an UploadManager.
type UploadInput struct {
	Namespace string
	Bucket    string
	Object    string

	// ContentType is recorded on the final object. Empty means sniff it from
	// the first part's bytes.
	ContentType string

	// ContentLanguage is recorded on the final object
	ContentLanguage string

	// ContentEncoding is recorded on the final object
	ContentEncoding string

	// Metadata contains user-defined metadata recorded on the final object
	Metadata map[string]string

	// AllowOverwrite permits replacing an existing object under the key.
	// When false the commit is a conditional create-only write.
	AllowOverwrite bool

	// ProgressTracker receives progress callbacks; nil disables them
	ProgressTracker ProgressTracker
}

// UploadResult describes a finished upload.
type UploadResult struct {
	// ETag is the entity tag of the assembled object
	ETag string

	// VersionID is the object version if versioning is enabled
	VersionID string

	// UploadID is the multipart session the object was assembled from
	UploadID string

	// Parts is the number of parts committed
	Parts int
}

// Upload slices body into parts and uploads them through a fresh multipart
// session. size is the total body length when known, or -1 for an unknown
// length; body is always read to EOF either way.
func (m *UploadManager) Upload(
	ctx context.Context,
	input *UploadInput,
	body io.Reader,
	size int64,
) (*UploadResult, error) {
	if input == nil {
		return nil, oserrors.NewError("upload", oserrors.ErrInvalidInput).
			WithMessage("input cannot be nil")
	}
	if body == nil {
		return nil, oserrors.NewObjectError("upload", input.Bucket, input.Object, oserrors.ErrInvalidInput).
			WithMessage("body cannot be nil")
	}
	if size < -1 {
		return nil, oserrors.NewObjectError("upload", input.Bucket, input.Object, oserrors.ErrInvalidInput).
			WithMessage("size must be non-negative or -1 for unknown")
	}

	return m.upload(ctx, input, body, size)
}

// UploadFile uploads the file at path through a fresh multipart session.
func (m *UploadManager) UploadFile(
	ctx context.Context,
	input *UploadInput,
	path string,
) (*UploadResult, error) {
	if input == nil {
		return nil, oserrors.NewError("upload", oserrors.ErrInvalidInput).
			WithMessage("input cannot be nil")
	}

	info, err := m.fsys.Stat(path)
	if err != nil {
		return nil, oserrors.NewObjectError("upload", input.Bucket, input.Object, err)
	}
	if info.IsDir() {
		return nil, oserrors.NewObjectError("upload", input.Bucket, input.Object, oserrors.ErrInvalidInput).
			WithMessage("path points to a directory, not a file")
	}

	file, err := m.fsys.Open(path)
	if err != nil {
		return nil, oserrors.NewObjectError("upload", input.Bucket, input.Object, err)
	}
	defer file.Close()

	return m.upload(ctx, input, file, info.Size())
}

func (m *UploadManager) upload(
	ctx context.Context,
	input *UploadInput,
	body io.Reader,
	size int64,
) (*UploadResult, error) {
	tracker := input.ProgressTracker
	if tracker == nil {
		tracker = nopTracker{}
	}

	partSize := m.effectivePartSize(size)

	// The first part is read before the session exists so its bytes can feed
	// content-type sniffing.
	firstChunk, err := readChunk(body, partSize)
	if err != nil {
		tracker.Error(err)
		return nil, oserrors.NewObjectError("upload", input.Bucket, input.Object, err)
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(firstChunk).String()
	}

	pool := NewWorkerPool(m.concurrency)
	defer pool.Close()

	assembler := NewMultipartAssembler(
		m.client,
		input.Namespace, input.Bucket, input.Object,
		input.AllowOverwrite,
		pool,
		WithLogger(m.logger),
	)

	manifest, err := assembler.NewRequest(
		ctx, contentType, input.ContentLanguage, input.ContentEncoding, input.Metadata,
	)
	if err != nil {
		tracker.Error(err)
		return nil, err
	}

	var transferred int64
	chunk := firstChunk
	for {
		digest := md5.Sum(chunk)
		addErr := assembler.AddPart(
			ctx,
			bytes.NewReader(chunk),
			int64(len(chunk)),
			base64.StdEncoding.EncodeToString(digest[:]),
		)
		if addErr != nil {
			return nil, m.fail(ctx, assembler, manifest, input, tracker, addErr)
		}

		transferred += int64(len(chunk))
		tracker.Update(transferred, size)

		if int64(len(chunk)) < partSize {
			break
		}
		chunk, err = readChunk(body, partSize)
		if err != nil {
			return nil, m.fail(ctx, assembler, manifest, input, tracker,
				oserrors.NewObjectError("upload", input.Bucket, input.Object, err))
		}
		if len(chunk) == 0 {
			break
		}
	}

	out, err := assembler.Commit(ctx)
	if err != nil {
		return nil, m.fail(ctx, assembler, manifest, input, tracker, err)
	}

	tracker.Complete()
	return &UploadResult{
		ETag:      out.ETag,
		VersionID: out.VersionID,
		UploadID:  manifest.UploadID(),
		Parts:     len(manifest.ListCompletedParts()),
	}, nil
}

// fail finalizes a broken upload: it aborts the server-side session when
// configured to, reports the error to the tracker, and returns it.
func (m *UploadManager) fail(
	ctx context.Context,
	assembler *MultipartAssembler,
	manifest *MultipartManifest,
	input *UploadInput,
	tracker ProgressTracker,
	err error,
) error {
	if m.abortOnFailure {
		// Commit may already have finalized the assembler, so the abort goes
		// straight to the storage client.
		_, abortErr := m.client.AbortMultipartUpload(ctx, &storageapi.AbortMultipartUploadInput{
			Namespace: input.Namespace,
			Bucket:    input.Bucket,
			Object:    input.Object,
			UploadID:  manifest.UploadID(),
		})
		if abortErr != nil {
			m.logger.Warn("failed upload could not be aborted",
				"bucket", input.Bucket, "object", input.Object,
				"upload_id", manifest.UploadID(), "error", abortErr)
		}
	}

	tracker.Error(err)
	return err
}

// effectivePartSize grows the configured part size when a known total would
// otherwise exceed the service's part-count ceiling.
func (m *UploadManager) effectivePartSize(size int64) int64 {
	partSize := m.partSize
	if size > 0 {
		if minSize := (size + maxPartCount - 1) / maxPartCount; minSize > partSize {
			partSize = minSize
		}
	}
	return partSize
}

// readChunk reads up to partSize bytes. A short (or empty) result means the
// source is exhausted.
func readChunk(r io.Reader, partSize int64) ([]byte, error) {
	buf := make([]byte, partSize)
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
