package testutil

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	oserrors "github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/storageapi"
)

// FakeObjectStorage is an in-memory implementation of storageapi.StorageAPI
// for unit tests that need real multipart semantics without a container:
// service-assigned upload ids, paginated listings, content digest
// verification, conditional create-only writes, and commit-time assembly.
//
// All methods are safe for concurrent use.
type FakeObjectStorage struct {
	mu      sync.Mutex
	uploads map[string]*fakeUpload
	objects map[string][]byte
}

type fakeUpload struct {
	namespace string
	bucket    string
	object    string
	created   time.Time
	parts     map[int32]fakePart
}

type fakePart struct {
	etag string
	data []byte
}

// NewFakeObjectStorage creates an empty in-memory storage service.
func NewFakeObjectStorage() *FakeObjectStorage {
	return &FakeObjectStorage{
		uploads: make(map[string]*fakeUpload),
		objects: make(map[string][]byte),
	}
}

// Object returns a stored object's bytes and whether it exists.
func (f *FakeObjectStorage) Object(bucket, object string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[bucket+"/"+object]
	return data, ok
}

// UploadCount returns the number of in-progress multipart uploads.
func (f *FakeObjectStorage) UploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// SeedObject stores an object directly, bypassing the multipart flow.
func (f *FakeObjectStorage) SeedObject(bucket, object string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+object] = data
}

// SeedUpload registers an in-progress upload with pre-stored parts, as if a
// previous assembler had uploaded them, and returns its upload id.
func (f *FakeObjectStorage) SeedUpload(bucket, object string, parts map[int32][]byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	up := &fakeUpload{
		bucket:  bucket,
		object:  object,
		created: time.Now(),
		parts:   make(map[int32]fakePart, len(parts)),
	}
	for number, data := range parts {
		up.parts[number] = fakePart{etag: etagOf(data), data: data}
	}

	id := uuid.NewString()
	f.uploads[id] = up
	return id
}

func (f *FakeObjectStorage) CreateMultipartUpload(
	_ context.Context,
	params *storageapi.CreateMultipartUploadInput,
) (*storageapi.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.NewString()
	f.uploads[id] = &fakeUpload{
		namespace: params.Namespace,
		bucket:    params.Bucket,
		object:    params.Object,
		created:   time.Now(),
		parts:     make(map[int32]fakePart),
	}
	return &storageapi.CreateMultipartUploadOutput{UploadID: id}, nil
}

func (f *FakeObjectStorage) ListMultipartUploads(
	_ context.Context,
	params *storageapi.ListMultipartUploadsInput,
) (*storageapi.ListMultipartUploadsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	summaries := make([]storageapi.MultipartUploadSummary, 0, len(f.uploads))
	for id, up := range f.uploads {
		if up.bucket != params.Bucket {
			continue
		}
		summaries = append(summaries, storageapi.MultipartUploadSummary{
			Object:      up.object,
			UploadID:    id,
			TimeCreated: up.created,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Object != summaries[j].Object {
			return summaries[i].Object < summaries[j].Object
		}
		return summaries[i].UploadID < summaries[j].UploadID
	})

	offset, err := parsePageToken(params.PageToken)
	if err != nil {
		return nil, err
	}
	page, next := paginate(len(summaries), offset, params.Limit)

	return &storageapi.ListMultipartUploadsOutput{
		Items:         summaries[offset:page],
		NextPageToken: next,
	}, nil
}

func (f *FakeObjectStorage) ListMultipartUploadParts(
	_ context.Context,
	params *storageapi.ListMultipartUploadPartsInput,
) (*storageapi.ListMultipartUploadPartsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	up, ok := f.uploads[params.UploadID]
	if !ok {
		return nil, oserrors.NewError("listMultipartUploadParts", oserrors.ErrUploadNotFound).
			WithBucket(params.Bucket).
			WithUploadID(params.UploadID)
	}

	summaries := make([]storageapi.PartSummary, 0, len(up.parts))
	for number, p := range up.parts {
		summaries = append(summaries, storageapi.PartSummary{
			PartNumber: number,
			ETag:       p.etag,
			Size:       int64(len(p.data)),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].PartNumber < summaries[j].PartNumber
	})

	offset, err := parsePageToken(params.PageToken)
	if err != nil {
		return nil, err
	}
	page, next := paginate(len(summaries), offset, params.Limit)

	return &storageapi.ListMultipartUploadPartsOutput{
		Items:         summaries[offset:page],
		NextPageToken: next,
	}, nil
}

func (f *FakeObjectStorage) UploadPart(
	_ context.Context,
	params *storageapi.UploadPartInput,
) (*storageapi.UploadPartOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, fmt.Errorf("reading part body: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	up, ok := f.uploads[params.UploadID]
	if !ok {
		return nil, oserrors.NewError("uploadPart", oserrors.ErrUploadNotFound).
			WithBucket(params.Bucket).
			WithUploadID(params.UploadID)
	}

	if params.ContentMD5 != "" {
		sum := md5.Sum(data)
		if base64.StdEncoding.EncodeToString(sum[:]) != params.ContentMD5 {
			return nil, oserrors.NewObjectError("uploadPart", params.Bucket, params.Object,
				oserrors.ErrChecksumMismatch)
		}
	}

	if params.IfNoneMatch == "*" {
		if _, exists := up.parts[params.PartNumber]; exists {
			return nil, oserrors.NewObjectError("uploadPart", params.Bucket, params.Object,
				oserrors.ErrPartConflict)
		}
	}

	etag := etagOf(data)
	up.parts[params.PartNumber] = fakePart{etag: etag, data: data}
	return &storageapi.UploadPartOutput{ETag: etag}, nil
}

func (f *FakeObjectStorage) CommitMultipartUpload(
	_ context.Context,
	params *storageapi.CommitMultipartUploadInput,
) (*storageapi.CommitMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	up, ok := f.uploads[params.UploadID]
	if !ok {
		return nil, oserrors.NewError("commitMultipartUpload", oserrors.ErrUploadNotFound).
			WithBucket(params.Bucket).
			WithUploadID(params.UploadID)
	}

	objectKey := params.Bucket + "/" + params.Object
	if params.IfNoneMatch == "*" {
		if _, exists := f.objects[objectKey]; exists {
			return nil, oserrors.NewObjectError("commitMultipartUpload", params.Bucket, params.Object,
				oserrors.ErrPreconditionFailed)
		}
	}

	var assembled []byte
	prev := int32(0)
	for _, committed := range params.Parts {
		if committed.PartNumber <= prev {
			return nil, oserrors.NewObjectError("commitMultipartUpload", params.Bucket, params.Object,
				oserrors.ErrInvalidInput).
				WithMessage("parts must be in ascending part-number order")
		}
		prev = committed.PartNumber

		p, exists := up.parts[committed.PartNumber]
		if !exists || p.etag != committed.ETag {
			return nil, oserrors.NewObjectError("commitMultipartUpload", params.Bucket, params.Object,
				oserrors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("part %d is unknown or its etag does not match", committed.PartNumber))
		}
		assembled = append(assembled, p.data...)
	}

	f.objects[objectKey] = assembled
	delete(f.uploads, params.UploadID)
	return &storageapi.CommitMultipartUploadOutput{ETag: etagOf(assembled)}, nil
}

func (f *FakeObjectStorage) AbortMultipartUpload(
	_ context.Context,
	params *storageapi.AbortMultipartUploadInput,
) (*storageapi.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.uploads[params.UploadID]; !ok {
		return nil, oserrors.NewError("abortMultipartUpload", oserrors.ErrUploadNotFound).
			WithBucket(params.Bucket).
			WithUploadID(params.UploadID)
	}

	delete(f.uploads, params.UploadID)
	return &storageapi.AbortMultipartUploadOutput{}, nil
}

var _ storageapi.StorageAPI = (*FakeObjectStorage)(nil)

// etagOf mimics the service's entity tag: the quoted hex MD5 of the payload.
func etagOf(data []byte) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x", md5.Sum(data)))
}

// parsePageToken decodes the fake's numeric continuation token.
func parsePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, oserrors.NewError("list", oserrors.ErrInvalidInput).
			WithMessage("malformed page token")
	}
	return offset, nil
}

// paginate returns the exclusive end index of the page starting at offset and
// the continuation token for the next page, empty on the last page.
func paginate(total, offset int, limit int32) (int, string) {
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+int(limit) < total {
		end = offset + int(limit)
	}
	next := ""
	if end < total {
		next = strconv.Itoa(end)
	}
	return end, next
}
