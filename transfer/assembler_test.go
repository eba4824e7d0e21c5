package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oserrors "github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/storageapi"
)

const (
	testBucket = "test-bucket"
	testObject = "path/to/object.bin"
)

// syncExecutor runs tasks inline so tests observe outcomes deterministically.
type syncExecutor struct{}

func (syncExecutor) Submit(task func()) error {
	task()
	return nil
}

// rejectingExecutor refuses all work.
type rejectingExecutor struct{}

func (rejectingExecutor) Submit(task func()) error {
	return oserrors.NewError("submit", oserrors.ErrInvalidState).
		WithMessage("executor is shut down")
}

func newTestAssembler(api storageapi.StorageAPI, opts ...AssemblerOption) *MultipartAssembler {
	return NewMultipartAssembler(api, "", testBucket, testObject, false, syncExecutor{}, opts...)
}

func TestAssemblerNewRequestCreatesSession(t *testing.T) {
	var captured *storageapi.CreateMultipartUploadInput
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, params *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			captured = params
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
	}

	a := newTestAssembler(mock)
	manifest, err := a.NewRequest(context.Background(), "", "en", "gzip", map[string]string{"k": "v"})
	require.NoError(t, err)

	assert.Equal(t, "upload-1", manifest.UploadID())
	require.NotNil(t, captured)
	assert.Equal(t, testBucket, captured.Bucket)
	assert.Equal(t, testObject, captured.Object)
	assert.Equal(t, DefaultContentType, captured.ContentType)
	assert.Equal(t, "en", captured.ContentLanguage)
	assert.Equal(t, "gzip", captured.ContentEncoding)
	assert.Equal(t, map[string]string{"k": "v"}, captured.Metadata)
}

func TestAssemblerInitializesExactlyOnce(t *testing.T) {
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
	}

	a := newTestAssembler(mock)
	_, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	_, err = a.NewRequest(context.Background(), "", "", "", nil)
	assert.True(t, oserrors.IsInvalidState(err))

	_, err = a.ResumeRequest(context.Background(), "upload-1")
	assert.True(t, oserrors.IsInvalidState(err))
}

func TestAssemblerResumeFindsUploadAcrossPages(t *testing.T) {
	gen := testutil.NewTestDataGenerator(1)

	listCalls := 0
	partCalls := 0
	mock := &testutil.MockStorageAPI{
		ListMultipartUploadsFunc: func(
			_ context.Context, params *storageapi.ListMultipartUploadsInput,
		) (*storageapi.ListMultipartUploadsOutput, error) {
			assert.Equal(t, storageapi.DefaultPageLimit, params.Limit)
			listCalls++
			if listCalls == 1 {
				assert.Empty(t, params.PageToken)
				return &storageapi.ListMultipartUploadsOutput{
					Items:         gen.GenerateUploadSummaries(100, "other/object"),
					NextPageToken: "page-2",
				}, nil
			}
			assert.Equal(t, "page-2", params.PageToken)
			return &storageapi.ListMultipartUploadsOutput{
				Items: []storageapi.MultipartUploadSummary{
					{Object: testObject, UploadID: "upload-wanted"},
				},
			}, nil
		},
		ListMultipartUploadPartsFunc: func(
			_ context.Context, params *storageapi.ListMultipartUploadPartsInput,
		) (*storageapi.ListMultipartUploadPartsOutput, error) {
			assert.Equal(t, "upload-wanted", params.UploadID)
			assert.Equal(t, storageapi.DefaultPageLimit, params.Limit)
			partCalls++
			if partCalls == 1 {
				return &storageapi.ListMultipartUploadPartsOutput{
					Items: []storageapi.PartSummary{
						{PartNumber: 1, ETag: `"etag1"`, Size: 5},
						{PartNumber: 2, ETag: `"etag2"`, Size: 5},
					},
					NextPageToken: "parts-2",
				}, nil
			}
			assert.Equal(t, "parts-2", params.PageToken)
			return &storageapi.ListMultipartUploadPartsOutput{
				Items: []storageapi.PartSummary{
					{PartNumber: 5, ETag: `"etag5"`, Size: 5},
				},
			}, nil
		},
	}

	a := newTestAssembler(mock)
	manifest, err := a.ResumeRequest(context.Background(), "upload-wanted")
	require.NoError(t, err)

	assert.Equal(t, 2, listCalls)
	assert.Equal(t, 2, partCalls)
	assert.Equal(t, "upload-wanted", manifest.UploadID())

	completed := manifest.ListCompletedParts()
	require.Len(t, completed, 3)
	assert.Equal(t, int32(5), completed[2].PartNumber)

	// Numbering continues past the highest discovered part.
	assert.Equal(t, int32(6), manifest.NextPartNumber())
}

func TestAssemblerResumeUnknownUploadID(t *testing.T) {
	listCalls := 0
	mock := &testutil.MockStorageAPI{
		ListMultipartUploadsFunc: func(
			_ context.Context, params *storageapi.ListMultipartUploadsInput,
		) (*storageapi.ListMultipartUploadsOutput, error) {
			listCalls++
			if listCalls == 1 {
				return &storageapi.ListMultipartUploadsOutput{
					Items: []storageapi.MultipartUploadSummary{
						{Object: testObject, UploadID: "some-other-upload"},
					},
					NextPageToken: "page-2",
				}, nil
			}
			return &storageapi.ListMultipartUploadsOutput{}, nil
		},
	}

	a := newTestAssembler(mock)
	_, err := a.ResumeRequest(context.Background(), "missing-upload")
	require.Error(t, err)
	assert.True(t, oserrors.IsUploadNotFound(err))
	assert.Equal(t, 2, listCalls, "must exhaust all pages before giving up")
}

func TestAssemblerAddPartCarriesDigestAndCondition(t *testing.T) {
	var captured *storageapi.UploadPartInput
	var body []byte
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
		UploadPartFunc: func(
			_ context.Context, params *storageapi.UploadPartInput,
		) (*storageapi.UploadPartOutput, error) {
			captured = params
			var err error
			body, err = io.ReadAll(params.Body)
			return &storageapi.UploadPartOutput{ETag: `"etag1"`}, err
		},
	}

	a := newTestAssembler(mock)
	_, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	payload := []byte("hello world")
	digest := testutil.Base64MD5(payload)
	require.NoError(t, a.AddPart(context.Background(), bytes.NewReader(payload), int64(len(payload)), digest))

	require.NotNil(t, captured)
	assert.Equal(t, "upload-1", captured.UploadID)
	assert.Equal(t, int32(1), captured.PartNumber)
	assert.Equal(t, digest, captured.ContentMD5)
	assert.Equal(t, "*", captured.IfNoneMatch)
	assert.Equal(t, int64(len(payload)), captured.ContentLength)
	assert.Equal(t, payload, body)
}

func TestAssemblerAddPartValidatesInput(t *testing.T) {
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
	}

	a := newTestAssembler(mock)

	// Before initialization.
	err := a.AddPart(context.Background(), strings.NewReader("x"), 1, "")
	assert.True(t, oserrors.IsInvalidState(err))

	_, err = a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	err = a.AddPart(context.Background(), nil, 1, "")
	assert.True(t, oserrors.IsInvalidInput(err))

	err = a.AddPart(context.Background(), strings.NewReader("x"), -1, "")
	assert.True(t, oserrors.IsInvalidInput(err))
}

func TestAssemblerSwallowsPartFailures(t *testing.T) {
	commitCalled := false
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
		UploadPartFunc: func(
			_ context.Context, params *storageapi.UploadPartInput,
		) (*storageapi.UploadPartOutput, error) {
			if params.PartNumber == 2 {
				return nil, fmt.Errorf("connection reset")
			}
			return &storageapi.UploadPartOutput{ETag: fmt.Sprintf(`"etag%d"`, params.PartNumber)}, nil
		},
		CommitMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CommitMultipartUploadInput,
		) (*storageapi.CommitMultipartUploadOutput, error) {
			commitCalled = true
			return &storageapi.CommitMultipartUploadOutput{}, nil
		},
	}

	a := newTestAssembler(mock)
	manifest, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	// All three AddPart calls succeed even though part 2's upload fails.
	for i := 0; i < 3; i++ {
		require.NoError(t, a.AddPart(context.Background(), strings.NewReader("data!"), 5, ""))
	}

	assert.True(t, manifest.IsUploadComplete())
	assert.False(t, manifest.IsUploadSuccessful())
	assert.Equal(t, []int32{2}, manifest.ListFailedParts())

	_, err = a.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, oserrors.IsInvalidState(err))
	assert.False(t, commitCalled, "commit endpoint must not be called with failed parts")

	// The failed commit still finalized the session.
	err = a.AddPart(context.Background(), strings.NewReader("x"), 1, "")
	assert.True(t, oserrors.IsInvalidState(err))
	_, err = a.Abort(context.Background())
	assert.True(t, oserrors.IsInvalidState(err))
}

func TestAssemblerCommitSendsPartsInOrder(t *testing.T) {
	var captured *storageapi.CommitMultipartUploadInput
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
		UploadPartFunc: func(
			_ context.Context, params *storageapi.UploadPartInput,
		) (*storageapi.UploadPartOutput, error) {
			return &storageapi.UploadPartOutput{ETag: fmt.Sprintf(`"etag%d"`, params.PartNumber)}, nil
		},
		CommitMultipartUploadFunc: func(
			_ context.Context, params *storageapi.CommitMultipartUploadInput,
		) (*storageapi.CommitMultipartUploadOutput, error) {
			captured = params
			return &storageapi.CommitMultipartUploadOutput{ETag: `"final"`}, nil
		},
	}

	a := newTestAssembler(mock)
	_, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	require.NoError(t, a.AddPart(context.Background(), strings.NewReader("aaaaa"), 5, ""))
	require.NoError(t, a.AddPart(context.Background(), strings.NewReader("bbbbb"), 5, ""))

	out, err := a.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `"final"`, out.ETag)

	require.NotNil(t, captured)
	require.Len(t, captured.Parts, 2)
	assert.Equal(t, storageapi.CommittedPart{PartNumber: 1, ETag: `"etag1"`}, captured.Parts[0])
	assert.Equal(t, storageapi.CommittedPart{PartNumber: 2, ETag: `"etag2"`}, captured.Parts[1])
	assert.Equal(t, "*", captured.IfNoneMatch, "overwrite disabled means conditional commit")
}

func TestAssemblerCommitAllowsOverwrite(t *testing.T) {
	var captured *storageapi.CommitMultipartUploadInput
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
		UploadPartFunc: func(
			_ context.Context, _ *storageapi.UploadPartInput,
		) (*storageapi.UploadPartOutput, error) {
			return &storageapi.UploadPartOutput{ETag: `"etag"`}, nil
		},
		CommitMultipartUploadFunc: func(
			_ context.Context, params *storageapi.CommitMultipartUploadInput,
		) (*storageapi.CommitMultipartUploadOutput, error) {
			captured = params
			return &storageapi.CommitMultipartUploadOutput{}, nil
		},
	}

	a := NewMultipartAssembler(mock, "", testBucket, testObject, true, syncExecutor{})
	_, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)
	require.NoError(t, a.AddPart(context.Background(), strings.NewReader("x"), 1, ""))

	_, err = a.Commit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, captured.IfNoneMatch)
}

func TestAssemblerCommitWaitsForInflightParts(t *testing.T) {
	fake := testutil.NewFakeObjectStorage()

	pool := NewWorkerPool(4)
	defer pool.Close()

	a := NewMultipartAssembler(fake, "", testBucket, testObject, false, pool)
	manifest, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	gen := testutil.NewTestDataGenerator(42)
	var want []byte
	for i := 0; i < 8; i++ {
		data := gen.GeneratePartData(1024)
		want = append(want, data...)
		require.NoError(t, a.AddPart(
			context.Background(), bytes.NewReader(data), int64(len(data)), testutil.Base64MD5(data),
		))
	}

	_, err = a.Commit(context.Background())
	require.NoError(t, err)
	assert.True(t, manifest.IsUploadSuccessful())

	got, ok := fake.Object(testBucket, testObject)
	require.True(t, ok)
	assert.Equal(t, want, got, "parts must assemble in part-number order")
	assert.Zero(t, fake.UploadCount())
}

func TestAssemblerAddPartFromFile(t *testing.T) {
	memFS := billy.NewInMemoryFS()
	require.NoError(t, memFS.MkdirAll("/parts", 0o755))
	require.NoError(t, memFS.WriteFile("/parts/chunk1.bin", []byte("first chunk"), 0o644))

	fake := testutil.NewFakeObjectStorage()
	a := NewMultipartAssembler(fake, "", testBucket, testObject, false, syncExecutor{},
		WithFilesystem(memFS))

	_, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	require.NoError(t, a.AddPartFromFile(context.Background(), "/parts/chunk1.bin", ""))

	// Stat failures surface synchronously and reserve no part number.
	err = a.AddPartFromFile(context.Background(), "/parts/missing.bin", "")
	require.Error(t, err)

	err = a.AddPartFromFile(context.Background(), "/parts", "")
	assert.True(t, oserrors.IsInvalidInput(err))

	_, err = a.Commit(context.Background())
	require.NoError(t, err)

	got, ok := fake.Object(testBucket, testObject)
	require.True(t, ok)
	assert.Equal(t, []byte("first chunk"), got)
}

func TestAssemblerResumeAndFinishUpload(t *testing.T) {
	fake := testutil.NewFakeObjectStorage()
	uploadID := fake.SeedUpload(testBucket, testObject, map[int32][]byte{
		1: []byte("first"),
		2: []byte("second"),
	})

	a := newTestAssembler(fake)
	manifest, err := a.ResumeRequest(context.Background(), uploadID)
	require.NoError(t, err)
	require.Len(t, manifest.ListCompletedParts(), 2)

	require.NoError(t, a.AddPart(context.Background(), strings.NewReader("third"), 5, ""))

	_, err = a.Commit(context.Background())
	require.NoError(t, err)

	got, ok := fake.Object(testBucket, testObject)
	require.True(t, ok)
	assert.Equal(t, []byte("firstsecondthird"), got)
}

func TestAssemblerExecutorRejectionRecordsFailure(t *testing.T) {
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
	}

	a := NewMultipartAssembler(mock, "", testBucket, testObject, false, rejectingExecutor{})
	manifest, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	err = a.AddPart(context.Background(), strings.NewReader("x"), 1, "")
	require.Error(t, err)
	assert.Equal(t, []int32{1}, manifest.ListFailedParts())
}

func TestAssemblerAbort(t *testing.T) {
	aborted := false
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
		AbortMultipartUploadFunc: func(
			_ context.Context, params *storageapi.AbortMultipartUploadInput,
		) (*storageapi.AbortMultipartUploadOutput, error) {
			aborted = true
			assert.Equal(t, "upload-1", params.UploadID)
			return &storageapi.AbortMultipartUploadOutput{}, nil
		},
	}

	a := newTestAssembler(mock)
	manifest, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	_, err = a.Abort(context.Background())
	require.NoError(t, err)
	assert.True(t, aborted)
	assert.True(t, manifest.IsUploadAborted())

	// Finalized: every lifecycle call now fails.
	err = a.AddPart(context.Background(), strings.NewReader("x"), 1, "")
	assert.True(t, oserrors.IsInvalidState(err))
	_, err = a.Commit(context.Background())
	assert.True(t, oserrors.IsInvalidState(err))
	_, err = a.Abort(context.Background())
	assert.True(t, oserrors.IsInvalidState(err))
}

func TestAssemblerAbortFailureLeavesSessionActive(t *testing.T) {
	abortCalls := 0
	mock := &testutil.MockStorageAPI{
		CreateMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.CreateMultipartUploadInput,
		) (*storageapi.CreateMultipartUploadOutput, error) {
			return &storageapi.CreateMultipartUploadOutput{UploadID: "upload-1"}, nil
		},
		AbortMultipartUploadFunc: func(
			_ context.Context, _ *storageapi.AbortMultipartUploadInput,
		) (*storageapi.AbortMultipartUploadOutput, error) {
			abortCalls++
			if abortCalls == 1 {
				return nil, fmt.Errorf("service unavailable")
			}
			return &storageapi.AbortMultipartUploadOutput{}, nil
		},
	}

	a := newTestAssembler(mock)
	manifest, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	_, err = a.Abort(context.Background())
	require.Error(t, err)
	assert.False(t, manifest.IsUploadAborted())

	// Retry succeeds.
	_, err = a.Abort(context.Background())
	require.NoError(t, err)
	assert.True(t, manifest.IsUploadAborted())
}

func TestAssemblerConcurrentAddParts(t *testing.T) {
	fake := testutil.NewFakeObjectStorage()

	pool := NewWorkerPool(8)
	defer pool.Close()

	a := NewMultipartAssembler(fake, "", testBucket, testObject, false, pool)
	manifest, err := a.NewRequest(context.Background(), "", "", "", nil)
	require.NoError(t, err)

	const parts = 20
	var wg sync.WaitGroup
	for i := 0; i < parts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			data := []byte(fmt.Sprintf("part-%02d", n))
			assert.NoError(t, a.AddPart(context.Background(), bytes.NewReader(data), int64(len(data)), ""))
		}(i)
	}
	wg.Wait()

	_, err = a.Commit(context.Background())
	require.NoError(t, err)

	completed := manifest.ListCompletedParts()
	require.Len(t, completed, parts)
	for i, p := range completed {
		assert.Equal(t, int32(i+1), p.PartNumber)
	}
}
