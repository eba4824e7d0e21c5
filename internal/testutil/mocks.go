// Package testutil provides shared test helpers: a function-field mock of the
// storage API, an in-memory fake storage service, random data generators, and
// localstack container helpers for integration tests.
package testutil

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/storageapi"
)

// MockStorageAPI is a configurable mock implementation of storageapi.StorageAPI.
// Set the function field for each operation a test exercises; unset operations
// return empty outputs.
type MockStorageAPI struct {
	CreateMultipartUploadFunc func(
		ctx context.Context,
		params *storageapi.CreateMultipartUploadInput,
	) (*storageapi.CreateMultipartUploadOutput, error)

	ListMultipartUploadsFunc func(
		ctx context.Context,
		params *storageapi.ListMultipartUploadsInput,
	) (*storageapi.ListMultipartUploadsOutput, error)

	ListMultipartUploadPartsFunc func(
		ctx context.Context,
		params *storageapi.ListMultipartUploadPartsInput,
	) (*storageapi.ListMultipartUploadPartsOutput, error)

	UploadPartFunc func(
		ctx context.Context,
		params *storageapi.UploadPartInput,
	) (*storageapi.UploadPartOutput, error)

	CommitMultipartUploadFunc func(
		ctx context.Context,
		params *storageapi.CommitMultipartUploadInput,
	) (*storageapi.CommitMultipartUploadOutput, error)

	AbortMultipartUploadFunc func(
		ctx context.Context,
		params *storageapi.AbortMultipartUploadInput,
	) (*storageapi.AbortMultipartUploadOutput, error)
}

// CreateMultipartUpload calls the mocked function or returns an empty output.
func (m *MockStorageAPI) CreateMultipartUpload(
	ctx context.Context,
	params *storageapi.CreateMultipartUploadInput,
) (*storageapi.CreateMultipartUploadOutput, error) {
	if m.CreateMultipartUploadFunc != nil {
		return m.CreateMultipartUploadFunc(ctx, params)
	}
	return &storageapi.CreateMultipartUploadOutput{}, nil
}

// ListMultipartUploads calls the mocked function or returns an empty page.
func (m *MockStorageAPI) ListMultipartUploads(
	ctx context.Context,
	params *storageapi.ListMultipartUploadsInput,
) (*storageapi.ListMultipartUploadsOutput, error) {
	if m.ListMultipartUploadsFunc != nil {
		return m.ListMultipartUploadsFunc(ctx, params)
	}
	return &storageapi.ListMultipartUploadsOutput{}, nil
}

// ListMultipartUploadParts calls the mocked function or returns an empty page.
func (m *MockStorageAPI) ListMultipartUploadParts(
	ctx context.Context,
	params *storageapi.ListMultipartUploadPartsInput,
) (*storageapi.ListMultipartUploadPartsOutput, error) {
	if m.ListMultipartUploadPartsFunc != nil {
		return m.ListMultipartUploadPartsFunc(ctx, params)
	}
	return &storageapi.ListMultipartUploadPartsOutput{}, nil
}

// UploadPart calls the mocked function or returns an empty output.
func (m *MockStorageAPI) UploadPart(
	ctx context.Context,
	params *storageapi.UploadPartInput,
) (*storageapi.UploadPartOutput, error) {
	if m.UploadPartFunc != nil {
		return m.UploadPartFunc(ctx, params)
	}
	return &storageapi.UploadPartOutput{}, nil
}

// CommitMultipartUpload calls the mocked function or returns an empty output.
func (m *MockStorageAPI) CommitMultipartUpload(
	ctx context.Context,
	params *storageapi.CommitMultipartUploadInput,
) (*storageapi.CommitMultipartUploadOutput, error) {
	if m.CommitMultipartUploadFunc != nil {
		return m.CommitMultipartUploadFunc(ctx, params)
	}
	return &storageapi.CommitMultipartUploadOutput{}, nil
}

// AbortMultipartUpload calls the mocked function or returns an empty output.
func (m *MockStorageAPI) AbortMultipartUpload(
	ctx context.Context,
	params *storageapi.AbortMultipartUploadInput,
) (*storageapi.AbortMultipartUploadOutput, error) {
	if m.AbortMultipartUploadFunc != nil {
		return m.AbortMultipartUploadFunc(ctx, params)
	}
	return &storageapi.AbortMultipartUploadOutput{}, nil
}

var _ storageapi.StorageAPI = (*MockStorageAPI)(nil)
