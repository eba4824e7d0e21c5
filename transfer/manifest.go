package transfer

import (
	"sort"
	"sync"

	oserrors "github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/storageapi"
)

// partStatus is the lifecycle state of a single part within a manifest.
type partStatus int

const (
	partPending partStatus = iota
	partSucceeded
	partFailed
)

// part is the manifest's record of one submitted part.
type part struct {
	number int32
	etag   string
	status partStatus
}

// MultipartManifest is the thread-safe ledger of a single multipart upload
// session. It assigns part numbers, records per-part outcomes, and reports
// aggregate completion status.
//
// A manifest is created and mutated by a MultipartAssembler; callers hold it
// as a read-mostly observer. All methods are safe for concurrent use.
type MultipartManifest struct {
	uploadID string

	mu       sync.Mutex
	parts    map[int32]*part
	nextPart int32
	aborted  bool
}

// newManifest creates an empty manifest for a fresh upload session.
// Part numbering starts at 1.
func newManifest(uploadID string) *MultipartManifest {
	return &MultipartManifest{
		uploadID: uploadID,
		parts:    make(map[int32]*part),
		nextPart: 1,
	}
}

// UploadID returns the service-assigned identifier of the upload session this
// manifest tracks.
func (m *MultipartManifest) UploadID() string {
	return m.uploadID
}

// NextPartNumber atomically reserves and returns the next unused part number.
// The reservation and the insertion of the pending ledger record are a single
// step: two concurrent callers can never receive the same number, and a reader
// can never observe a part whose number is not fully reserved.
func (m *MultipartManifest) NextPartNumber() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	number := m.nextPart
	m.nextPart++
	m.parts[number] = &part{number: number, status: partPending}
	return number
}

// seedPart records an already-uploaded part discovered during resume as
// Succeeded and advances the next assignable part number past it.
func (m *MultipartManifest) seedPart(number int32, etag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parts[number] = &part{number: number, etag: etag, status: partSucceeded}
	if number >= m.nextPart {
		m.nextPart = number + 1
	}
}

// RecordSuccess marks the given pending part as succeeded with its entity tag.
// Calling it for an unknown or already-resolved part number returns
// ErrInvalidState: that indicates a logic fault in the caller, not a
// recoverable condition. Once the manifest is aborted the call is a harmless
// no-op, since a late-finishing part task must be tolerated after Abort.
func (m *MultipartManifest) RecordSuccess(partNumber int32, etag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.aborted {
		return nil
	}

	p, ok := m.parts[partNumber]
	if !ok || p.status != partPending {
		return oserrors.NewError("recordSuccess", oserrors.ErrInvalidState).
			WithUploadID(m.uploadID).
			WithMessage("part is unknown or already resolved")
	}

	p.status = partSucceeded
	p.etag = etag
	return nil
}

// RecordFailure marks the given pending part as failed. The same resolution
// rules as RecordSuccess apply.
func (m *MultipartManifest) RecordFailure(partNumber int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.aborted {
		return nil
	}

	p, ok := m.parts[partNumber]
	if !ok || p.status != partPending {
		return oserrors.NewError("recordFailure", oserrors.ErrInvalidState).
			WithUploadID(m.uploadID).
			WithMessage("part is unknown or already resolved")
	}

	p.status = partFailed
	return nil
}

// MarkAborted flags the session as aborted. The flag is irreversible: no part
// may transition out of pending afterwards and the upload can never report
// successful.
func (m *MultipartManifest) MarkAborted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted = true
}

// ListCompletedParts returns the succeeded parts ordered by part number.
// The ordering is independent of the order in which part uploads finished;
// it is the order the final object is assembled in.
func (m *MultipartManifest) ListCompletedParts() []storageapi.CommittedPart {
	m.mu.Lock()
	defer m.mu.Unlock()

	completed := make([]storageapi.CommittedPart, 0, len(m.parts))
	for _, p := range m.parts {
		if p.status == partSucceeded {
			completed = append(completed, storageapi.CommittedPart{
				PartNumber: p.number,
				ETag:       p.etag,
			})
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].PartNumber < completed[j].PartNumber
	})
	return completed
}

// ListFailedParts returns the part numbers that ended failed, in ascending
// order, for diagnostics.
func (m *MultipartManifest) ListFailedParts() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	failed := make([]int32, 0)
	for _, p := range m.parts {
		if p.status == partFailed {
			failed = append(failed, p.number)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed
}

// IsUploadComplete reports whether every submitted part has reached a terminal
// outcome. It is a snapshot read and safe to call concurrently with in-flight
// outcome recording.
func (m *MultipartManifest) IsUploadComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.parts {
		if p.status == partPending {
			return false
		}
	}
	return true
}

// IsUploadSuccessful reports whether the upload is complete, no part failed,
// and the session was not aborted.
func (m *MultipartManifest) IsUploadSuccessful() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.aborted {
		return false
	}
	for _, p := range m.parts {
		if p.status != partSucceeded {
			return false
		}
	}
	return true
}

// IsUploadAborted reports whether the session was explicitly aborted.
func (m *MultipartManifest) IsUploadAborted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted
}
