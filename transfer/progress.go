package transfer

// ProgressTracker receives upload progress callbacks from an UploadManager.
//
// Implementations must be safe for concurrent use: Update is invoked from the
// goroutine that slices parts, which may interleave with the caller's own
// reads of tracker state.
type ProgressTracker interface {
	// Update reports cumulative bytes handed off for upload. totalBytes is -1
	// when the overall size is unknown.
	Update(bytesTransferred, totalBytes int64)

	// Complete signals that the whole upload finished successfully.
	Complete()

	// Error signals that the upload failed. It is called at most once and
	// always instead of, never in addition to, Complete.
	Error(err error)
}

// nopTracker is the default tracker when the caller does not supply one.
type nopTracker struct{}

func (nopTracker) Update(bytesTransferred, totalBytes int64) {}
func (nopTracker) Complete()                                 {}
func (nopTracker) Error(err error)                           {}
