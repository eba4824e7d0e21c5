// Package objectstorage provides a high-level Go module for assembling large
// objects in cloud object storage from independently uploaded parts. It wraps
// AWS SDK v2 behind a small storage port so the multipart machinery stays
// backend-agnostic.
//
// Key features:
//   - Simple, zero-configuration usage with AWS credential chain
//   - Progressive enhancement through functional options
//   - Asynchronous part uploads on a caller-provided executor
//   - Resume of in-progress multipart uploads with automatic part discovery
//   - Conditional create-only writes for parts and final objects
//   - Comprehensive error handling with context
//
// Example usage:
//
//	client, err := objectstorage.New(ctx)
//	if err != nil {
//	    return err
//	}
//
//	pool := transfer.NewWorkerPool(4)
//	defer pool.Close()
//
//	assembler := client.NewMultipartAssembler("my-bucket", "big/object.bin", false, pool)
//	if _, err := assembler.NewRequest(ctx, "", "", "", nil); err != nil {
//	    return err
//	}
//	for _, chunk := range chunks {
//	    if err := assembler.AddPart(ctx, bytes.NewReader(chunk), int64(len(chunk)), ""); err != nil {
//	        return err
//	    }
//	}
//	if _, err := assembler.Commit(ctx); err != nil {
//	    return err
//	}
package objectstorage
