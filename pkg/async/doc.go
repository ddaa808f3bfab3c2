// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and error collection.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, 30*time.Second, "retention sweep", func(ctx context.Context) error {
//		// Task code with automatic panic recovery and timeout
//		return store.Cleanup(ctx, policy)
//	})
//
// WorkerPool: Managed pool of concurrent workers
//
//	pool := async.NewWorkerPool(ctx, 10, "archive uploads", time.Minute)
//	defer pool.Shutdown(30 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		return archiveAuditBatch(ctx)
//	})
//
// Batch: Concurrent batch processing
//
//	errs := async.Batch(ctx, batches, 4, "archive uploads", 5*time.Minute,
//		func(ctx context.Context, batch []*Event) error {
//			return uploadArchive(ctx, batch)
//		})
//
// # Features
//
// Panic Recovery: Captures panics with stack traces
// Timeout Enforcement: Per-task timeouts
// Context Cancellation: Respects context cancellation
// Error Collection: Non-blocking error channels
// Graceful Shutdown: Worker draining
//
// # Use Cases
//
// Retention sweeps, archive uploads, cache warming, background cleanup
//
// # Related Packages
//
//   - cmd/lockbox-janitor: Uses SafeGo for scheduled retention runs
//   - pkg/audit: Uses Batch for concurrent archive uploads during cleanup
package async
