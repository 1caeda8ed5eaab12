// Package resource governs the memory budget of the definition arenas and the
// transfer rate of unification payloads.
//
// # Memory Budget
//
// Every arena page is charged against a shared budget before it is mapped. The
// budget is a weighted semaphore; AcquireMemory never blocks and returns
// ErrMemoryLimitExceeded when the configured total memory would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 16000 * 1024,
//	})
//
//	if err := rc.AcquireMemory(8192); err != nil {
//	    // the measurement ran out of definition memory
//	}
//	defer rc.ReleaseMemory(8192)
//
// # Transfer Limiting
//
// A token bucket throttles the bytes a rank sends to the coordinator during
// unification, so that draining many ranks does not saturate a shared link:
//
//	rc := resource.NewController(resource.Config{
//	    TransferLimitBytesPerSec: 64 << 20,
//	})
//	if err := rc.AcquireTransfer(ctx, len(payload)); err != nil {
//	    return err
//	}
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
