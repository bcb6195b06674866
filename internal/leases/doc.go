// Package leases implements the leases volume (component C4): the
// high-level lookup/add/remove/list/format/rebuild operations that
// integrate package volindex with an external cluster lock manager and
// enforce the three-phase "updating" protocol that makes every mutation
// crash-recoverable.
//
// Usage:
//
//	vol, err := leases.Format(path, time.Now().Unix(), leases.Options{
//	    BlockSize: 512,
//	    Lockspace: "lockspace-1",
//	    Manager:   mgr,
//	})
//	info, err := vol.Add(ctx, "lease-id")
//	info, err = vol.Lookup("lease-id")
//	err = vol.Remove(ctx, "lease-id")
//	err = vol.Close()
//
// # Concurrency
//
// A *Volume is not safe for concurrent use by multiple goroutines - every
// operation reads and mutates the in-memory index and then performs at
// least one synchronous flush to storage. Callers that need concurrent
// access must serialize it themselves (a mutex or a single-goroutine
// actor). Format and Rebuild additionally serialize against each other
// across processes: both acquire an flock(2)-based lock (package fs's
// Locker) on a well-known "<path>.lock" file for the duration of the
// rewrite, since two hosts formatting or rebuilding the same index slot at
// once would corrupt it.
//
// # Error handling
//
// State-machine errors (ErrNoSuchLease, ErrLeaseExists, ErrLeaseUpdating,
// ErrNoSpace) are plain sentinels checked with [errors.Is]. A lease left in
// ErrLeaseUpdating after a crash is not corrupt - it is recoverable by
// [Volume.Rebuild], and a subsequent Add for a different id may reuse the
// slot once rebuild has run. I/O and decode errors (*xerrors.BaseError,
// *xerrors.RecordError) propagate unchanged: this package never retries
// internally, since the updating flag is the only recovery signal and
// blind retries could double-commit a lock manager write.
package leases
