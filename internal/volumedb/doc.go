// Package volumedb implements the managed-volume database (component C5):
// a process-wide, reference-counted embedded key/value store with three
// named buckets - volumes, multipaths, versions - holding connection state
// for managed volumes.
//
// Usage:
//
//	db, err := volumedb.Open(path)
//	defer db.Close()
//	err = db.AddVolume(id, volumedb.VolumeRecord{ConnectionInfo: connInfo})
//	rec, err := db.GetVolume(id)
//	err = db.Close()
//
// # Process-wide singleton
//
// bbolt's file lock is per-process: a second *bolt.DB opened on the same
// path from the same process would deadlock against the first one's lock.
// Create and Open therefore hand out *DB handles that share one underlying
// bbolt environment per path, bumping a reference count; Close decrements it
// and only tears down the underlying bbolt environment on the last release.
// Once a handle has been closed, every operation on that handle returns
// [ErrClosed] - a tagged closed state, never a nil dereference.
//
// # Concurrency
//
// DB is safe for concurrent use by multiple goroutines: every mutating
// operation runs inside one bbolt write transaction, and bbolt serializes
// writers internally.
//
// # Error handling
//
// Missing/duplicate entries are plain sentinels ([ErrNotFound],
// [ErrVolumeAlreadyExists], [ErrClosed]) checked with [errors.Is]. Schema or
// file-level corruption raises *xerrors.DBError, since those carry the
// database path and a reason worth logging structurally.
package volumedb
