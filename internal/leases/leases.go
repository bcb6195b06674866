package leases

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/calvinalkan/xlease/internal/directio"
	"github.com/calvinalkan/xlease/internal/fs"
	"github.com/calvinalkan/xlease/internal/lockmgr"
	"github.com/calvinalkan/xlease/internal/volindex"
)

// formatRebuildLockTimeout bounds how long Format and Rebuild wait for the
// process-exclusivity lock described in the package doc comment before
// giving up. Both operations rewrite the whole index and are meant to run
// with no other host touching the volume; a held lock almost always means
// another format/rebuild is already in flight. A var, not a const, so
// tests can shrink it rather than wait out the production timeout.
var formatRebuildLockTimeout = 30 * time.Second

// locker is shared by Format and Rebuild for the lock file described in the
// package doc comment. It has no mutable state of its own (see fs.Locker),
// so a package-level instance is safe for concurrent use.
var locker = fs.NewLocker(fs.NewReal())

// lockPath returns the well-known lock file Format and Rebuild serialize
// on for a given volume path. It lives alongside the volume rather than
// inside it since the volume itself is a fixed-size slot with no room for
// extra bookkeeping.
func lockPath(path string) string {
	return path + ".lock"
}

// LeaseInfo is the location a caller passes to the external lock manager to
// acquire or release a lease, plus the bookkeeping fields package leases
// itself exposes through List.
type LeaseInfo struct {
	Lockspace string
	Resource  string
	Path      string
	Offset    int64
	Updating  bool
}

// Options configures Format and Open.
type Options struct {
	// BlockSize is the storage sector size: 512 or 4096.
	BlockSize int
	// Lockspace is the cluster lock manager's lockspace id this volume
	// belongs to.
	Lockspace string
	// Manager is the external cluster lock manager. Required.
	Manager lockmgr.Manager
	// Logger receives structured events for every phase transition. If
	// nil, a no-op logger is used.
	Logger *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}

	return o
}

// Volume is an open leases volume: the combination of a direct-I/O file
// handle (C1), its in-memory index (C3), and the external lock manager
// (consumed, not implemented, by this module) that owns the actual
// mutual exclusion. See the package doc comment for concurrency and error
// handling conventions.
type Volume struct {
	path      string
	blockSize int
	lockspace string
	file      *directio.File
	idx       *volindex.Index
	mgr       lockmgr.Manager
	log       *zap.SugaredLogger
	closed    bool
}

func (v *Volume) indexVolumeBase() int64 {
	return volindex.SlotSize(v.blockSize) // slot 1
}

func (v *Volume) userLeaseOffset(i int) int64 {
	return volindex.UserLeaseOffset(v.blockSize, i)
}

// Path returns the filesystem path this volume was opened from.
func (v *Volume) Path() string {
	return v.path
}

// Lockspace returns the volume's lockspace id.
func (v *Volume) Lockspace() string {
	return v.lockspace
}

// Close releases the volume's file handle. It does not flush anything -
// every mutating operation is durable by the time it returns.
func (v *Volume) Close() error {
	if v.closed {
		return nil
	}

	v.closed = true
	v.idx.Close()

	if err := v.file.Close(); err != nil {
		return fmt.Errorf("leases: closing %s: %w", v.path, err)
	}

	return nil
}

func (v *Volume) checkOpen() error {
	if v.closed {
		return ErrClosed
	}

	return nil
}
