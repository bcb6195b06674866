package volumedb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.etcd.io/bbolt"

	"github.com/calvinalkan/xlease/internal/xerrors"
)

// registryEntry is the process-wide state shared by every *DB handle open
// on the same path. bbolt's own file lock only tolerates one *bbolt.DB per
// process per file - a second open in the same process blocks on the lock
// held by the first - so every DB on a given path shares one underlying
// *bbolt.DB, reference counted.
type registryEntry struct {
	db        *bbolt.DB
	openCount atomic.Int32
}

var registry sync.Map // map[string]*registryEntry, keyed by absolute path

// openRegistryEntry returns the shared entry for path, opening the
// underlying bbolt file if no entry exists yet. If mustExist is true and
// path does not exist, it fails without creating anything.
func openRegistryEntry(path string, mustExist bool) (*registryEntry, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("volumedb: resolving path %s: %w", path, err)
	}

	for {
		if v, ok := registry.Load(abs); ok {
			entry := v.(*registryEntry) //nolint:forcetypeassert // registry only ever stores *registryEntry

			for {
				old := entry.openCount.Load()
				if old <= 0 {
					// Entry is being torn down by the last Close; retry
					// against whatever replaces it.
					break
				}

				if entry.openCount.CompareAndSwap(old, old+1) {
					return entry, abs, nil
				}
			}

			continue
		}

		if mustExist {
			if _, err := os.Stat(abs); err != nil {
				return nil, "", xerrors.NewDBError(err, xerrors.ErrorCodeInvalidDatabase, abs,
					fmt.Sprintf("volumedb: %s does not exist", abs))
			}
		}

		db, err := bbolt.Open(abs, 0o600, nil)
		if err != nil {
			return nil, "", xerrors.NewDBError(err, xerrors.ErrorCodeInvalidDatabase, abs,
				fmt.Sprintf("volumedb: opening %s", abs))
		}

		entry := &registryEntry{db: db}
		entry.openCount.Store(1)

		actual, loaded := registry.LoadOrStore(abs, entry)
		if loaded {
			// Lost the race: another goroutine created the entry first.
			_ = db.Close()

			existing := actual.(*registryEntry) //nolint:forcetypeassert
			if existing.openCount.Add(1) > 1 {
				return existing, abs, nil
			}
			// existing was being torn down concurrently; retry from scratch.
			continue
		}

		return entry, abs, nil
	}
}

// release decrements the entry's reference count and tears down the
// underlying bbolt file once the last reference is gone.
func release(abs string, entry *registryEntry) error {
	if entry.openCount.Add(-1) > 0 {
		return nil
	}

	registry.CompareAndDelete(abs, entry)

	if err := entry.db.Close(); err != nil {
		return fmt.Errorf("volumedb: closing %s: %w", abs, err)
	}

	return nil
}
