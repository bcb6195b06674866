package volumedb

import (
	"fmt"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/calvinalkan/xlease/internal/xerrors"
)

var (
	bucketVolumes    = []byte("volumes")
	bucketMultipaths = []byte("multipaths")
	bucketVersions   = []byte("versions")
)

// currentSchemaVersion is written by Create. Open does not check it; read
// it back with [DB.VersionInfo].
const currentSchemaVersion = 1

// DB is a handle onto the managed-volume database. Obtain one with [Create]
// or [Open]; release it with Close. Multiple handles on the same path share
// one underlying bbolt environment - see the package doc comment.
type DB struct {
	path  string
	entry *registryEntry
	log   *zap.SugaredLogger

	closed bool
}

// Create provisions a new managed-volume database at path: the bbolt file,
// its three buckets, and an initial version record. Create is idempotent -
// calling it again on an already-provisioned path is a no-op beyond bucket
// creation, which bbolt's CreateBucketIfNotExists already makes idempotent.
func Create(path string) (*DB, error) {
	entry, abs, err := openRegistryEntry(path, false)
	if err != nil {
		return nil, err
	}

	err = entry.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVolumes, bucketMultipaths, bucketVersions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("volumedb: creating bucket %s: %w", name, err)
			}
		}

		versions := tx.Bucket(bucketVersions)
		if versions.Stats().KeyN > 0 {
			return nil
		}

		rec := VersionRecord{
			Version:     currentSchemaVersion,
			Description: "initial managed-volume database",
		}

		return putJSON(versions, versionKey(currentSchemaVersion), rec)
	})
	if err != nil {
		_ = release(abs, entry)

		return nil, xerrors.NewDBError(err, xerrors.ErrorCodeInvalidDatabase, abs, "volumedb: create failed")
	}

	return &DB{path: abs, entry: entry, log: zap.NewNop().Sugar()}, nil
}

// Open returns a handle onto an already-provisioned managed-volume database
// at path. It fails if path does not exist or was never formatted with
// Create.
func Open(path string) (*DB, error) {
	entry, abs, err := openRegistryEntry(path, true)
	if err != nil {
		return nil, err
	}

	err = entry.db.View(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVolumes, bucketMultipaths, bucketVersions} {
			if tx.Bucket(name) == nil {
				return fmt.Errorf("volumedb: missing bucket %s", name)
			}
		}

		return nil
	})
	if err != nil {
		_ = release(abs, entry)

		return nil, xerrors.NewDBError(err, xerrors.ErrorCodeInvalidDatabase, abs,
			"volumedb: not a managed-volume database")
	}

	return &DB{path: abs, entry: entry, log: zap.NewNop().Sugar()}, nil
}

// WithLogger returns a copy of db that logs through log.
func (db *DB) WithLogger(log *zap.SugaredLogger) *DB {
	cp := *db
	cp.log = log

	return &cp
}

// Path returns the absolute filesystem path this handle was opened on.
func (db *DB) Path() string {
	return db.path
}

// Close releases this handle's reference. The underlying bbolt environment
// is closed only when the last reference across the process is released.
// Close is idempotent.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}

	db.closed = true

	if err := release(db.path, db.entry); err != nil {
		return err
	}

	db.log.Infow("closed managed-volume database", "path", db.path)

	return nil
}

func (db *DB) checkOpen() error {
	if db.closed {
		return ErrClosed
	}

	return nil
}
