package volumedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/calvinalkan/xlease/internal/xerrors"
)

func TestCreate_ThenClose_ThenReopen_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.db")

	db, err := Create(path)
	require.NoError(t, err, "Create should succeed")

	rec := VolumeRecord{ConnectionInfo: map[string]any{"host": "h"}}
	require.NoError(t, db.AddVolume("v1", rec), "AddVolume should succeed")
	require.NoError(t, db.Close(), "Close should succeed")

	reopened, err := Open(path)
	require.NoError(t, err, "Open should succeed after Close")
	defer reopened.Close()

	got, err := reopened.GetVolume("v1")
	require.NoError(t, err, "GetVolume should find the volume written before Close")
	require.Equal(t, "h", got.ConnectionInfo["host"])

	version, err := reopened.VersionInfo()
	require.NoError(t, err, "VersionInfo should succeed")
	require.Equal(t, 1, version.Version)
}

func TestOpen_NonexistentPath_Fails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.db")

	_, err := Open(path)
	require.Error(t, err, "Open should fail for a nonexistent path")
}

func TestCreate_SamePath_SharesUnderlyingHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.db")

	first, err := Create(path)
	require.NoError(t, err, "Create should succeed")
	defer first.Close()

	second, err := Open(path)
	require.NoError(t, err, "Open on the same path should succeed")
	defer second.Close()

	require.Same(t, first.entry, second.entry, "Create and Open on the same path should share a registry entry")

	// Closing the first handle must not tear down the shared environment
	// while the second is still open.
	require.NoError(t, first.Close(), "first Close should succeed")

	_, err = second.GetVolume("anything")
	require.ErrorIs(t, err, ErrNotFound, "second handle should remain usable after first Close")
}

func TestAddVolume_Duplicate(t *testing.T) {
	db := newTestDB(t)

	rec := VolumeRecord{ConnectionInfo: map[string]any{"host": "h1"}}
	require.NoError(t, db.AddVolume("dup", rec), "first AddVolume should succeed")

	err := db.AddVolume("dup", VolumeRecord{ConnectionInfo: map[string]any{"host": "h2"}})

	var existsErr *ExistsError
	require.ErrorAs(t, err, &existsErr, "second AddVolume should return *ExistsError")
	require.Equal(t, "h1", existsErr.Existing.ConnectionInfo["host"], "ExistsError.Existing should carry the first record")
	require.ErrorIs(t, err, ErrVolumeAlreadyExists)
}

func TestRemoveVolume_DeletesMultipathReverseIndex(t *testing.T) {
	db := newTestDB(t)

	rec := VolumeRecord{ConnectionInfo: map[string]any{"host": "h"}, MultipathID: "mpath-0"}
	require.NoError(t, db.AddVolume("v1", rec), "AddVolume should succeed")

	owns, err := db.OwnsMultipath("mpath-0")
	require.NoError(t, err)
	require.True(t, owns, "OwnsMultipath should report true before Remove")

	require.NoError(t, db.RemoveVolume("v1"), "RemoveVolume should succeed")

	// This is the regression check for the known bug: the reverse index
	// lives in the multipaths bucket and must be gone after RemoveVolume,
	// not merely have its volumes-bucket entry (already deleted above)
	// touched a second time.
	owns, err = db.OwnsMultipath("mpath-0")
	require.NoError(t, err)
	require.False(t, owns, "OwnsMultipath(mpath-0) should be false after RemoveVolume(v1)")

	_, err = db.GetVolume("v1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveVolume_Missing(t *testing.T) {
	db := newTestDB(t)

	err := db.RemoveVolume("never-added")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateVolume_MovesMultipathReverseIndex(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.AddVolume("v1", VolumeRecord{MultipathID: "mpath-a"}))
	require.NoError(t, db.UpdateVolume("v1", VolumeRecord{MultipathID: "mpath-b"}))

	owns, err := db.OwnsMultipath("mpath-a")
	require.NoError(t, err)
	require.False(t, owns, "OwnsMultipath(mpath-a) should be false after moving to mpath-b")

	owns, err = db.OwnsMultipath("mpath-b")
	require.NoError(t, err)
	require.True(t, owns, "OwnsMultipath(mpath-b) should be true after the move")
}

func TestUpdateVolume_Missing(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateVolume("never-added", VolumeRecord{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVersionInfo_EmptyVersionsBucket_IsInvalidDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.db")

	db, err := Create(path)
	require.NoError(t, err, "Create should succeed")
	defer db.Close()

	// Simulate a database whose versions bucket was never populated (e.g. a
	// bare bbolt file someone pointed us at) by deleting the version record
	// Create wrote.
	err = db.entry.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVersions).Delete(versionKey(currentSchemaVersion))
	})
	require.NoError(t, err, "clearing versions bucket should succeed")

	_, err = db.VersionInfo()
	require.Error(t, err, "VersionInfo should fail against an empty versions bucket")

	var dbErr *xerrors.DBError
	require.ErrorAs(t, err, &dbErr, "VersionInfo should return *xerrors.DBError")
	require.Equal(t, xerrors.ErrorCodeInvalidDatabase, dbErr.Code())
}

func TestDB_OperationsAfterClose(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "second Close should be idempotent")

	_, err := db.GetVolume("x")
	require.ErrorIs(t, err, ErrClosed)
}

func newTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "volumes.db")

	db, err := Create(path)
	require.NoError(t, err, "Create should succeed")

	t.Cleanup(func() { _ = db.Close() })

	return db
}
