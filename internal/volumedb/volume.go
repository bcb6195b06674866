package volumedb

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// GetVolume returns the record stored for id, or [ErrNotFound] if none
// exists.
func (db *DB) GetVolume(id string) (VolumeRecord, error) {
	if err := db.checkOpen(); err != nil {
		return VolumeRecord{}, err
	}

	var rec VolumeRecord

	err := db.entry.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketVolumes), []byte(id), &rec)
		if err != nil {
			return err
		}

		if !found {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		return VolumeRecord{}, err
	}

	return rec, nil
}

// AddVolume creates a new record for id with the given connection info. It
// returns an *[ExistsError] (wrapping [ErrVolumeAlreadyExists]) if id is
// already present. If rec.MultipathID is set, a reverse-lookup entry is
// written to the multipaths bucket in the same transaction.
func (db *DB) AddVolume(id string, rec VolumeRecord) error {
	if err := db.checkOpen(); err != nil {
		return err
	}

	return db.entry.db.Update(func(tx *bbolt.Tx) error {
		volumes := tx.Bucket(bucketVolumes)

		var existing VolumeRecord

		found, err := getJSON(volumes, []byte(id), &existing)
		if err != nil {
			return err
		}

		if found {
			return &ExistsError{ID: id, Existing: existing}
		}

		if err := putJSON(volumes, []byte(id), rec); err != nil {
			return err
		}

		if rec.MultipathID != "" {
			if err := tx.Bucket(bucketMultipaths).Put([]byte(rec.MultipathID), []byte(id)); err != nil {
				return fmt.Errorf("volumedb: writing multipath reverse index for %s: %w", id, err)
			}
		}

		return nil
	})
}

// UpdateVolume replaces the record stored for id. It fails with
// [ErrNotFound] if id does not already have a record - use AddVolume to
// create one. If rec.MultipathID differs from the stored record's, the
// multipaths reverse index is updated to match: the old entry (if any) is
// removed and the new one written, in the same transaction.
func (db *DB) UpdateVolume(id string, rec VolumeRecord) error {
	if err := db.checkOpen(); err != nil {
		return err
	}

	return db.entry.db.Update(func(tx *bbolt.Tx) error {
		volumes := tx.Bucket(bucketVolumes)

		var existing VolumeRecord

		found, err := getJSON(volumes, []byte(id), &existing)
		if err != nil {
			return err
		}

		if !found {
			return ErrNotFound
		}

		if err := putJSON(volumes, []byte(id), rec); err != nil {
			return err
		}

		multipaths := tx.Bucket(bucketMultipaths)

		if existing.MultipathID != "" && existing.MultipathID != rec.MultipathID {
			if err := multipaths.Delete([]byte(existing.MultipathID)); err != nil {
				return fmt.Errorf("volumedb: clearing old multipath reverse index for %s: %w", id, err)
			}
		}

		if rec.MultipathID != "" {
			if err := multipaths.Put([]byte(rec.MultipathID), []byte(id)); err != nil {
				return fmt.Errorf("volumedb: writing multipath reverse index for %s: %w", id, err)
			}
		}

		return nil
	})
}

// RemoveVolume deletes the record stored for id, along with its multipath
// reverse-index entry if one exists.
//
// The reverse index is stored in the multipaths bucket, keyed by multipath
// id, value the volume id - so removing it means deleting from multipaths,
// not volumes. A prior implementation of this operation deleted the key
// from the volumes bucket instead, which left a stale multipaths entry
// behind (a multipath id continuing to resolve to a volume that no longer
// exists) and did nothing to the volumes bucket's own key (already deleted
// by the same call, under the wrong bucket, as a no-op). Fixed here by
// deleting from the correct bucket.
func (db *DB) RemoveVolume(id string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}

	return db.entry.db.Update(func(tx *bbolt.Tx) error {
		volumes := tx.Bucket(bucketVolumes)

		var existing VolumeRecord

		found, err := getJSON(volumes, []byte(id), &existing)
		if err != nil {
			return err
		}

		if !found {
			return ErrNotFound
		}

		if err := volumes.Delete([]byte(id)); err != nil {
			return fmt.Errorf("volumedb: deleting volume %s: %w", id, err)
		}

		if existing.MultipathID == "" {
			return nil
		}

		if err := tx.Bucket(bucketMultipaths).Delete([]byte(existing.MultipathID)); err != nil {
			return fmt.Errorf("volumedb: deleting multipath reverse index for %s: %w", id, err)
		}

		return nil
	})
}

// OwnsMultipath reports whether multipathID's reverse-index entry points at
// a volume this database still has a record for.
func (db *DB) OwnsMultipath(multipathID string) (bool, error) {
	if err := db.checkOpen(); err != nil {
		return false, err
	}

	var owns bool

	err := db.entry.db.View(func(tx *bbolt.Tx) error {
		volumeID := tx.Bucket(bucketMultipaths).Get([]byte(multipathID))
		if volumeID == nil {
			return nil
		}

		owns = tx.Bucket(bucketVolumes).Get(volumeID) != nil

		return nil
	})

	return owns, err
}
