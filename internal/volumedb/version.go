package volumedb

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/calvinalkan/xlease/internal/xerrors"
)

// VersionInfo returns the record for the highest version key in the
// versions bucket. It raises a *xerrors.DBError (ErrorCodeInvalidDatabase)
// if the bucket is empty - a database that passed Open's bucket-presence
// check but was never actually provisioned via Create.
func (db *DB) VersionInfo() (VersionRecord, error) {
	if err := db.checkOpen(); err != nil {
		return VersionRecord{}, err
	}

	var rec VersionRecord

	err := db.entry.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketVersions).Cursor()

		key, value := cursor.Last()
		if key == nil {
			return xerrors.NewDBError(nil, xerrors.ErrorCodeInvalidDatabase, db.path,
				"volumedb: database version not found")
		}

		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("volumedb: decoding version record: %w", err)
		}

		return nil
	})
	if err != nil {
		return VersionRecord{}, err
	}

	return rec, nil
}
