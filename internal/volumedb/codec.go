package volumedb

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// versionKey formats a schema version as the 10-digit decimal key the
// versions bucket is keyed by, so lexicographic bucket iteration order
// matches numeric version order.
func versionKey(version int) []byte {
	return []byte(fmt.Sprintf("%010d", version))
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("volumedb: encoding %s: %w", key, err)
	}

	return b.Put(key, data)
}

func getJSON(b *bbolt.Bucket, key []byte, v any) (bool, error) {
	data := b.Get(key)
	if data == nil {
		return false, nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("volumedb: decoding %s: %w", key, err)
	}

	return true, nil
}
