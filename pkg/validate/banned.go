package validate

import (
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// RejectBannedKeys walks metadata recursively (including nested objects
// and arrays of objects) and fails on any key in contracts.BannedMetadataKeys,
// regardless of depth or entity type. These keys are rejected
// unconditionally because they carry no legitimate meaning as entity
// metadata and their presence is far more likely to be a prototype
// pollution probe than an accident.
func RejectBannedKeys(metadata map[string]interface{}) error {
	return walkBanned(metadata, "")
}

func walkBanned(v interface{}, path string) error {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if contracts.BannedMetadataKeys[k] {
				return contracts.InvalidInput(joinPath(path, k), fmt.Sprintf("metadata key %q is not allowed", k))
			}
			if err := walkBanned(val, joinPath(path, k)); err != nil {
				return err
			}
		}
	case []interface{}:
		for i, val := range t {
			if err := walkBanned(val, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
