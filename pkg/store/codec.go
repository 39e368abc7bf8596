package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// stringSlice adapts []string to database/sql through lib/pq's array
// codec. pq.StringArray's Value/Scan are pure string-literal conversions
// ("{a,b,c}"), so the same column round-trips unchanged whether the
// backing table is a real Postgres text[] or a SQLite TEXT column storing
// the literal form; only the Postgres-specific && / ANY() predicates in
// a handful of querycat statements require the real array type.
type stringSlice []string

func (s stringSlice) Value() (driver.Value, error) {
	return pq.StringArray(s).Value()
}

func (s *stringSlice) Scan(src interface{}) error {
	return (*pq.StringArray)(s).Scan(src)
}

// jsonObject adapts map[string]interface{} to database/sql via JSON
// encoding for metadata/properties/value columns.
type jsonObject map[string]interface{}

func (o jsonObject) Value() (driver.Value, error) {
	if o == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (o *jsonObject) Scan(src interface{}) error {
	if src == nil {
		*o = nil
		return nil
	}
	raw, err := toBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*o = nil
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("store: scan json object: %w", err)
	}
	*o = out
	return nil
}

func toBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("store: unsupported scan source type %T", src)
	}
}
