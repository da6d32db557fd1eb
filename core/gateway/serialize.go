package gateway

import (
	"time"

	"github.com/relabs-tech/modelgate/core/store"
)

// serialize converts every time value to an ISO-8601 string in UTC, recursively
// through maps and lists. Other values are returned unchanged.
func serialize(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case store.Record:
		return serializeMap(t)
	case map[string]interface{}:
		return serializeMap(t)
	case []interface{}:
		res := make([]interface{}, len(t))
		for i, x := range t {
			res[i] = serialize(x)
		}
		return res
	case []store.Record:
		return serializeRecords(t)
	}
	return v
}

func serializeMap(m map[string]interface{}) map[string]interface{} {
	res := make(map[string]interface{}, len(m))
	for k, x := range m {
		res[k] = serialize(x)
	}
	return res
}

func serializeRecords(records []store.Record) []map[string]interface{} {
	res := make([]map[string]interface{}, len(records))
	for i, r := range records {
		res[i] = serializeMap(r)
	}
	return res
}
