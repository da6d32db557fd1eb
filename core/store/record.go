package store

import (
	"fmt"
	"strings"
)

// Record maps field names to values. Values are strings, numbers, booleans,
// time.Time, nested maps or lists.
type Record map[string]interface{}

// ID returns the id of the record, or 0 if it has none
func (r Record) ID() int64 {
	if f, ok := toNumber(r[FieldID]); ok {
		return int64(f)
	}
	return 0
}

// Copy returns a deep copy of the record. Nested maps and lists are copied as well.
func (r Record) Copy() Record {
	if r == nil {
		return nil
	}
	return copyValue(map[string]interface{}(r)).(map[string]interface{})
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Record:
		return Record(copyValue(map[string]interface{}(t)).(map[string]interface{}))
	case map[string]interface{}:
		res := make(map[string]interface{}, len(t))
		for k, x := range t {
			res[k] = copyValue(x)
		}
		return res
	case []interface{}:
		res := make([]interface{}, len(t))
		for i, x := range t {
			res[i] = copyValue(x)
		}
		return res
	}
	return v
}

// withoutReserved returns a copy of values without the fields the store maintains
func withoutReserved(values Record) Record {
	res := values.Copy()
	if res == nil {
		res = Record{}
	}
	delete(res, FieldID)
	delete(res, FieldCreateDate)
	delete(res, FieldWriteDate)
	return res
}

// ParseFields splits a comma separated field list. Blanks and duplicates are removed,
// the order is kept.
func ParseFields(s string) []string {
	var fields []string
	seen := map[string]bool{}
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	return fields
}

// Project restricts a stored record to the requested fields. The id is always kept.
// With no fields the whole record is returned. A requested display_name falls back to
// the name and then to "<model>,<id>". Other requested fields that the record does not
// carry are null.
func Project(model string, record Record, fields []string) Record {
	if len(fields) == 0 {
		return record.Copy()
	}
	res := Record{FieldID: record[FieldID]}
	for _, f := range fields {
		switch f {
		case FieldID:
		case FieldDisplayName:
			res[f] = DisplayName(model, record)
		default:
			res[f] = copyValue(record[f])
		}
	}
	return res
}

// DisplayName returns the human readable name of a record
func DisplayName(model string, record Record) interface{} {
	if v := record[FieldDisplayName]; v != nil && v != "" {
		return v
	}
	if v := record[FieldName]; v != nil && v != "" {
		return v
	}
	return fmt.Sprintf("%s,%d", model, record.ID())
}
