package store

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Operator is a comparison operator of a search condition
type Operator string

// all supported operators
const (
	OperatorEqual        Operator = "="
	OperatorNotEqual     Operator = "!="
	OperatorLess         Operator = "<"
	OperatorLessEqual    Operator = "<="
	OperatorGreater      Operator = ">"
	OperatorGreaterEqual Operator = ">="
	OperatorIn           Operator = "in"
	OperatorNotIn        Operator = "not in"
)

// Condition is a single search condition. For OperatorIn and OperatorNotIn the value
// must be a slice.
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// Domain is a conjunction of conditions. The empty domain matches every record.
type Domain []Condition

// Where returns a domain with a single condition
func Where(field string, operator Operator, value interface{}) Domain {
	return Domain{{Field: field, Operator: operator, Value: value}}
}

// And returns a new domain with an additional condition
func (d Domain) And(field string, operator Operator, value interface{}) Domain {
	res := make(Domain, len(d), len(d)+1)
	copy(res, d)
	return append(res, Condition{Field: field, Operator: operator, Value: value})
}

// IDEquals returns the domain that selects the record with the given id
func IDEquals(id int64) Domain {
	return Where(FieldID, OperatorEqual, id)
}

// Validate checks that all operators are known and that membership operators have a slice value
func (d Domain) Validate() error {
	for _, c := range d {
		if c.Field == "" {
			return fmt.Errorf("%w: condition without field", ErrInvalidDomain)
		}
		switch c.Operator {
		case OperatorEqual, OperatorNotEqual, OperatorLess, OperatorLessEqual, OperatorGreater, OperatorGreaterEqual:
		case OperatorIn, OperatorNotIn:
			if _, ok := sliceValues(c.Value); !ok {
				return fmt.Errorf("%w: operator '%s' on '%s' needs a list", ErrInvalidDomain, c.Operator, c.Field)
			}
		default:
			return fmt.Errorf("%w: unknown operator '%s'", ErrInvalidDomain, c.Operator)
		}
	}
	return nil
}

// Match returns true if the record satisfies every condition. The domain must be valid.
func (d Domain) Match(record Record) bool {
	for _, c := range d {
		if !c.Match(record) {
			return false
		}
	}
	return true
}

// Match returns true if the record satisfies the condition. A missing field is treated as null.
// Ordering operators never match null or values of different kinds.
func (c Condition) Match(record Record) bool {
	value := record[c.Field]
	switch c.Operator {
	case OperatorEqual:
		return equal(value, c.Value)
	case OperatorNotEqual:
		return !equal(value, c.Value)
	case OperatorIn, OperatorNotIn:
		values, _ := sliceValues(c.Value)
		found := false
		for _, v := range values {
			if equal(value, v) {
				found = true
				break
			}
		}
		return found == (c.Operator == OperatorIn)
	}

	cmp, ok := compare(value, c.Value)
	if !ok {
		return false
	}
	switch c.Operator {
	case OperatorLess:
		return cmp < 0
	case OperatorLessEqual:
		return cmp <= 0
	case OperatorGreater:
		return cmp > 0
	case OperatorGreaterEqual:
		return cmp >= 0
	}
	return false
}

func sliceValues(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	res := make([]interface{}, rv.Len())
	for i := range res {
		res[i] = rv.Index(i).Interface()
	}
	return res, true
}

// toNumber converts all integer and float kinds to float64
func toNumber(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if cmp, ok := compare(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders numbers, strings and timestamps. Timestamps compare against
// RFC 3339 strings as well.
func compare(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if x, ok := toNumber(a); ok {
		y, ok := toNumber(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	ta, aIsTime := toTime(a)
	tb, bIsTime := toTime(b)
	_, aIsString := a.(string)
	_, bIsString := b.(string)
	if aIsTime && bIsTime && !(aIsString && bIsString) {
		return ta.Compare(tb), true
	}
	if aIsString && bIsString {
		return strings.Compare(a.(string), b.(string)), true
	}
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok && x == y {
			return 0, true
		}
	}
	return 0, false
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// ParseTime converts timestamps and strings in RFC 3339, "2006-01-02 15:04:05"
// or "2006-01-02" format to a time.
func ParseTime(v interface{}) (time.Time, bool) {
	return toTime(v)
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
