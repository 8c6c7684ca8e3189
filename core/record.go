package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DateTimeLayout is the wire format for timestamp columns.
const DateTimeLayout = "2006-01-02 15:04:05"

// DateLayout is the wire format for date columns.
const DateLayout = "2006-01-02"

// Record is a single row keyed by column name. Storage layers always hand out
// plain Records, never driver rows.
type Record map[string]any

// Copy returns a shallow copy of the record.
func (r Record) Copy() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Without returns a copy of the record with the named keys removed.
func (r Record) Without(keys ...string) Record {
	out := r.Copy()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// MarshalJSON renders timestamps and UUIDs in their wire formats.
func (r Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = encodeValue(v)
	}
	return json.Marshal(out)
}

func encodeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(DateTimeLayout)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(DateTimeLayout)
	case uuid.UUID:
		return val.String()
	case []byte:
		return string(val)
	default:
		return v
	}
}

// Records converts a slice of records into a JSON-friendly slice that is never nil.
func Records(rows []Record) []Record {
	if rows == nil {
		return []Record{}
	}
	return rows
}
