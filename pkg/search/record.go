package search

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var jsonNull = []byte("null")

// Record is a single certificate as returned by the service.
// The schema belongs to the server, so fields are kept as raw JSON in the
// order they appeared on the wire.
type Record struct {
	fields *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{fields: orderedmap.New[string, json.RawMessage]()}
}

// Set adds or replaces a field. A new key is appended after existing keys.
func (r *Record) Set(key string, value json.RawMessage) {
	if r.fields == nil {
		r.fields = orderedmap.New[string, json.RawMessage]()
	}
	r.fields.Set(key, value)
}

// Len returns the number of fields.
func (r Record) Len() int {
	if r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the field names in wire order.
func (r Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	if r.fields == nil {
		return keys
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Raw returns the undecoded JSON value of a field.
func (r Record) Raw(key string) (json.RawMessage, bool) {
	if r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Field returns the value of a field rendered as flat text.
// Strings are unquoted, null becomes "", numbers and booleans keep their wire
// form and arrays/objects are rendered as compact JSON.
func (r Record) Field(key string) (string, bool) {
	raw, ok := r.Raw(key)
	if !ok {
		return "", false
	}
	return renderValue(raw), true
}

// UnmarshalJSON decodes a JSON object while keeping its key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	fields := orderedmap.New[string, json.RawMessage]()
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		r.fields = fields
		return nil
	}
	if err := json.Unmarshal(data, fields); err != nil {
		return err
	}
	r.fields = fields
	return nil
}

func renderValue(raw json.RawMessage) string {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 || bytes.Equal(v, jsonNull) {
		return ""
	}

	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err == nil {
			return buf.String()
		}
	}
	return string(v)
}
