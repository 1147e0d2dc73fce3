package models

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row is one heterogeneous data record returned by the backend.
// Key order is the order of the JSON document, which drives "first matching key"
// inference and the CSV header.
type Row struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{m: orderedmap.New[string, any]()}
}

// RowOf builds a row from alternating key/value arguments. Odd trailing keys are ignored.
func RowOf(kv ...any) *Row {
	r := NewRow()
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		r.Set(k, kv[i+1])
	}
	return r
}

// Keys returns the row's keys in document order.
func (r *Row) Keys() []string {
	if r == nil || r.m == nil {
		return nil
	}
	keys := make([]string, 0, r.m.Len())
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Get returns the value stored under key.
func (r *Row) Get(key string) (any, bool) {
	if r == nil || r.m == nil {
		return nil, false
	}
	return r.m.Get(key)
}

// Value returns the value stored under key, or nil.
func (r *Row) Value(key string) any {
	v, _ := r.Get(key)
	return v
}

// Set stores value under key, appending new keys at the end.
func (r *Row) Set(key string, value any) {
	if r.m == nil {
		r.m = orderedmap.New[string, any]()
	}
	r.m.Set(key, value)
}

// Len returns the number of keys.
func (r *Row) Len() int {
	if r == nil || r.m == nil {
		return 0
	}
	return r.m.Len()
}

// MarshalJSON encodes the row keeping key order.
func (r *Row) MarshalJSON() ([]byte, error) {
	if r == nil || r.m == nil {
		return []byte("{}"), nil
	}
	return r.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, any]()
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	r.m = m
	return nil
}

// ParseRows decodes a JSON array of objects. A non-array value yields nil;
// elements that are not objects are dropped.
func ParseRows(raw json.RawMessage) []*Row {
	if !isJSONArray(raw) {
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}

	rows := make([]*Row, 0, len(elems))
	for _, elem := range elems {
		if !isJSONObject(elem) {
			continue
		}
		row := NewRow()
		if err := row.UnmarshalJSON(elem); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
