package vm

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Dict is a string-keyed mapping that remembers insertion order.
// Setting an existing key replaces its value in place.
type Dict struct {
	keys   []string
	values map[string]any
}

// NewDict creates an empty Dict.
func NewDict() *Dict {
	return &Dict{values: make(map[string]any)}
}

// DictOf builds a Dict from alternating key/value arguments.
func DictOf(kv ...any) *Dict {
	d := NewDict()
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return d
}

func (d *Dict) Set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

func (d *Dict) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Pop removes key and returns its value.
func (d *Dict) Pop(key string) (any, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return v, true
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.keys...)
}

func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Map returns a plain map copy, recursively converting nested Dicts.
func (d *Dict) Map() map[string]any {
	m := make(map[string]any, d.Len())
	for _, k := range d.Keys() {
		m[k] = plain(d.values[k])
	}
	return m
}

func plain(v any) any {
	switch v := v.(type) {
	case *Dict:
		return v.Map()
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = plain(el)
		}
		return out
	}
	return v
}

// FromMap builds a Dict from a plain map with keys sorted, recursively.
func FromMap(m map[string]any) *Dict {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := NewDict()
	for _, k := range keys {
		d.Set(k, fromPlain(m[k]))
	}
	return d
}

func fromPlain(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return FromMap(v)
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = fromPlain(el)
		}
		return out
	case int:
		return int64(v)
	}
	return v
}

// String renders the Dict as compact JSON.
func (d *Dict) String() string {
	s, err := Encode(d)
	if err != nil {
		return fmt.Sprintf("<dict: %v>", err)
	}
	return s
}

// MarshalJSON keeps insertion order when the Dict goes through encoding/json.
func (d *Dict) MarshalJSON() ([]byte, error) {
	s, err := Encode(d)
	return []byte(s), err
}

// TypeName names the kind of an evaluated value for messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64, int, json.Number:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case *Dict:
		return "dict"
	case []any:
		return "array"
	case Callable:
		return "function"
	}
	return fmt.Sprintf("%T", v)
}
