// Package jsondoc is an order-preserving JSON document model.
//
// Values are nil, bool, json.Number, string, []any and *Object. Object key
// order and the raw text of numbers survive a Parse/encode round trip, which
// keeps commits to the hosted repository free of incidental diffs.
package jsondoc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a JSON object whose keys keep their insertion order.
type Object = orderedmap.OrderedMap[string, any]

// ErrInvalidJSON is returned by Parse for malformed input.
var ErrInvalidJSON = errors.New("jsondoc: invalid json")

// NewObject returns an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// Parse decodes data into the document model.
func Parse(data []byte) (any, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// ParseObject decodes data and requires the top-level value to be an object.
func ParseObject(data []byte) (*Object, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrInvalidJSON)
	}
	return obj, nil
}

func fromResult(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.String:
		return r.Str
	}
	if r.IsArray() {
		out := []any{}
		r.ForEach(func(_, v gjson.Result) bool {
			out = append(out, fromResult(v))
			return true
		})
		return out
	}
	obj := NewObject()
	r.ForEach(func(k, v gjson.Result) bool {
		obj.Set(k.Str, fromResult(v))
		return true
	})
	return obj
}

// Clone returns a deep copy of v.
func Clone(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	case *Object:
		return CloneObject(t)
	default:
		return v
	}
}

// CloneObject returns a deep copy of obj.
func CloneObject(obj *Object) *Object {
	out := NewObject()
	if obj == nil {
		return out
	}
	for p := obj.Oldest(); p != nil; p = p.Next() {
		out.Set(p.Key, Clone(p.Value))
	}
	return out
}

// Equal reports whether a and b are the same document, key order included.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case json.Number:
		y, ok := b.(json.Number)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Object:
		y, ok := b.(*Object)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for p, q := x.Oldest(), y.Oldest(); p != nil; p, q = p.Next(), q.Next() {
			if p.Key != q.Key || !Equal(p.Value, q.Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Keys returns the keys of obj in order.
func Keys(obj *Object) []string {
	keys := make([]string, 0, obj.Len())
	for p := obj.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// String returns obj[key] when it is a string.
func String(obj *Object, key string) string {
	v, _ := obj.Get(key)
	s, _ := v.(string)
	return s
}

// Array returns obj[key] when it is an array.
func Array(obj *Object, key string) ([]any, bool) {
	v, ok := obj.Get(key)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}

// Child returns obj[key] when it is an object.
func Child(obj *Object, key string) (*Object, bool) {
	v, ok := obj.Get(key)
	if !ok {
		return nil, false
	}
	child, ok := v.(*Object)
	return child, ok
}

// EnsureChild returns obj[key], replacing any non-object value with a new
// empty object.
func EnsureChild(obj *Object, key string) *Object {
	if child, ok := Child(obj, key); ok {
		return child
	}
	child := NewObject()
	obj.Set(key, child)
	return child
}

// Strings converts an array of strings into document form.
func Strings(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// StringSlice returns the string elements of arr, skipping anything else.
func StringSlice(arr []any) []string {
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
