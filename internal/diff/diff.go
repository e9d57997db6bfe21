// Package diff computes structural deltas between two document form
// snapshots. Comparison is strictly field-level: a changed value is
// reported as (before, after), never as a line-level text diff.
// Nested objects recurse path-wise using /slash/joined pointers.
//
// Snapshots arrive as raw JSON. Plain map decoding would lose the
// field declaration order, so parsing goes through json.Decoder
// tokens and keeps keys in the order they appear in the input. Change
// lists are therefore stable and deterministic: fields in the order
// the `next` snapshot declares them, deletions appended in `base`
// order.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Kind classifies a single field change.
type Kind string

const (
	Added    Kind = "added"
	Modified Kind = "modified"
	Deleted  Kind = "deleted"
)

// FieldChange is one flattened entry of a delta. Before is nil for
// added fields and After is nil for deleted ones. An explicit empty
// string is a real value, not absence: "" -> "x" is modified, while a
// truly missing field -> "x" is added.
type FieldChange struct {
	Path   string `json:"path"`
	Before any    `json:"before"`
	After  any    `json:"after"`
	Kind   Kind   `json:"kind"`
}

// Delta is the structural comparison of two snapshots.
type Delta struct {
	changes []FieldChange
}

// Empty reports whether the two snapshots were identical.
func (d *Delta) Empty() bool { return len(d.changes) == 0 }

// Changes flattens the delta into its ordered field change list.
func (d *Delta) Changes() []FieldChange { return d.changes }

// MarshalJSON serializes the delta as the flat change list, which is
// what revision rows persist.
func (d *Delta) MarshalJSON() ([]byte, error) {
	if d.changes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.changes)
}

// Diff compares two snapshots. Both must be JSON objects; empty or
// nil input is treated as the empty object, matching how a document
// with no content yet diffs against its first filled-in form.
func Diff(base, next json.RawMessage) (*Delta, error) {
	baseObj, err := parseObject(base)
	if err != nil {
		return nil, fmt.Errorf("diff: base snapshot: %w", err)
	}
	nextObj, err := parseObject(next)
	if err != nil {
		return nil, fmt.Errorf("diff: next snapshot: %w", err)
	}
	d := &Delta{}
	d.walk(nil, baseObj, nextObj)
	return d, nil
}

func (d *Delta) walk(path []string, base, next *object) {
	// First pass: next's keys in declaration order.
	for _, key := range next.keys {
		nv := next.vals[key]
		bv, present := base.vals[key]
		p := child(path, key)
		if !present {
			d.emitAdded(p, nv)
			continue
		}
		bo, bIsObj := bv.(*object)
		no, nIsObj := nv.(*object)
		if bIsObj && nIsObj {
			d.walk(p, bo, no)
			continue
		}
		if !equal(bv, nv) {
			d.changes = append(d.changes, FieldChange{
				Path:   pointer(p),
				Before: export(bv),
				After:  export(nv),
				Kind:   Modified,
			})
		}
	}
	// Second pass: keys only base has, in base order.
	for _, key := range base.keys {
		if _, present := next.vals[key]; present {
			continue
		}
		d.emitDeleted(child(path, key), base.vals[key])
	}
}

// child copies the path before extending it; recursion below would
// otherwise clobber sibling paths through the shared backing array.
func child(path []string, key string) []string {
	p := make([]string, len(path), len(path)+1)
	copy(p, path)
	return append(p, key)
}

// emitAdded records an added subtree. Added objects flatten into one
// entry per leaf so e-mail summaries stay per-field.
func (d *Delta) emitAdded(path []string, v any) {
	if o, ok := v.(*object); ok {
		for _, key := range o.keys {
			d.emitAdded(child(path, key), o.vals[key])
		}
		return
	}
	d.changes = append(d.changes, FieldChange{
		Path:  pointer(path),
		After: export(v),
		Kind:  Added,
	})
}

func (d *Delta) emitDeleted(path []string, v any) {
	if o, ok := v.(*object); ok {
		for _, key := range o.keys {
			d.emitDeleted(child(path, key), o.vals[key])
		}
		return
	}
	d.changes = append(d.changes, FieldChange{
		Path:   pointer(path),
		Before: export(v),
		Kind:   Deleted,
	})
}

// equal compares two non-object leaf values. Arrays are opaque values
// here: any element difference replaces the whole field.
func equal(a, b any) bool {
	if ao, ok := a.(*object); ok {
		bo, ok := b.(*object)
		return ok && reflect.DeepEqual(export(ao), export(bo))
	}
	if _, ok := b.(*object); ok {
		return false
	}
	return reflect.DeepEqual(export(a), export(b))
}

// export converts parsed values back into plain JSON-marshalable Go
// values (maps lose ordering, which is fine for before/after payloads).
func export(v any) any {
	switch t := v.(type) {
	case *object:
		m := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			m[k] = export(t.vals[k])
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = export(e)
		}
		return out
	default:
		return v
	}
}

func pointer(path []string) string {
	return "/" + strings.Join(path, "/")
}

// FormatFieldPath turns a pointer such as /party_b/address into a
// label suitable for change-summary e-mails ("Party B / Address").
func FormatFieldPath(path string) string {
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, s := range segs {
		words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
		for j, w := range words {
			if w != "" {
				words[j] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
		segs[i] = strings.Join(words, " ")
	}
	return strings.Join(segs, " / ")
}

// object is a JSON object with its key declaration order retained.
type object struct {
	keys []string
	vals map[string]any
}

func newObject() *object {
	return &object{vals: map[string]any{}}
}

// parseObject decodes raw JSON into an order-preserving object tree.
// nil, empty and "null" input all mean the empty object.
func parseObject(raw json.RawMessage) (*object, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return newObject(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("snapshot is not a JSON object")
	}
	obj, err := parseObjectBody(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after snapshot object")
	}
	return obj, nil
}

// parseObjectBody consumes key/value pairs up to and including the
// closing '}'. The opening '{' has already been read.
func parseObjectBody(dec *json.Decoder) (*object, error) {
	obj := newObject()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string")
		}
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		if _, dup := obj.vals[key]; !dup {
			obj.keys = append(obj.keys, key)
		}
		obj.vals[key] = val
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return obj, nil
}

func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObjectBody(dec)
		case '[':
			var arr []any
			for dec.More() {
				v, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return nil, err
			}
			if arr == nil {
				arr = []any{}
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	default:
		// string, float64, bool or nil.
		return t, nil
	}
}
