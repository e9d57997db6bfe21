package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Apply replays a change list onto a base snapshot and returns the
// resulting snapshot. Added and modified entries set their path to
// the After value, deleted entries remove it. Field order of the base
// is preserved; new fields append at the end of their object.
//
// The workflow itself never patches snapshots (every revision stores
// the complete new form), but Apply makes the diff verifiable: for
// scalar field changes, Apply(base, Diff(base, next).Changes())
// reconstructs next's differing fields exactly.
func Apply(base json.RawMessage, changes []FieldChange) (json.RawMessage, error) {
	obj, err := parseObject(base)
	if err != nil {
		return nil, fmt.Errorf("diff: apply base: %w", err)
	}
	for _, ch := range changes {
		segs := strings.Split(strings.TrimPrefix(ch.Path, "/"), "/")
		if len(segs) == 0 || segs[0] == "" {
			return nil, fmt.Errorf("diff: apply: bad path %q", ch.Path)
		}
		switch ch.Kind {
		case Added, Modified:
			if err := obj.set(segs, ch.After); err != nil {
				return nil, err
			}
		case Deleted:
			obj.delete(segs)
		default:
			return nil, fmt.Errorf("diff: apply: unknown change kind %q", ch.Kind)
		}
	}
	return json.Marshal(obj)
}

// set walks intermediate segments, creating nested objects as needed,
// and stores the leaf value.
func (o *object) set(segs []string, v any) error {
	key := segs[0]
	if len(segs) == 1 {
		if _, exists := o.vals[key]; !exists {
			o.keys = append(o.keys, key)
		}
		o.vals[key] = v
		return nil
	}
	cur, exists := o.vals[key]
	if !exists {
		cur = newObject()
		o.keys = append(o.keys, key)
		o.vals[key] = cur
	}
	nested, ok := cur.(*object)
	if !ok {
		return fmt.Errorf("diff: apply: %q is not an object", key)
	}
	return nested.set(segs[1:], v)
}

func (o *object) delete(segs []string) {
	key := segs[0]
	if len(segs) > 1 {
		if nested, ok := o.vals[key].(*object); ok {
			nested.delete(segs[1:])
		}
		return
	}
	if _, exists := o.vals[key]; !exists {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// MarshalJSON writes the object with its keys in declaration order.
func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
