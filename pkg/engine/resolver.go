package engine

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Dataset is one named snapshot of application data: field name to scalar
// or nested value. It is an alias so values decoded straight from JSON walk
// without conversion.
type Dataset = map[string]any

// Datasets maps dataset name to dataset, supplied wholly by the caller for
// a single evaluation. The engine only ever reads from it.
type Datasets map[string]Dataset

// Resolve returns the value at a dotted path ("dataset.field[.nested...]"),
// or nil when any segment is absent or a non-terminal segment is not an
// object. Resolution never mutates the datasets and never fails: missing
// data surfaces as nil, and operators treat nil as a failing operand.
func (d Datasets) Resolve(path string) any {
	segs := strings.Split(path, ".")
	root, ok := d[segs[0]]
	if !ok {
		return nil
	}
	var cur any = root
	for _, seg := range segs[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

// ResolveAll resolves a list of paths, preserving input order. Paths that
// resolve to nothing yield nil values, never an error.
func (d Datasets) ResolveAll(paths []string) DependsValues {
	out := make(DependsValues, 0, len(paths))
	for _, p := range paths {
		out = append(out, DependsValue{Path: p, Value: d.Resolve(p)})
	}
	return out
}

// validPath reports whether p has at least two non-empty dot-separated
// segments, the structural minimum for a depends entry.
func validPath(p string) bool {
	segs := strings.Split(p, ".")
	if len(segs) < 2 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

// DependsValue is one resolved depends entry.
type DependsValue struct {
	Path  string
	Value any
}

// DependsValues is the ordered result of resolving a depends list. It
// serializes as a JSON object keyed by the original path strings, with keys
// emitted in input order rather than the random order a Go map would give.
type DependsValues []DependsValue

// Values returns just the resolved values, in input order.
func (d DependsValues) Values() []any {
	out := make([]any, len(d))
	for i, v := range d {
		out[i] = v.Value
	}
	return out
}

// MarshalJSON implements json.Marshaler, emitting an object whose keys
// appear in the order the paths were listed.
func (d DependsValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
