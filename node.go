package rangepatch

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"unicode/utf16"
)

// Kind discriminates the variants of a Node.
type Kind uint8

const (
	ScalarKind Kind = iota
	MappingKind
	SequenceKind
	TextKind
	BytesKind
)

func (k Kind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case MappingKind:
		return "mapping"
	case SequenceKind:
		return "sequence"
	case TextKind:
		return "text"
	case BytesKind:
		return "bytes"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Node is one value of a document tree. Only the payload matching Kind is
// meaningful.
type Node struct {
	Kind Kind

	// MappingKind. Keys records insertion order, used when encoding.
	Fields map[string]*Node
	Keys   []string

	// SequenceKind. A nil item is a hole.
	Items []*Node

	// TextKind
	Text string

	// BytesKind
	Bytes []byte

	// ScalarKind: nil, bool, int64, float64 or an opaque value.
	Value any
}

func NewMapping() *Node {
	return &Node{Kind: MappingKind, Fields: map[string]*Node{}}
}

func NewSequence(items ...*Node) *Node {
	return &Node{Kind: SequenceKind, Items: items}
}

func NewText(s string) *Node {
	return &Node{Kind: TextKind, Text: s}
}

// NewScalar wraps nil, a bool, a number or any opaque value. Go strings and
// byte slices are not scalars; use NewText and NewBytes, or FromValue.
func NewScalar(v any) *Node {
	return &Node{Kind: ScalarKind, Value: normalizeScalar(v)}
}

func NewBytes(b []byte) *Node {
	return &Node{Kind: BytesKind, Bytes: b}
}

// FromValue builds a tree from plain Go values: maps with string keys become
// mappings (keys sorted), slices become sequences, strings become text and
// everything else a scalar. A *Node is returned as is.
func FromValue(v any) *Node {
	switch x := v.(type) {
	case nil:
		return NewScalar(nil)
	case *Node:
		return x
	case string:
		return NewText(x)
	case []byte:
		return NewBytes(x)
	case json.Number:
		return NewScalar(x)
	case []any:
		seq := NewSequence(make([]*Node, len(x))...)
		for i, item := range x {
			seq.Items[i] = FromValue(item)
		}
		return seq
	case map[string]any:
		m := NewMapping()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.mapSet(k, FromValue(x[k]))
		}
		return m
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		seq := NewSequence(make([]*Node, rv.Len())...)
		for i := range rv.Len() {
			seq.Items[i] = FromValue(rv.Index(i).Interface())
		}
		return seq
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := NewMapping()
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			m.mapSet(k.String(), FromValue(rv.MapIndex(k).Interface()))
		}
		return m
	case reflect.String:
		return NewText(rv.String())
	}
	return NewScalar(v)
}

func normalizeScalar(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	}
	return v
}

// Len is the number of entries of a container, the UTF-16 length of text and
// zero for scalars.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case MappingKind:
		return len(n.Fields)
	case SequenceKind:
		return len(n.Items)
	case TextKind:
		return textLen(n.Text)
	case BytesKind:
		return len(n.Bytes)
	}
	return 0
}

// Get returns the child addressed by p, or nil when it is absent (including
// holes) or n is not a container.
func (n *Node) Get(p PathPart) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case MappingKind:
		if k, ok := p.mapKey(); ok {
			return n.Fields[k]
		}
	case SequenceKind:
		if i, ok := p.seqIndex(); ok && i < len(n.Items) {
			return n.Items[i]
		}
	}
	return nil
}

// Lookup follows path from n.
func (n *Node) Lookup(path ...PathPart) (*Node, bool) {
	cur := n
	for _, p := range path {
		cur = cur.Get(p)
		if cur == nil {
			return nil, false
		}
	}
	return cur, cur != nil
}

// Interface converts n to plain Go values: map[string]any, []any (holes are
// nil), string, []byte and the scalar value.
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case MappingKind:
		m := make(map[string]any, len(n.Fields))
		for k, v := range n.Fields {
			m[k] = v.Interface()
		}
		return m
	case SequenceKind:
		s := make([]any, len(n.Items))
		for i, v := range n.Items {
			s[i] = v.Interface()
		}
		return s
	case TextKind:
		return n.Text
	case BytesKind:
		return n.Bytes
	}
	return n.Value
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	res := &Node{Kind: n.Kind, Text: n.Text, Value: n.Value}
	switch n.Kind {
	case MappingKind:
		res.Fields = make(map[string]*Node, len(n.Fields))
		res.Keys = slices.Clone(n.Keys)
		for k, v := range n.Fields {
			res.Fields[k] = v.Clone()
		}
	case SequenceKind:
		res.Items = make([]*Node, len(n.Items))
		for i, v := range n.Items {
			res.Items[i] = v.Clone()
		}
	case BytesKind:
		res.Bytes = slices.Clone(n.Bytes)
	}
	return res
}

func (n *Node) String() string {
	if n == nil {
		return "<absent>"
	}
	d, err := json.Marshal(n)
	if err != nil {
		return fmt.Sprintf("<%s %v>", n.Kind, n.Interface())
	}
	return string(d)
}

func (n *Node) mapSet(k string, v *Node) {
	if n.Fields == nil {
		n.Fields = map[string]*Node{}
	}
	if _, ok := n.Fields[k]; !ok {
		n.Keys = append(n.Keys, k)
	}
	n.Fields[k] = v
}

func (n *Node) mapDelete(k string) bool {
	if _, ok := n.Fields[k]; !ok {
		return false
	}
	delete(n.Fields, k)
	if i := slices.Index(n.Keys, k); i >= 0 {
		n.Keys = slices.Delete(n.Keys, i, i+1)
	}
	return true
}

// orderedKeys returns Keys, falling back to sorted field names when the
// mapping was assembled without going through mapSet.
func (n *Node) orderedKeys() []string {
	if len(n.Keys) == len(n.Fields) {
		return n.Keys
	}
	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// seqSet stores v at i, growing the sequence with holes as needed.
func (n *Node) seqSet(i int, v *Node) {
	if i >= len(n.Items) {
		n.Items = append(n.Items, make([]*Node, i+1-len(n.Items))...)
	}
	n.Items[i] = v
}

// textLen counts UTF-16 code units, the unit text positions are given in.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
