package rangepatch

import (
	"fmt"
	"strconv"
	"strings"
)

type partKind uint8

const (
	partNone partKind = iota
	partKey
	partIndex
)

// PathPart is one path component: a mapping key or a sequence index. The zero
// PathPart is neither and cannot be walked.
type PathPart struct {
	kind  partKind
	key   string
	index int
}

func Key(k string) PathPart {
	return PathPart{kind: partKey, key: k}
}

func Index(i int) PathPart {
	return PathPart{kind: partIndex, index: i}
}

func (p PathPart) IsKey() bool   { return p.kind == partKey }
func (p PathPart) IsIndex() bool { return p.kind == partIndex }

// AsKey returns the key of a key part.
func (p PathPart) AsKey() (string, bool) {
	return p.key, p.kind == partKey
}

// AsIndex returns the index of an index part.
func (p PathPart) AsIndex() (int, bool) {
	return p.index, p.kind == partIndex
}

func (p PathPart) String() string {
	switch p.kind {
	case partKey:
		return strconv.Quote(p.key)
	case partIndex:
		return strconv.Itoa(p.index)
	}
	return "<invalid>"
}

// mapKey is the mapping key p addresses; indexes address their decimal form.
func (p PathPart) mapKey() (string, bool) {
	switch p.kind {
	case partKey:
		return p.key, true
	case partIndex:
		return strconv.Itoa(p.index), true
	}
	return "", false
}

// seqIndex is the sequence index p addresses; numeric keys are accepted.
func (p PathPart) seqIndex() (int, bool) {
	switch p.kind {
	case partIndex:
		return p.index, p.index >= 0
	case partKey:
		i, err := strconv.Atoi(p.key)
		return i, err == nil && i >= 0
	}
	return 0, false
}

// ParsePath builds a path from strings and ints.
func ParsePath(parts ...any) ([]PathPart, error) {
	path := make([]PathPart, 0, len(parts))
	for _, p := range parts {
		switch x := p.(type) {
		case string:
			path = append(path, Key(x))
		case int:
			path = append(path, Index(x))
		case int64:
			path = append(path, Index(int(x)))
		case PathPart:
			path = append(path, x)
		default:
			return nil, fmt.Errorf("rangepatch: path part %v (%T) is neither a key nor an index: %w", p, p, ErrStructuralAddress)
		}
	}
	return path, nil
}

// MustPath is ParsePath that panics on error.
func MustPath(parts ...any) []PathPart {
	path, err := ParsePath(parts...)
	if err != nil {
		panic(err)
	}
	return path
}

// FormatPath renders path as a JSON Pointer.
func FormatPath(path []PathPart) string {
	var b strings.Builder
	for _, p := range path {
		b.WriteByte('/')
		switch p.kind {
		case partKey:
			b.WriteString(escapePointer(p.key))
		case partIndex:
			b.WriteString(strconv.Itoa(p.index))
		default:
			b.WriteString("<invalid>")
		}
	}
	return b.String()
}

func escapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

type rangeShape uint8

const (
	noRange rangeShape = iota
	partRange
	boundsRange
)

// Range selects the slot an Edit targets and, with the value's presence, the
// operation. It is one of a bare part (KeyRange, IndexRange), a bounds list
// (Span, AppendRange, Bounds) or the zero Range of the empty edit.
type Range struct {
	shape  rangeShape
	part   PathPart
	bounds []*PathPart
}

// At is a bare-part range.
func At(p PathPart) Range {
	return Range{shape: partRange, part: p}
}

func KeyRange(k string) Range { return At(Key(k)) }

// IndexRange addresses the single element i; it is equivalent to Span(i, i+1).
func IndexRange(i int) Range { return At(Index(i)) }

// Span is the half-open index range [start, end).
func Span(start, end int) Range {
	s, e := Index(start), Index(end)
	return Range{shape: boundsRange, bounds: []*PathPart{&s, &e}}
}

// AppendRange is the empty bounds list: add at the end.
func AppendRange() Range {
	return Range{shape: boundsRange, bounds: []*PathPart{}}
}

// Bounds is a raw bounds list as found on the wire. A nil bound is absent.
// Bounds lists other than [] or two present bounds are rejected when applied.
func Bounds(bounds ...*PathPart) Range {
	if bounds == nil {
		bounds = []*PathPart{}
	}
	return Range{shape: boundsRange, bounds: bounds}
}

func (r Range) IsZero() bool { return r.shape == noRange }

// IsAppend reports whether r is the empty append sentinel.
func (r Range) IsAppend() bool { return r.shape == boundsRange && len(r.bounds) == 0 }

// Part returns the bare part of a bare-part range.
func (r Range) Part() (PathPart, bool) { return r.part, r.shape == partRange }

// BoundList returns the bounds of a bounds range.
func (r Range) BoundList() ([]*PathPart, bool) { return r.bounds, r.shape == boundsRange }

func (r Range) String() string {
	switch r.shape {
	case partRange:
		return r.part.String()
	case boundsRange:
		parts := make([]string, len(r.bounds))
		for i, b := range r.bounds {
			if b == nil {
				parts[i] = "null"
				continue
			}
			parts[i] = b.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "<none>"
}

// Edit is a canonical edit. Path names the parent container, Range the slot
// inside it. A nil Value means undefined and selects a delete. The zero Edit
// is the empty edit and applies as a no-op.
type Edit struct {
	Path  []PathPart
	Range Range
	Value *Node
}

// IsEmpty reports whether e is the empty edit: no path, range or value.
func (e Edit) IsEmpty() bool {
	return e.Range.IsZero() && len(e.Path) == 0 && e.Value == nil
}

func (e Edit) String() string {
	if e.IsEmpty() {
		return "[]"
	}
	if e.Value == nil {
		return fmt.Sprintf("[%s %s]", FormatPath(e.Path), e.Range)
	}
	return fmt.Sprintf("[%s %s %s]", FormatPath(e.Path), e.Range, e.Value)
}
