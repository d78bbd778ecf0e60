package rangepatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Wire format: an edit is the JSON tuple [path, range, value?]; [] is the
// empty edit. A range is a bare key or index, or a list of indexes (or keys)
// where null marks an absent bound. A missing value means undefined.

func (p PathPart) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case partKey:
		return json.Marshal(p.key)
	case partIndex:
		return json.Marshal(p.index)
	}
	return nil, fmt.Errorf("rangepatch: cannot encode an invalid path part: %w", ErrStructuralAddress)
}

func (p *PathPart) UnmarshalJSON(d []byte) error {
	var v any
	if err := decodeJSON(d, &v); err != nil {
		return err
	}
	part, err := partFromJSON(v)
	if err != nil {
		return err
	}
	*p = part
	return nil
}

func partFromJSON(v any) (PathPart, error) {
	switch x := v.(type) {
	case string:
		return Key(x), nil
	case json.Number:
		i, err := x.Int64()
		if err != nil || i > math.MaxInt32 || i < math.MinInt32 {
			return PathPart{}, fmt.Errorf("rangepatch: path index %s is not an integer: %w", x, ErrStructuralAddress)
		}
		return Index(int(i)), nil
	}
	return PathPart{}, fmt.Errorf("rangepatch: path part %v is neither a key nor an index: %w", v, ErrStructuralAddress)
}

func (r Range) MarshalJSON() ([]byte, error) {
	switch r.shape {
	case partRange:
		return json.Marshal(r.part)
	case boundsRange:
		return json.Marshal(r.bounds)
	}
	return []byte("null"), nil
}

func (r *Range) UnmarshalJSON(d []byte) error {
	var v any
	if err := decodeJSON(d, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case []any:
		bounds := make([]*PathPart, len(x))
		for i, b := range x {
			if b == nil {
				continue
			}
			p, err := partFromJSON(b)
			if err != nil {
				return err
			}
			bounds[i] = &p
		}
		*r = Bounds(bounds...)
		return nil
	case nil:
		*r = Range{}
		return nil
	}
	p, err := partFromJSON(v)
	if err != nil {
		return err
	}
	*r = At(p)
	return nil
}

func (e Edit) MarshalJSON() ([]byte, error) {
	if e.IsEmpty() {
		return []byte("[]"), nil
	}
	path := e.Path
	if path == nil {
		path = []PathPart{}
	}
	tuple := []any{path, e.Range}
	if e.Value != nil {
		tuple = append(tuple, e.Value)
	}
	return json.Marshal(tuple)
}

func (e *Edit) UnmarshalJSON(d []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(d, &tuple); err != nil {
		return fmt.Errorf("rangepatch: edit is not a JSON array: %w", err)
	}
	*e = Edit{}
	switch len(tuple) {
	case 0:
		return nil
	case 2, 3:
	default:
		return fmt.Errorf("rangepatch: edit must have 0, 2 or 3 elements, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &e.Path); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[1], &e.Range); err != nil {
		return err
	}
	if e.Range.IsZero() {
		return fmt.Errorf("rangepatch: edit range is null: %w", ErrInvalidRange)
	}
	if len(tuple) == 3 {
		v, err := UnmarshalNode(tuple[2])
		if err != nil {
			return err
		}
		e.Value = v
	}
	return nil
}

// DecodeEdits reads consecutive JSON edits, e.g. one per line, until EOF.
func DecodeEdits(r io.Reader) ([]Edit, error) {
	dec := json.NewDecoder(r)
	var edits []Edit
	for {
		var e Edit
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return edits, nil
		}
		if err != nil {
			return edits, fmt.Errorf("rangepatch: edit %d: %w", len(edits), err)
		}
		edits = append(edits, e)
	}
}

func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Interface())
}

// UnmarshalJSON replaces n with the decoded tree. Integers decode to int64,
// other numbers to float64 and null to a nil scalar.
func (n *Node) UnmarshalJSON(d []byte) error {
	v, err := UnmarshalNode(d)
	if err != nil {
		return err
	}
	*n = *v
	return nil
}

// UnmarshalNode decodes one JSON value into a tree.
func UnmarshalNode(d []byte) (*Node, error) {
	var v any
	if err := decodeJSON(d, &v); err != nil {
		return nil, err
	}
	return FromValue(v), nil
}

func decodeJSON(d []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(d))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("rangepatch: invalid JSON: %w", err)
	}
	return nil
}
