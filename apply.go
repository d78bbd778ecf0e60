package rangepatch

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/kevinwang15/rangepatch/internal/debug"
)

// objectReplacement stands in for non-text items spliced into text.
const objectReplacement = "\ufffc"

// Apply applies e to the tree under root, in place. Containers missing along
// the path are created: a mapping when the next part is a key, a sequence
// when it is an index.
//
// The final step is chosen from the range and the value:
//
//	root mapping, no key left, bounds ["k", ...]   delete root["k"]
//	bounds or bare index, no key left              ErrStructuralAddress
//	bounds or bare index                           splice target[key]
//	bare key, no key left                          put/delete target[range]
//	bare key                                       put/delete target[key][range]
//
// A splice deletes when the value is nil, appends for [], inserts when
// start == end and replaces otherwise. Edits into a text parent are ignored.
//
// Apply is not safe for concurrent use on the same tree. On error the tree
// keeps whatever containers were created before the failing step.
func Apply(root *Node, e Edit) error {
	var a applier
	return a.apply(root, e)
}

// ApplyAll applies edits in order, stopping at the first error.
func ApplyAll(root *Node, edits ...Edit) error {
	for i, e := range edits {
		if err := Apply(root, e); err != nil {
			return fmt.Errorf("edit %d: %w", i, err)
		}
	}
	return nil
}

type spliceOp uint8

const (
	opNoop spliceOp = iota
	opDelete
	opAppend
	opInsert
	opReplace
)

func (o spliceOp) String() string {
	return [...]string{"noop", "delete", "append", "insert", "replace"}[o]
}

func classify(zeroLength bool, lo, hi PathPart, val *Node) spliceOp {
	switch {
	case val == nil && zeroLength:
		return opNoop
	case val == nil:
		return opDelete
	case zeroLength:
		return opAppend
	case lo == hi:
		return opInsert
	}
	return opReplace
}

// patchOp is an RFC 6902 operation recorded while applying.
type patchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// applier walks one edit. With record set it also collects the JSON Patch
// operations equivalent to each mutation it makes.
type applier struct {
	record bool
	ops    []patchOp
	err    error
}

func (a *applier) emit(op, ptr string, v *Node) {
	if !a.record {
		return
	}
	o := patchOp{Op: op, Path: ptr}
	if op != "remove" {
		d, err := json.Marshal(v)
		if err != nil && a.err == nil {
			a.err = fmt.Errorf("rangepatch: cannot encode value for %s %s: %w", op, ptr, err)
		}
		o.Value = d
	}
	a.ops = append(a.ops, o)
}

func (a *applier) apply(root *Node, e Edit) error {
	if e.IsEmpty() {
		debug.Logf("empty edit")
		return nil
	}
	if e.Range.IsZero() {
		return fmt.Errorf("rangepatch: edit %s has no range: %w", e, ErrInvalidRange)
	}
	if root == nil {
		return fmt.Errorf("rangepatch: nil document root: %w", ErrStructuralAddress)
	}
	debug.Logf("apply %s", e)

	target, ptr := root, ""
	n := len(e.Path)
	for i := 0; i < n-1; i++ {
		key, next := e.Path[i], e.Path[i+1]
		child, err := childOf(target, ptr, key)
		if err != nil {
			return err
		}
		if child == nil {
			switch next.kind {
			case partKey:
				child = NewMapping()
			case partIndex:
				child = NewSequence()
			default:
				return fmt.Errorf("rangepatch: cannot decide what to create at %s for next part %s: %w",
					where(join(ptr, key)), next, ErrStructuralAddress)
			}
			if err := a.setChild(target, ptr, key, child); err != nil {
				return err
			}
		}
		target, ptr = child, join(ptr, key)
	}
	if n == 0 {
		return a.final(target, ptr, PathPart{}, false, e.Range, e.Value)
	}
	return a.final(target, ptr, e.Path[n-1], true, e.Range, e.Value)
}

func (a *applier) final(target *Node, ptr string, key PathPart, hasKey bool, r Range, val *Node) error {
	bounds, isBounds := r.BoundList()
	part, isPart := r.Part()

	if target.Kind == MappingKind && isBounds && !hasKey &&
		len(bounds) > 0 && bounds[0] != nil && bounds[0].IsKey() {
		return a.deleteChild(target, ptr, *bounds[0])
	}
	if isBounds || (isPart && part.IsIndex()) {
		if !hasKey {
			return fmt.Errorf("rangepatch: cannot treat the document root as a sequence (range %s): %w", r, ErrStructuralAddress)
		}
		return a.splice(target, ptr, key, r, val)
	}
	if !hasKey {
		if !part.IsKey() {
			return fmt.Errorf("rangepatch: cannot index the document root with %s: %w", part, ErrStructuralAddress)
		}
		return a.put(target, ptr, part, val)
	}

	child, err := childOf(target, ptr, key)
	if err != nil {
		return err
	}
	if child == nil {
		child = NewMapping()
		if err := a.setChild(target, ptr, key, child); err != nil {
			return err
		}
	}
	return a.put(child, join(ptr, key), part, val)
}

func (a *applier) put(target *Node, ptr string, p PathPart, val *Node) error {
	if val == nil {
		return a.deleteChild(target, ptr, p)
	}
	if target.Kind == TextKind {
		debug.Logf("ignoring put of %s into text at %s", p, where(ptr))
		return nil
	}
	return a.setChild(target, ptr, p, val.Clone())
}

func (a *applier) splice(target *Node, ptr string, key PathPart, r Range, val *Node) error {
	var lo, hi PathPart
	zeroLength := r.IsAppend()
	if p, ok := r.Part(); ok {
		lo, hi = p, Index(p.index+1)
	} else if !zeroLength {
		if len(r.bounds) != 2 || r.bounds[0] == nil || r.bounds[1] == nil {
			return fmt.Errorf("rangepatch: range %s at %s needs both bounds or none: %w",
				r, where(join(ptr, key)), ErrInvalidRange)
		}
		lo, hi = *r.bounds[0], *r.bounds[1]
	}

	if target.Kind == TextKind {
		debug.Logf("ignoring %s edit inside text at %s", r, where(ptr))
		return nil
	}
	child, err := childOf(target, ptr, key)
	if err != nil {
		return err
	}
	if child == nil {
		if val != nil && val.Kind == TextKind {
			child = NewText("")
		} else {
			child = NewSequence()
		}
		if err := a.setChild(target, ptr, key, child); err != nil {
			return err
		}
	}
	cptr := join(ptr, key)
	op := classify(zeroLength, lo, hi, val)

	switch child.Kind {
	case SequenceKind, TextKind:
		if op == opNoop {
			debug.Logf("nothing to delete for %s at %s", r, where(cptr))
			return nil
		}
		var start, end int
		if !zeroLength {
			if start, end, err = indexBounds(lo, hi, r, cptr); err != nil {
				return err
			}
		}
		debug.Logf("%s %s on %s at %s", op, r, child.Kind, where(cptr))
		if child.Kind == SequenceKind {
			a.spliceSeq(child, cptr, op, start, end, val)
		} else {
			a.spliceText(child, cptr, op, start, end, val)
		}
		return nil
	case MappingKind:
		if !zeroLength && lo.IsKey() {
			return a.deleteChild(child, cptr, lo)
		}
	}
	return fmt.Errorf("rangepatch: cannot splice %s at %s with range %s: %w",
		child.Kind, where(cptr), r, ErrUnsupportedContainer)
}

func indexBounds(lo, hi PathPart, r Range, ptr string) (int, int, error) {
	start, ok1 := lo.AsIndex()
	end, ok2 := hi.AsIndex()
	if !ok1 || !ok2 || start < 0 || end < start {
		return 0, 0, fmt.Errorf("rangepatch: range %s at %s is not 0 <= start <= end: %w", r, where(ptr), ErrInvalidRange)
	}
	return start, end, nil
}

func clampSpan(start, end, n int) (int, int) {
	return min(start, n), min(end, n)
}

func (a *applier) spliceSeq(seq *Node, ptr string, op spliceOp, start, end int, val *Node) {
	if op == opAppend {
		for _, item := range spread(val) {
			a.emit("add", ptr+"/-", item)
			seq.Items = append(seq.Items, item)
		}
		return
	}
	start, end = clampSpan(start, end, len(seq.Items))
	for i := start; i < end; i++ {
		a.emit("remove", join(ptr, Index(start)), nil)
	}
	var items []*Node
	if op != opDelete {
		items = spread(val)
	}
	for i, item := range items {
		a.emit("add", join(ptr, Index(start+i)), item)
	}
	seq.Items = slices.Replace(seq.Items, start, end, items...)
}

func (a *applier) spliceText(text *Node, ptr string, op spliceOp, start, end int, val *Node) {
	units := utf16.Encode([]rune(text.Text))
	start, end = clampSpan(start, end, len(units))
	switch op {
	case opAppend:
		text.Text += renderText(val)
	case opInsert, opReplace:
		text.Text = string(utf16.Decode(units[:start])) + renderText(val) + string(utf16.Decode(units[end:]))
	case opDelete:
		text.Text = string(utf16.Decode(units[:start])) + string(utf16.Decode(units[end:]))
	}
	a.emit("replace", ptr, text)
}

// spread returns the items a value contributes to a sequence: the elements of
// a sequence value, otherwise the value itself.
func spread(val *Node) []*Node {
	if val.Kind != SequenceKind {
		return []*Node{val.Clone()}
	}
	items := make([]*Node, len(val.Items))
	for i, item := range val.Items {
		items[i] = item.Clone()
	}
	return items
}

func renderText(val *Node) string {
	switch val.Kind {
	case TextKind:
		return val.Text
	case SequenceKind:
		var b strings.Builder
		for _, item := range val.Items {
			switch {
			case item == nil:
			case item.Kind == TextKind:
				b.WriteString(item.Text)
			default:
				b.WriteString(objectReplacement)
			}
		}
		return b.String()
	case ScalarKind:
		if val.Value == nil {
			return ""
		}
		return fmt.Sprint(val.Value)
	}
	return objectReplacement
}

func childOf(target *Node, ptr string, key PathPart) (*Node, error) {
	switch target.Kind {
	case MappingKind:
		k, ok := key.mapKey()
		if !ok {
			return nil, fmt.Errorf("rangepatch: invalid key %s at %s: %w", key, where(ptr), ErrStructuralAddress)
		}
		return target.Fields[k], nil
	case SequenceKind:
		i, ok := key.seqIndex()
		if !ok {
			return nil, fmt.Errorf("rangepatch: cannot index sequence at %s with %s: %w", where(ptr), key, ErrStructuralAddress)
		}
		if i < len(target.Items) {
			return target.Items[i], nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("rangepatch: cannot index %s at %s with %s: %w", target.Kind, where(ptr), key, ErrStructuralAddress)
}

func (a *applier) setChild(target *Node, ptr string, key PathPart, v *Node) error {
	switch target.Kind {
	case MappingKind:
		k, ok := key.mapKey()
		if !ok {
			return fmt.Errorf("rangepatch: invalid key %s at %s: %w", key, where(ptr), ErrStructuralAddress)
		}
		a.emit("add", join(ptr, key), v)
		target.mapSet(k, v)
		return nil
	case SequenceKind:
		i, ok := key.seqIndex()
		if !ok {
			return fmt.Errorf("rangepatch: cannot set %s in sequence at %s: %w", key, where(ptr), ErrStructuralAddress)
		}
		if i < len(target.Items) {
			a.emit("replace", join(ptr, key), v)
		} else {
			for range i - len(target.Items) {
				a.emit("add", ptr+"/-", nil)
			}
			a.emit("add", ptr+"/-", v)
		}
		target.seqSet(i, v)
		return nil
	}
	return fmt.Errorf("rangepatch: cannot set %s in %s at %s: %w", key, target.Kind, where(ptr), ErrStructuralAddress)
}

func (a *applier) deleteChild(target *Node, ptr string, key PathPart) error {
	switch target.Kind {
	case MappingKind:
		k, ok := key.mapKey()
		if !ok {
			return fmt.Errorf("rangepatch: invalid key %s at %s: %w", key, where(ptr), ErrStructuralAddress)
		}
		if _, exists := target.Fields[k]; exists {
			a.emit("remove", join(ptr, key), nil)
			target.mapDelete(k)
		}
		return nil
	case SequenceKind:
		i, ok := key.seqIndex()
		if !ok {
			return fmt.Errorf("rangepatch: cannot delete %s from sequence at %s: %w", key, where(ptr), ErrStructuralAddress)
		}
		// leaves a hole; shrinking is a splice
		if i < len(target.Items) && target.Items[i] != nil {
			a.emit("replace", join(ptr, key), nil)
			target.Items[i] = nil
		}
		return nil
	case TextKind:
		debug.Logf("ignoring delete of %s inside text at %s", key, where(ptr))
		return nil
	}
	return fmt.Errorf("rangepatch: cannot delete %s from %s at %s: %w", key, target.Kind, where(ptr), ErrStructuralAddress)
}

// join extends a JSON Pointer by one part.
func join(ptr string, p PathPart) string {
	k, _ := p.mapKey()
	return ptr + "/" + escapePointer(k)
}

func where(ptr string) string {
	if ptr == "" {
		return "document root"
	}
	return strconv.Quote(ptr)
}
