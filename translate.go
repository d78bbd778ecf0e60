package rangepatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/kevinwang15/rangepatch/internal/debug"
)

// Action is the kind of an Automerge patch event.
type Action string

const (
	ActionPut      Action = "put"
	ActionDel      Action = "del"
	ActionInsert   Action = "insert"
	ActionSplice   Action = "splice"
	ActionInc      Action = "inc"
	ActionConflict Action = "conflict"
	ActionMark     Action = "mark"
	ActionUnmark   Action = "unmark"
)

func (a Action) valid() bool {
	switch a {
	case ActionPut, ActionDel, ActionInsert, ActionSplice, ActionInc, ActionConflict, ActionMark, ActionUnmark:
		return true
	}
	return false
}

// Event is one patch event emitted by an Automerge document. Path addresses
// the changed slot itself.
type Event struct {
	Action Action
	Path   []PathPart

	// Value is set by put, splice and inc. Nil means absent.
	Value *Node
	// Values is set by insert.
	Values []*Node
	// Length is the number of deleted elements or characters for del; zero
	// means one.
	Length int
	// Conflict is informational; conflicts are resolved by the snapshot.
	Conflict bool
}

type eventJSON struct {
	Action   Action            `json:"action"`
	Path     []PathPart        `json:"path"`
	Value    json.RawMessage   `json:"value,omitempty"`
	Values   []json.RawMessage `json:"values,omitempty"`
	Length   int               `json:"length,omitempty"`
	Conflict bool              `json:"conflict,omitempty"`
}

func (ev *Event) UnmarshalJSON(d []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(d, &raw); err != nil {
		return fmt.Errorf("rangepatch: invalid patch event: %w", err)
	}
	if !raw.Action.valid() {
		return fmt.Errorf("rangepatch: unknown patch action %q", raw.Action)
	}
	out := Event{Action: raw.Action, Path: raw.Path, Length: raw.Length, Conflict: raw.Conflict}
	if len(raw.Value) > 0 {
		v, err := UnmarshalNode(raw.Value)
		if err != nil {
			return err
		}
		out.Value = v
	}
	for _, rv := range raw.Values {
		v, err := UnmarshalNode(rv)
		if err != nil {
			return err
		}
		out.Values = append(out.Values, v)
	}
	*ev = out
	return nil
}

func (ev Event) MarshalJSON() ([]byte, error) {
	raw := eventJSON{Action: ev.Action, Path: ev.Path, Length: ev.Length, Conflict: ev.Conflict}
	if raw.Path == nil {
		raw.Path = []PathPart{}
	}
	if ev.Value != nil {
		d, err := json.Marshal(ev.Value)
		if err != nil {
			return nil, err
		}
		raw.Value = d
	}
	for _, v := range ev.Values {
		d, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw.Values = append(raw.Values, d)
	}
	return json.Marshal(raw)
}

// ToCanonical translates ev into a canonical edit. mark and unmark events do
// not change the tree and yield the empty edit. inc and conflict events carry
// no usable value and are resolved through snap; without one they fail with
// ErrMissingSnapshot.
func ToCanonical(ev Event, snap Snapshot) (Edit, error) {
	switch ev.Action {
	case ActionMark, ActionUnmark:
		debug.Logf("skipping %s at %s, it does not change the tree", ev.Action, FormatPath(ev.Path))
		return Edit{}, nil
	}
	if len(ev.Path) == 0 {
		return Edit{}, fmt.Errorf("rangepatch: %s event has an empty path: %w", ev.Action, ErrStructuralAddress)
	}
	path := slices.Clone(ev.Path[:len(ev.Path)-1])
	key := ev.Path[len(ev.Path)-1]

	switch ev.Action {
	case ActionInc, ActionConflict:
		if snap == nil {
			return Edit{}, fmt.Errorf("rangepatch: cannot translate %s at %s without a snapshot: %w",
				ev.Action, FormatPath(ev.Path), ErrMissingSnapshot)
		}
		v, ok := snap.Resolve(ev.Path)
		if !ok {
			debug.Logf("%s at %s resolved to nothing, deleting", ev.Action, FormatPath(ev.Path))
		}
		return Edit{Path: path, Range: At(key), Value: v}, nil
	case ActionDel:
		if i, ok := key.AsIndex(); ok {
			return Edit{Path: path, Range: Span(i, i+max(ev.Length, 1))}, nil
		}
		return Edit{Path: path, Range: At(key)}, nil
	case ActionInsert:
		i, ok := key.AsIndex()
		if !ok {
			return Edit{}, fmt.Errorf("rangepatch: insert at %s needs an index: %w", FormatPath(ev.Path), ErrStructuralAddress)
		}
		return Edit{Path: path, Range: Span(i, i), Value: NewSequence(ev.Values...)}, nil
	case ActionSplice:
		i, ok := key.AsIndex()
		if !ok {
			return Edit{}, fmt.Errorf("rangepatch: splice at %s needs an index: %w", FormatPath(ev.Path), ErrStructuralAddress)
		}
		value := ev.Value
		if value == nil {
			value = NewText("")
		}
		return Edit{Path: path, Range: Span(i, i), Value: NewSequence(value)}, nil
	case ActionPut:
		return Edit{Path: path, Range: At(key), Value: ev.Value}, nil
	}
	return Edit{}, fmt.Errorf("rangepatch: unknown patch action %q", ev.Action)
}

// TranslateAll translates events in order and drops empty edits.
func TranslateAll(events []Event, snap Snapshot) ([]Edit, error) {
	edits := make([]Edit, 0, len(events))
	for i, ev := range events {
		e, err := ToCanonical(ev, snap)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if !e.IsEmpty() {
			edits = append(edits, e)
		}
	}
	return edits, nil
}

// ApplyEvents translates and applies events to root one at a time. Events
// before a failing one stay applied.
func ApplyEvents(root *Node, events []Event, snap Snapshot) error {
	for i, ev := range events {
		e, err := ToCanonical(ev, snap)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if err := Apply(root, e); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

// DecodeEvents reads patch events given either as one JSON array or as
// consecutive JSON objects.
func DecodeEvents(d []byte) ([]Event, error) {
	trimmed := bytes.TrimLeft(d, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var events []Event
	for dec.More() {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			return events, fmt.Errorf("rangepatch: event %d: %w", len(events), err)
		}
		events = append(events, ev)
	}
	return events, nil
}
