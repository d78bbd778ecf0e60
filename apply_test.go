package rangepatch

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustNode(t *testing.T, js string) *Node {
	t.Helper()
	n, err := UnmarshalNode([]byte(js))
	if err != nil {
		t.Fatalf("bad test document %s: %v", js, err)
	}
	return n
}

// ed builds an edit; with no value the value is undefined.
func ed(path []PathPart, r Range, v ...any) Edit {
	e := Edit{Path: path, Range: r}
	if len(v) > 0 {
		e.Value = FromValue(v[0])
	}
	return e
}

func assertTree(t *testing.T, got *Node, wantJSON string) {
	t.Helper()
	want := mustNode(t, wantJSON)
	if diff := cmp.Diff(want.Interface(), got.Interface()); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		edit Edit
		want string
	}{
		{
			name: "mutates nested mapping",
			doc:  `{"deeply": {"nested": {"value": 0}}}`,
			edit: ed(MustPath("deeply", "nested"), KeyRange("value"), 10),
			want: `{"deeply": {"nested": {"value": 10}}}`,
		},
		{
			name: "fills mapping holes",
			doc:  `{"deeply": {}}`,
			edit: ed(MustPath("deeply", "nested"), KeyRange("value"), 10),
			want: `{"deeply": {"nested": {"value": 10}}}`,
		},
		{
			name: "creates text for a splice into nothing",
			doc:  `{}`,
			edit: ed(MustPath("items", 0, "title"), AppendRange(), "cool"),
			want: `{"items": [{"title": "cool"}]}`,
		},
		{
			name: "replaces range in sequence",
			doc:  `{"items": [1, 2, 3, 4, 5]}`,
			edit: ed(MustPath("items"), Span(1, 3), "hehe"),
			want: `{"items": [1, "hehe", 4, 5]}`,
		},
		{
			name: "replaces single item by bare index",
			doc:  `{"items": [0, 0, 0, 0, 0, 0, 0, 0, 0, 0]}`,
			edit: ed(MustPath("items"), IndexRange(4), 1),
			want: `{"items": [0, 0, 0, 0, 1, 0, 0, 0, 0, 0]}`,
		},
		{
			name: "replaces range in text",
			doc:  `{"text": "hello world"}`,
			edit: ed(MustPath("text"), Span(1, 4), "aww"),
			want: `{"text": "hawwo world"}`,
		},
		{
			name: "appends several items",
			doc:  `{"items": ["zero"]}`,
			edit: ed(MustPath("items"), AppendRange(), []any{"one", "two"}),
			want: `{"items": ["zero", "one", "two"]}`,
		},
		{
			name: "inserts characters",
			doc:  `{"text": "hello world"}`,
			edit: ed(MustPath("text"), Span(6, 6), "cruel "),
			want: `{"text": "hello cruel world"}`,
		},
		{
			name: "inserts several items in the middle",
			doc:  `{"array": ["hello", "world"]}`,
			edit: ed(MustPath("array"), Span(1, 1), []any{"there", "my"}),
			want: `{"array": ["hello", "there", "my", "world"]}`,
		},
		{
			name: "appends item",
			doc:  `{"items": ["a", "b"]}`,
			edit: ed(MustPath("items"), AppendRange(), "c"),
			want: `{"items": ["a", "b", "c"]}`,
		},
		{
			name: "appends text",
			doc:  `{"text": "hello world"}`,
			edit: ed(MustPath("text"), AppendRange(), ", what's up?"),
			want: `{"text": "hello world, what's up?"}`,
		},
		{
			name: "deletes item from sequence",
			doc:  `{"items": [1, 2, 3]}`,
			edit: ed(MustPath("items"), IndexRange(1)),
			want: `{"items": [1, 3]}`,
		},
		{
			name: "deletes key from mapping",
			doc:  `{"state": {"complete": false}}`,
			edit: ed(MustPath("state"), KeyRange("complete")),
			want: `{"state": {}}`,
		},
		{
			name: "deletes range from sequence",
			doc:  `{"items": [1, 2, 3, 4, 5]}`,
			edit: ed(MustPath("items"), Span(2, 4)),
			want: `{"items": [1, 2, 5]}`,
		},
		{
			name: "deletes characters",
			doc:  `{"name": "chee rabbits"}`,
			edit: ed(MustPath("name"), Span(2, 5)),
			want: `{"name": "chrabbits"}`,
		},
		{
			name: "appends text item to empty sequence",
			doc:  `{"items": []}`,
			edit: ed(MustPath("items"), AppendRange(), "hello"),
			want: `{"items": ["hello"]}`,
		},
		{
			name: "appends nested sequence as one item",
			doc:  `{"items": []}`,
			edit: ed(MustPath("items"), AppendRange(), []any{[]any{"a", "b"}}),
			want: `{"items": [["a", "b"]]}`,
		},
		{
			name: "puts top level key",
			doc:  `{"text": "hello"}`,
			edit: ed(nil, KeyRange("text"), "hallo"),
			want: `{"text": "hallo"}`,
		},
		{
			name: "puts top level sequence value",
			doc:  `{}`,
			edit: ed(nil, KeyRange("works"), []any{"1", "2", "yes"}),
			want: `{"works": ["1", "2", "yes"]}`,
		},
		{
			name: "deletes top level key",
			doc:  `{"a": 1, "b": 2}`,
			edit: ed(nil, KeyRange("a")),
			want: `{"b": 2}`,
		},
		{
			name: "deletes top level key named by bounds",
			doc:  `{"k": 1, "j": 2}`,
			edit: ed(nil, Bounds(ptr(Key("k")))),
			want: `{"j": 2}`,
		},
		{
			name: "deletes key of nested mapping named by bounds",
			doc:  `{"m": {"a": 1, "b": 2}}`,
			edit: ed(MustPath("m"), Bounds(ptr(Key("a")), ptr(Key("b")))),
			want: `{"m": {"b": 2}}`,
		},
		{
			name: "numeric key addresses sequence index",
			doc:  `{"items": [1, 2]}`,
			edit: ed(MustPath("items"), KeyRange("0"), 5),
			want: `{"items": [5, 2]}`,
		},
		{
			name: "index addresses decimal mapping key",
			doc:  `{"m": {"1": {}}}`,
			edit: ed(MustPath("m", 1), KeyRange("x"), true),
			want: `{"m": {"1": {"x": true}}}`,
		},
		{
			name: "splice past the end clamps",
			doc:  `{"items": [1, 2]}`,
			edit: ed(MustPath("items"), Span(5, 5), 3),
			want: `{"items": [1, 2, 3]}`,
		},
		{
			name: "text indexes count accented letters once",
			doc:  `{"t": "héllo wörld"}`,
			edit: ed(MustPath("t"), Span(1, 2), "e"),
			want: `{"t": "hello wörld"}`,
		},
		{
			name: "text indexes count UTF-16 units",
			doc:  `{"t": "😀ab"}`,
			edit: ed(MustPath("t"), Span(3, 3), "X"),
			want: `{"t": "😀aXb"}`,
		},
		{
			name: "text delete after astral character",
			doc:  `{"t": "😀ab"}`,
			edit: ed(MustPath("t"), Span(2, 3)),
			want: `{"t": "😀b"}`,
		},
		{
			name: "text span clamps to UTF-16 length",
			doc:  `{"t": "a😀"}`,
			edit: ed(MustPath("t"), Span(3, 9), "!"),
			want: `{"t": "a😀!"}`,
		},
		{
			name: "mixed sequence renders placeholders in text",
			doc:  `{"t": "ab"}`,
			edit: ed(MustPath("t"), Span(1, 1), []any{"x", 1, map[string]any{"k": "v"}}),
			want: `{"t": "ax` + "\ufffc\ufffc" + `b"}`,
		},
		{
			name: "delete of absent sequence creates it empty",
			doc:  `{}`,
			edit: ed(MustPath("items"), Span(0, 2)),
			want: `{"items": []}`,
		},
		{
			name: "delete with append sentinel does nothing",
			doc:  `{"items": [1], "t": "abc"}`,
			edit: ed(MustPath("t"), AppendRange()),
			want: `{"items": [1], "t": "abc"}`,
		},
		{
			name: "put under text parent is ignored",
			doc:  `{"t": "abc"}`,
			edit: ed(MustPath("t"), KeyRange("x"), 1),
			want: `{"t": "abc"}`,
		},
		{
			name: "splice under text parent is ignored",
			doc:  `{"t": "abc"}`,
			edit: ed(MustPath("t", 0), AppendRange(), "x"),
			want: `{"t": "abc"}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := mustNode(t, tc.doc)
			if err := Apply(root, tc.edit); err != nil {
				t.Fatalf("Apply %s: %v", tc.edit, err)
			}
			assertTree(t, root, tc.want)
		})
	}
}

func ptr(p PathPart) *PathPart { return &p }

func TestApplyDoesNotMutatePath(t *testing.T) {
	root := mustNode(t, `{}`)
	path := MustPath("deeply", "nested", 0, "x")
	orig := slices.Clone(path)
	if err := Apply(root, ed(path, KeyRange("value"), 10)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !slices.Equal(path, orig) {
		t.Fatalf("path was mutated: %v != %v", path, orig)
	}
}

func TestApplyFillsSequenceHoles(t *testing.T) {
	root := NewMapping()
	if err := Apply(root, ed(MustPath("items", 2), KeyRange("complete"), true)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	items := root.Get(Key("items"))
	if items == nil || items.Kind != SequenceKind {
		t.Fatalf("expected items sequence, got %s", items)
	}
	if len(items.Items) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(items.Items))
	}
	if items.Items[0] != nil || items.Items[1] != nil {
		t.Fatalf("expected holes at 0 and 1, got %s", items)
	}
	assertTree(t, items.Items[2], `{"complete": true}`)
}

func TestApplyAutoVivifiesMappings(t *testing.T) {
	root := NewMapping()
	if err := Apply(root, ed(MustPath("a", "b"), KeyRange("value"), 10)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	assertTree(t, root, `{"a": {"b": {"value": 10}}}`)
}

func TestApplyReallyDeepMixedPath(t *testing.T) {
	root := NewMapping()
	path := MustPath(1, 2, 3, 4, 5, 6, "lol", "ok", "deeeeeep", 0, 1, 2, "hehe")
	if err := Apply(root, ed(path, KeyRange("ok"), "computer")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	leaf, ok := root.Lookup(append(slices.Clone(path), Key("ok"))...)
	if !ok || leaf.Kind != TextKind || leaf.Text != "computer" {
		t.Fatalf("expected computer at the leaf, got %s", leaf)
	}
	if root.Get(Key("1")).Kind != SequenceKind {
		t.Fatalf("expected a sequence under \"1\"")
	}
}

func TestApplyDeepPath(t *testing.T) {
	root := mustNode(t, `{"a": {"b": {"c": {"d": {"e": {"f": {"g": {"h": {"i": "rabbit"}}}}}}}}}`)
	path := MustPath("a", "b", "c", "d", "e", "f", "g", "h")
	if err := Apply(root, ed(path, KeyRange("i"), "computer")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	leaf, _ := root.Lookup(MustPath("a", "b", "c", "d", "e", "f", "g", "h", "i")...)
	if leaf == nil || leaf.Text != "computer" {
		t.Fatalf("expected computer, got %s", leaf)
	}

	empty := NewMapping()
	if err := Apply(empty, ed(path, KeyRange("i"), "computer")); err != nil {
		t.Fatalf("Apply on empty: %v", err)
	}
	assertTree(t, empty, `{"a": {"b": {"c": {"d": {"e": {"f": {"g": {"h": {"i": "computer"}}}}}}}}}`)
}

func TestApplyDeleteIsIdempotent(t *testing.T) {
	cases := []struct {
		doc  string
		edit Edit
	}{
		{`{"state": {"complete": false, "x": 1}}`, ed(MustPath("state"), KeyRange("complete"))},
		{`{"items": [1, 2, 3]}`, ed(MustPath("items"), Span(5, 7))},
		{`{"a": 1}`, ed(nil, KeyRange("a"))},
	}
	for _, tc := range cases {
		once := mustNode(t, tc.doc)
		twice := mustNode(t, tc.doc)
		if err := Apply(once, tc.edit); err != nil {
			t.Fatalf("Apply %s: %v", tc.edit, err)
		}
		if err := ApplyAll(twice, tc.edit, tc.edit); err != nil {
			t.Fatalf("ApplyAll %s: %v", tc.edit, err)
		}
		if diff := cmp.Diff(once.Interface(), twice.Interface()); diff != "" {
			t.Fatalf("second delete changed the tree (-once +twice):\n%s", diff)
		}
	}
}

func TestApplyReplaceRangeRoundTrip(t *testing.T) {
	root := mustNode(t, `{"items": [1, 2, 3, 4, 5]}`)
	if err := Apply(root, ed(MustPath("items"), Span(1, 3), "X")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	assertTree(t, root, `{"items": [1, "X", 4, 5]}`)
	if err := Apply(root, ed(MustPath("items"), Span(1, 2), []any{2, 3})); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	assertTree(t, root, `{"items": [1, 2, 3, 4, 5]}`)
}

func TestApplyTextSpliceRoundTrip(t *testing.T) {
	root := mustNode(t, `{"text": "hello world"}`)
	if err := Apply(root, ed(MustPath("text"), Span(1, 4), "aww")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	assertTree(t, root, `{"text": "hawwo world"}`)
	if err := Apply(root, ed(MustPath("text"), Span(1, 4), "ell")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	assertTree(t, root, `{"text": "hello world"}`)
}

func TestApplyEmptyEditIsNoop(t *testing.T) {
	root := mustNode(t, `{"a": 1}`)
	if err := Apply(root, Edit{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	assertTree(t, root, `{"a": 1}`)
	if err := Apply(nil, Edit{}); err != nil {
		t.Fatalf("empty edit on nil root: %v", err)
	}
}

func TestApplyRejectsEditWithoutRange(t *testing.T) {
	root := mustNode(t, `{"a": 1}`)
	for _, e := range []Edit{
		{Path: MustPath("a"), Value: NewScalar(2)},
		{Path: MustPath("a")},
		{Value: NewScalar(2)},
	} {
		if e.IsEmpty() {
			t.Fatalf("%s should not be the empty edit", e)
		}
		if err := Apply(root, e); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange for %s, got %v", e, err)
		}
	}
	assertTree(t, root, `{"a": 1}`)
}

func TestTextLenCountsUTF16Units(t *testing.T) {
	for s, want := range map[string]int{"": 0, "abc": 3, "héllo": 5, "😀ab": 4, "👍🏽": 4} {
		if got := NewText(s).Len(); got != want {
			t.Fatalf("Len(%q) = %d, want %d", s, got, want)
		}
	}
}

func TestApplyValuesAreCopied(t *testing.T) {
	e := ed(MustPath("items"), AppendRange(), []any{map[string]any{"n": 1}})
	a, b := NewMapping(), NewMapping()
	if err := Apply(a, e); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := Apply(b, e); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := Apply(a, ed(MustPath("items", 0), KeyRange("n"), 2)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	assertTree(t, b, `{"items": [{"n": 1}]}`)
	assertTree(t, e.Value, `[{"n": 1}]`)
}

func TestApplyRejectsHalfOpenRanges(t *testing.T) {
	three := Index(3)
	for _, r := range []Range{
		Bounds(&three, nil),
		Bounds(nil, &three),
		Bounds(&three),
		Bounds(ptr(Key("k"))),
	} {
		root := mustNode(t, `{"items": [1, 2, 3, 4], "m": {"k": 1}}`)
		for _, path := range [][]PathPart{MustPath("items"), MustPath("m")} {
			err := Apply(root, ed(path, r, 9))
			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("range %s at %s: expected ErrInvalidRange, got %v", r, FormatPath(path), err)
			}
		}
		assertTree(t, root, `{"items": [1, 2, 3, 4], "m": {"k": 1}}`)
	}
}

func TestApplyRejectsBadIndexes(t *testing.T) {
	root := mustNode(t, `{"items": [1, 2, 3], "t": "abc"}`)
	for _, e := range []Edit{
		ed(MustPath("items"), Span(2, 1), 0),
		ed(MustPath("items"), IndexRange(-1)),
		ed(MustPath("t"), Bounds(ptr(Key("a")), ptr(Key("b"))), "x"),
	} {
		if err := Apply(root, e); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("%s: expected ErrInvalidRange, got %v", e, err)
		}
	}
}

func TestApplyStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		edit Edit
	}{
		{"root as sequence", `{}`, ed(nil, Span(0, 1), "x")},
		{"root by bare index", `{}`, ed(nil, IndexRange(0), "x")},
		{"root append", `{}`, ed(nil, AppendRange(), "x")},
		{"unclassified next part", `{}`, ed([]PathPart{Key("a"), {}, Key("b")}, KeyRange("c"), 1)},
		{"descend into scalar", `{"n": 5}`, ed(MustPath("n", "x"), KeyRange("y"), 1)},
		{"descend into text", `{"t": "abc"}`, ed(MustPath("t", "x"), KeyRange("y"), 1)},
		{"string key into sequence", `{"items": [1]}`, ed(MustPath("items"), KeyRange("x"), 1)},
		{"put into scalar", `{"n": 5}`, ed(MustPath("n"), KeyRange("x"), 1)},
		{"nil root", ``, ed(nil, KeyRange("x"), 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var root *Node
			if tc.doc != "" {
				root = mustNode(t, tc.doc)
			}
			if err := Apply(root, tc.edit); !errors.Is(err, ErrStructuralAddress) {
				t.Fatalf("expected ErrStructuralAddress, got %v", err)
			}
		})
	}
}

func TestApplyUnsupportedContainers(t *testing.T) {
	root := mustNode(t, `{"n": 5, "m": {"a": 1}}`)
	root.mapSet("blob", NewBytes([]byte{1, 2, 3}))
	for _, e := range []Edit{
		ed(MustPath("blob"), Span(0, 1), 9),
		ed(MustPath("n"), Span(0, 1), "x"),
		ed(MustPath("m"), Span(0, 1), "x"),
		ed(MustPath("m"), AppendRange(), "x"),
	} {
		if err := Apply(root, e); !errors.Is(err, ErrUnsupportedContainer) {
			t.Fatalf("%s: expected ErrUnsupportedContainer, got %v", e, err)
		}
	}
}

func TestApplyKeepsPartialStructureOnFailure(t *testing.T) {
	root := NewMapping()
	three := Index(3)
	err := Apply(root, ed(MustPath("a", "b", "c"), Bounds(&three, nil), 1))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	assertTree(t, root, `{"a": {"b": {}}}`)
}

func TestApplyAllReportsFailingEdit(t *testing.T) {
	root := NewMapping()
	err := ApplyAll(root,
		ed(nil, KeyRange("a"), 1),
		ed(nil, Span(0, 1), 1),
	)
	if !errors.Is(err, ErrStructuralAddress) {
		t.Fatalf("expected ErrStructuralAddress, got %v", err)
	}
	assertTree(t, root, `{"a": 1}`)
}
