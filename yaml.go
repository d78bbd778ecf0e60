package rangepatch

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	gyaml "github.com/goccy/go-yaml"
	"gopkg.in/yaml.v3"
)

// Document is a tree read from YAML (or JSON) together with the layout it was
// read with, so Marshal writes it back the same way. Its methods serialize
// access; Root itself may be edited directly by a single owner.
type Document struct {
	mu        sync.Mutex
	Root      *Node
	indent    int  // detected indent (2 or 4 spaces typically)
	indentSeq bool // whether sequences under a key are indented
}

// Parse reads YAML data, creating an empty mapping document if data is empty.
// The top level must be a mapping.
func Parse(data []byte) (*Document, error) {
	doc := &Document{Root: NewMapping(), indent: 2, indentSeq: true}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	var tmp yaml.Node
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return nil, fmt.Errorf("rangepatch: failed to parse YAML: %w", err)
	}
	if tmp.Kind != yaml.DocumentNode || len(tmp.Content) == 0 || tmp.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("rangepatch: top-level YAML is not a mapping")
	}
	root, err := fromYAML(tmp.Content[0])
	if err != nil {
		return nil, err
	}
	doc.Root = root
	doc.indent, doc.indentSeq = detectIndentAndSequence(data)
	return doc, nil
}

// Apply applies e to the document root.
func (d *Document) Apply(e Edit) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Apply(d.Root, e)
}

// ApplyEvents translates and applies Automerge events to the document root.
func (d *Document) ApplyEvents(events []Event, snap Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ApplyEvents(d.Root, events, snap)
}

// Marshal encodes the document with the indentation it was parsed with.
func (d *Document) Marshal() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return marshalYAML(d.Root, d.indent, d.indentSeq)
}

// Marshal encodes a tree as YAML, mapping keys in insertion order.
func Marshal(n *Node) ([]byte, error) {
	return marshalYAML(n, 2, true)
}

func marshalYAML(n *Node, indent int, indentSeq bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := gyaml.NewEncoder(&buf, gyaml.Indent(indent), gyaml.IndentSequence(indentSeq))
	if err := enc.Encode(toYAMLValue(n)); err != nil {
		return nil, fmt.Errorf("rangepatch: failed to encode YAML: %w", err)
	}
	_ = enc.Close()
	return buf.Bytes(), nil
}

func toYAMLValue(n *Node) any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case MappingKind:
		ms := make(gyaml.MapSlice, 0, len(n.Fields))
		for _, k := range n.orderedKeys() {
			ms = append(ms, gyaml.MapItem{Key: k, Value: toYAMLValue(n.Fields[k])})
		}
		return ms
	case SequenceKind:
		s := make([]any, len(n.Items))
		for i, item := range n.Items {
			s[i] = toYAMLValue(item)
		}
		return s
	case TextKind:
		return n.Text
	case BytesKind:
		return base64.StdEncoding.EncodeToString(n.Bytes)
	}
	return n.Value
}

func fromYAML(n *yaml.Node) (*Node, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.MappingNode:
		m := NewMapping()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			child, err := fromYAML(v)
			if err != nil {
				return nil, err
			}
			m.mapSet(k.Value, child)
		}
		return m, nil
	case yaml.SequenceNode:
		seq := NewSequence(make([]*Node, len(n.Content))...)
		for i, item := range n.Content {
			child, err := fromYAML(item)
			if err != nil {
				return nil, err
			}
			seq.Items[i] = child
		}
		return seq, nil
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	}
	return nil, fmt.Errorf("rangepatch: unexpected YAML node kind %d at line %d", n.Kind, n.Line)
}

func scalarFromYAML(n *yaml.Node) (*Node, error) {
	switch n.ShortTag() {
	case "!!str":
		return NewText(n.Value), nil
	case "!!null":
		return NewScalar(nil), nil
	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return nil, fmt.Errorf("rangepatch: bad !!binary at line %d: %w", n.Line, err)
		}
		return NewBytes(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return NewScalar(i), nil
		}
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("rangepatch: bad scalar at line %d: %w", n.Line, err)
	}
	if s, ok := v.(string); ok {
		return NewText(s), nil
	}
	return NewScalar(v), nil
}

// detectIndentAndSequence returns the base indent, and whether sequences that are values
// of mapping keys are indented one level (true) or "indentless" (false).
func detectIndentAndSequence(b []byte) (int, bool) {
	indent := detectIndent(b)
	lines := bytes.Split(b, []byte("\n"))
	votes := 0 // >0 prefer indented seq, <0 prefer indentless

	for i := 0; i < len(lines); i++ {
		ln := lines[i]
		if isBlankOrComment(ln) || !endsWithMappingKey(ln) {
			continue
		}
		keyIndent := leadingSpaces(ln)
		// look ahead to the first non-blank, non-comment line
		for j := i + 1; j < len(lines); j++ {
			nxt := lines[j]
			if isBlankOrComment(nxt) {
				continue
			}
			trimmed := bytes.TrimLeft(nxt, " ")
			if len(trimmed) > 0 && trimmed[0] == '-' {
				switch leadingSpaces(nxt) {
				case keyIndent + indent:
					votes++
				case keyIndent:
					votes--
				}
			}
			break
		}
	}
	// no evidence either way: indented sequences
	return indent, votes >= 0
}

func isBlankOrComment(ln []byte) bool {
	t := bytes.TrimSpace(ln)
	return len(t) == 0 || t[0] == '#'
}

// endsWithMappingKey returns true if the line is a block mapping key of the form "key:" possibly
// followed by spaces and/or a comment.
func endsWithMappingKey(ln []byte) bool {
	idx := bytes.IndexByte(ln, ':')
	if idx < 0 {
		return false
	}
	rest := bytes.TrimSpace(ln[idx+1:])
	return len(rest) == 0 || rest[0] == '#'
}

// detectIndent takes the GCD of all non-zero indents of content lines.
func detectIndent(b []byte) int {
	result := 0
	for _, ln := range bytes.Split(b, []byte("\n")) {
		if isBlankOrComment(ln) {
			continue
		}
		if n := leadingSpaces(ln); n > 0 {
			result = gcd(result, n)
		}
	}
	if result > 0 && result <= 8 {
		return result
	}
	return 2
}

func gcd(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func leadingSpaces(line []byte) int {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}
