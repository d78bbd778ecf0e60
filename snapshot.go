package rangepatch

import (
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/tidwall/gjson"
)

// Snapshot resolves the value at a path of a document after a change. It is
// how inc and conflict events, which carry no absolute value, are translated.
type Snapshot interface {
	Resolve(path []PathPart) (*Node, bool)
}

// SnapshotFunc adapts a function to Snapshot.
type SnapshotFunc func(path []PathPart) (*Node, bool)

func (f SnapshotFunc) Resolve(path []PathPart) (*Node, bool) { return f(path) }

// NodeSnapshot resolves paths inside a tree.
func NodeSnapshot(root *Node) Snapshot {
	return SnapshotFunc(func(path []PathPart) (*Node, bool) {
		return root.Lookup(path...)
	})
}

// JSONSnapshot resolves paths inside a raw JSON document without decoding
// all of it.
func JSONSnapshot(data []byte) Snapshot {
	return jsonSnapshot(data)
}

type jsonSnapshot []byte

func (s jsonSnapshot) Resolve(path []PathPart) (*Node, bool) {
	var res gjson.Result
	if len(path) == 0 {
		res = gjson.ParseBytes(s)
	} else {
		res = gjson.GetBytes(s, gjsonPath(path))
	}
	if !res.Exists() {
		return nil, false
	}
	n, err := UnmarshalNode([]byte(res.Raw))
	if err != nil {
		return nil, false
	}
	return n, true
}

func gjsonPath(path []PathPart) string {
	comps := make([]string, len(path))
	for i, p := range path {
		if idx, ok := p.AsIndex(); ok {
			comps[i] = strconv.Itoa(idx)
			continue
		}
		comps[i] = gjson.Escape(p.key)
	}
	return strings.Join(comps, ".")
}

// ValueSnapshot resolves paths inside plain Go values such as the result of
// decoding JSON into an any. An index addresses its decimal key in a map.
func ValueSnapshot(v any) Snapshot {
	return SnapshotFunc(func(path []PathPart) (*Node, bool) {
		cur := v
		for _, p := range path {
			idx, isIndex := p.AsIndex()
			if cur == nil || (isIndex && idx < 0) {
				return nil, false
			}
			var x jp.Expr
			_, isMap := cur.(map[string]any)
			switch {
			case isIndex && isMap:
				x = jp.C(strconv.Itoa(idx))
			case isIndex:
				x = jp.N(idx)
			default:
				x = jp.C(p.key)
			}
			res := x.Get(cur)
			if len(res) == 0 {
				return nil, false
			}
			cur = res[0]
		}
		return FromValue(cur), true
	})
}
