package rangepatch

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// JSON Patch (RFC-6902) export
// --------------------------------------------------------------------------------------

// ToJSONPatch returns the JSON Patch that has the same effect on the JSON
// encoding of root as applying e to root. root is not modified.
//
// Missing containers become "add" operations (sequence holes are filled with
// null), text edits replace the whole string and ignored edits yield an empty
// patch.
func ToJSONPatch(root *Node, e Edit) (jsonpatch.Patch, error) {
	return ApplyRecorded(root.Clone(), e)
}

// ApplyRecorded applies e to root like Apply and returns the equivalent JSON
// Patch. On error root is left as Apply would leave it.
func ApplyRecorded(root *Node, e Edit) (jsonpatch.Patch, error) {
	a := applier{record: true}
	if err := a.apply(root, e); err != nil {
		return nil, err
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.patch()
}

func (a *applier) patch() (jsonpatch.Patch, error) {
	if len(a.ops) == 0 {
		return jsonpatch.Patch{}, nil
	}
	b, err := json.Marshal(a.ops)
	if err != nil {
		return nil, fmt.Errorf("rangepatch: cannot marshal JSON Patch: %w", err)
	}
	p, err := jsonpatch.DecodePatch(b)
	if err != nil {
		return nil, fmt.Errorf("rangepatch: invalid JSON Patch: %w", err)
	}
	return p, nil
}
