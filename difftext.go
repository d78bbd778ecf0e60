package rangepatch

import (
	"slices"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffText returns splice edits that turn the text at path from before into
// after when applied in order. path addresses the text itself, so it must not
// be empty.
func DiffText(path []PathPart, before, after string) []Edit {
	if before == after {
		return nil
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var edits []Edit
	pos := 0
	for _, d := range diffs {
		n := textLen(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			pos += n
		case diffmatchpatch.DiffDelete:
			edits = append(edits, Edit{Path: slices.Clone(path), Range: Span(pos, pos+n)})
		case diffmatchpatch.DiffInsert:
			edits = append(edits, Edit{Path: slices.Clone(path), Range: Span(pos, pos), Value: NewText(d.Text)})
			pos += n
		}
	}
	return edits
}
