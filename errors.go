package rangepatch

import "errors"

var (
	// ErrStructuralAddress: the path cannot be walked, e.g. the root is
	// addressed as a sequence or a container kind cannot be decided.
	ErrStructuralAddress = errors.New("structural address error")

	// ErrInvalidRange: a bounds list that is neither [] nor two present
	// indexes.
	ErrInvalidRange = errors.New("invalid range")

	// ErrUnsupportedContainer: the addressed slot holds something that cannot
	// be spliced.
	ErrUnsupportedContainer = errors.New("unsupported container kind")

	// ErrMissingSnapshot: an event needs its post-change value and no snapshot
	// was supplied.
	ErrMissingSnapshot = errors.New("missing snapshot")
)
