package namespace

import "errors"

// Domain errors for the namespace package.
var (
	// ErrLeafNotFound is returned when a path has no state object.
	ErrLeafNotFound = errors.New("namespace: leaf not found")

	// ErrInvalidPath is returned when a path is empty or malformed.
	ErrInvalidPath = errors.New("namespace: invalid path")

	// ErrNotWritable is returned when a write intent targets a read-only leaf.
	ErrNotWritable = errors.New("namespace: leaf is not writable")
)
