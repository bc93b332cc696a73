package zotero

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the API reports 404 for an item.
var ErrNotFound = errors.New("zotero: item not found")

// ConflictError is returned when a conditional write fails with 412
// Precondition Failed. CurrentVersion carries the server's version so the
// caller can re-fetch and retry.
type ConflictError struct {
	CurrentVersion int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("zotero: version conflict, current version %d", e.CurrentVersion)
}

// IsConflict reports whether err is a version conflict and returns the
// server's current version if so.
func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
