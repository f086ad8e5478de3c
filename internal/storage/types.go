package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record, event, or setting was
	// not found.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists indicates a record already exists for the same
	// (user, content) pair. The scheduler suppresses this internally because
	// scheduling is idempotent; it never surfaces to API callers.
	ErrAlreadyExists = errors.New("storage: record already exists")

	// ErrConflict indicates an optimistic concurrency check failed: the
	// record was modified between read and write.
	ErrConflict = errors.New("storage: version conflict")

	// ErrInvalidInput indicates the input parameters are invalid.
	ErrInvalidInput = errors.New("storage: invalid input")
)

// DefaultDueLimit is the due-list page size applied when the caller does not
// supply one.
const DefaultDueLimit = 50

// MaxDueLimit caps the due-list page size to prevent resource exhaustion.
const MaxDueLimit = 500

// ClampDueLimit normalizes a caller-supplied due-list limit.
func ClampDueLimit(limit int) int {
	if limit <= 0 {
		return DefaultDueLimit
	}
	if limit > MaxDueLimit {
		return MaxDueLimit
	}
	return limit
}
