package billing

import "errors"

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is (or wraps) ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

var (
	// ErrNotFound indicates a referenced member, enrollment or due is absent.
	ErrNotFound = errors.New("billing: not found")
	// ErrConflict indicates a state conflict: duplicate enrollment, deleting
	// an enrollment with paid dues, or paying a frozen due.
	ErrConflict = errors.New("billing: conflict")
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("billing: validation failed")
	// ErrConfiguration indicates a missing or invalid economic setting.
	ErrConfiguration = errors.New("billing: configuration invalid")
)
