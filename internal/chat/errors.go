package chat

import "errors"

var (
	// ErrNotFound reports an unknown conversation or user id.
	ErrNotFound = errors.New("not found")

	// ErrValidation reports a missing or empty required field.
	ErrValidation = errors.New("validation failed")
)
