package services

import "errors"

// Standard service errors shared across the mailbox operations.
var (
	// User and resource errors
	ErrUserNotFound       = errors.New("user not found")
	ErrNotFound           = errors.New("resource not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrDraftNotFound      = errors.New("draft not found")
	ErrThreadNotFound     = errors.New("thread not found")
	ErrLabelNotFound      = errors.New("label not found")
	ErrAttachmentNotFound = errors.New("attachment not found")

	// Input errors
	ErrInvalidInput = errors.New("invalid input provided")
	ErrInvalidQuery = errors.New("invalid query")
	ErrInvalidRaw   = errors.New("invalid raw message")

	// State errors
	ErrConflict = errors.New("resource was concurrently modified")
)

// IsNotFound reports whether the error is any of the missing-resource
// kinds, including a missing user.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrDraftNotFound) ||
		errors.Is(err, ErrThreadNotFound) ||
		errors.Is(err, ErrLabelNotFound) ||
		errors.Is(err, ErrAttachmentNotFound)
}

// IsInvalidArgument reports whether the error describes rejected input
// rather than missing state.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrInvalidRaw)
}
