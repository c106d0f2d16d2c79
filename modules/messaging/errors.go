package messaging

import "errors"

// Errors returned by the pipeline. Store errors are converted to one of
// these before they leave the package.
var (
	ErrAuthorizationDenied = errors.New("not a member of this chat")
	ErrNotFound            = errors.New("not found")
	ErrPersistence         = errors.New("failed to persist")
	ErrInvalidContent      = errors.New("invalid message content")
)
