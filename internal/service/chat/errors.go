package chat

import "errors"

var (
	// ErrInvalidInput marks requests rejected before any side effect.
	ErrInvalidInput = errors.New("invalid chat input")
	// ErrHistoryUnavailable marks History Store failures that prevent a
	// stream from starting.
	ErrHistoryUnavailable = errors.New("chat history unavailable")
	// ErrStreamInProgress is returned when the user already has an active stream.
	ErrStreamInProgress = errors.New("a reply is already streaming for this user")
	// ErrLockUnavailable is returned when the stream lock backend fails.
	ErrLockUnavailable = errors.New("stream lock unavailable")
)
