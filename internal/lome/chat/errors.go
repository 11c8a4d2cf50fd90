package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned by Send for blank input. No state is changed.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrSignedOut is returned by Send when the identity provider reports no user.
	ErrSignedOut = errors.New("not signed in")

	// ErrStopped is returned by Respond when the stream was stopped or superseded.
	ErrStopped = errors.New("stream stopped")
)

// SendError reports a failure to persist a user message. The pending copy has
// already been removed when it is returned.
type SendError struct {
	ConversationID string
	Err            error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending message to conversation %s: %v", e.ConversationID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// StreamError reports a failed assistant stream. Partial is the number of bytes
// that had been received; that content has been discarded.
type StreamError struct {
	ConversationID string
	Partial        int
	Err            error
}

func (e *StreamError) Error() string {
	if e.Partial > 0 {
		return fmt.Sprintf("stream error (partial content discarded: %d bytes): %v", e.Partial, e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
