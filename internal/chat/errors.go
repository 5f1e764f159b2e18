package chat

import (
	"errors"

	"nutrichat/internal/models"
)

var (
	// ErrNotFound is returned by Timeline.Replace when no pending message has the id.
	ErrNotFound = errors.New("message not found")
	// ErrEmptyInput rejects blank submissions before any state change.
	ErrEmptyInput = errors.New("input is empty")
	// ErrNoIdentity means a session or reconcile was attempted without credentials.
	ErrNoIdentity = errors.New("identity required")
	// ErrSessionClosed is returned after Close.
	ErrSessionClosed = errors.New("session closed")

	ErrDuplicateID    = errors.New("duplicate message id")
	ErrInvalidMessage = errors.New("invalid message")

	// ErrEmptyReply marks a reply payload without any text.
	ErrEmptyReply = errors.New("advice service returned an empty reply")
)

// LoadError reports that history could not be fetched. The session continues
// with an empty timeline.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return "load history: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// GenerationError reports a failed or malformed advice reply.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generate reply: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown in place of the reply and saved as its response.
func (e *GenerationError) UserMessage() string {
	return "Error: " + e.Err.Error()
}

// PersistError reports a failed background save. It is never retried.
type PersistError struct {
	Turn models.TurnInput
	Err  error
}

func (e *PersistError) Error() string {
	return "persist turn: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
