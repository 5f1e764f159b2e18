package models

import "time"

// Turn is one persisted user utterance plus its reply, if any.
type Turn struct {
	UserText      string    `json:"text"`
	AssistantText *string   `json:"response,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	SessionKey    string    `json:"session_id,omitempty"`
}

// HasReply reports whether the reply was persisted.
func (t Turn) HasReply() bool {
	return t.AssistantText != nil
}

// TurnInput is what a client sends to the history store after a turn resolves.
type TurnInput struct {
	Text       string `json:"text"`
	Response   string `json:"response"`
	SessionKey string `json:"session_id,omitempty"`
}

// TurnSession groups turns produced by the same client session.
type TurnSession struct {
	SessionKey string `json:"session_id"`
	Messages   []Turn `json:"messages"`
}
