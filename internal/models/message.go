package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Status string

const (
	StatusFinal   Status = "final"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// MessageID is assigned from a per-session counter.
type MessageID uint64

// Message is one renderable entry in a session timeline.
type Message struct {
	ID        MessageID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Pending reports whether the message still waits for a reply.
func (m Message) Pending() bool {
	return m.Status == StatusPending
}
