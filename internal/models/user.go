package models

import "time"

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated principal a chat session is scoped to.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Valid reports whether the identity carries a usable credential.
func (i Identity) Valid() bool {
	return i.UserID > 0 || i.Token != ""
}
