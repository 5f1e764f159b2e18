// Package history stores completed chat turns per user.
package history

import (
	"context"
	"errors"
	"sort"

	"nutrichat/internal/models"
)

var (
	ErrNoUser    = errors.New("history: user id required")
	ErrEmptyTurn = errors.New("history: turn text required")
)

// Store is the contract every backend implements.
type Store interface {
	ListTurns(ctx context.Context, identity models.Identity) ([]models.Turn, error)
	SaveTurn(ctx context.Context, identity models.Identity, turn models.TurnInput) error
}

// Group arranges turns into client sessions. Sessions are ordered by their
// first turn and turns within a session by timestamp.
func Group(turns []models.Turn) []models.TurnSession {
	sorted := make([]models.Turn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	index := make(map[string]int)
	var sessions []models.TurnSession
	for _, turn := range sorted {
		pos, ok := index[turn.SessionKey]
		if !ok {
			pos = len(sessions)
			index[turn.SessionKey] = pos
			sessions = append(sessions, models.TurnSession{SessionKey: turn.SessionKey})
		}
		sessions[pos].Messages = append(sessions[pos].Messages, turn)
	}
	return sessions
}

// Flatten undoes Group, keeping session order.
func Flatten(sessions []models.TurnSession) []models.Turn {
	var turns []models.Turn
	for _, s := range sessions {
		for _, turn := range s.Messages {
			if turn.SessionKey == "" {
				turn.SessionKey = s.SessionKey
			}
			turns = append(turns, turn)
		}
	}
	return turns
}

func validate(identity models.Identity, turn models.TurnInput) error {
	if identity.UserID <= 0 {
		return ErrNoUser
	}
	if turn.Text == "" {
		return ErrEmptyTurn
	}
	return nil
}
