package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nutrichat/internal/models"
)

// SQLStore keeps turns in the chat_turns table.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) ListTurns(ctx context.Context, identity models.Identity) ([]models.Turn, error) {
	if identity.UserID <= 0 {
		return nil, ErrNoUser
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_key, text, response, created_at FROM chat_turns WHERE user_id = ? ORDER BY created_at ASC, id ASC`,
		identity.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var (
			turn     models.Turn
			response sql.NullString
		)
		if err := rows.Scan(&turn.SessionKey, &turn.UserText, &response, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if response.Valid {
			turn.AssistantText = &response.String
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

func (s *SQLStore) SaveTurn(ctx context.Context, identity models.Identity, turn models.TurnInput) error {
	if err := validate(identity, turn); err != nil {
		return err
	}
	var response sql.NullString
	if turn.Response != "" {
		response = sql.NullString{String: turn.Response, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_turns (user_id, session_key, text, response, created_at) VALUES (?, ?, ?, ?, ?)`,
		identity.UserID, turn.SessionKey, turn.Text, response, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}
