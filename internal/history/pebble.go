package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"nutrichat/internal/models"
)

// PebbleStore keeps turns in an embedded pebble database under
// turn/<user>/<unix nano>/<seq>, so a prefix scan yields them in save order.
type PebbleStore struct {
	db  *pebble.DB
	seq atomic.Uint64
	now func() time.Time
}

func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", path, err)
	}
	return &PebbleStore{db: db, now: time.Now}, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func userPrefix(userID int64) []byte {
	return []byte(fmt.Sprintf("turn/%020d/", userID))
}

// prefixEnd is the first key after every key starting with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) ListTurns(ctx context.Context, identity models.Identity) ([]models.Turn, error) {
	if identity.UserID <= 0 {
		return nil, ErrNoUser
	}
	prefix := userPrefix(identity.UserID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, fmt.Errorf("open iterator: %w", err)
	}
	defer iter.Close()

	var turns []models.Turn
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var turn models.Turn
		if err := json.Unmarshal(iter.Value(), &turn); err != nil {
			return nil, fmt.Errorf("decode turn %s: %w", iter.Key(), err)
		}
		turns = append(turns, turn)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

func (s *PebbleStore) SaveTurn(ctx context.Context, identity models.Identity, in models.TurnInput) error {
	if err := validate(identity, in); err != nil {
		return err
	}
	ts := s.now().UTC()
	turn := models.Turn{UserText: in.Text, Timestamp: ts, SessionKey: in.SessionKey}
	if in.Response != "" {
		resp := in.Response
		turn.AssistantText = &resp
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	key := fmt.Sprintf("%s%020d/%06d", userPrefix(identity.UserID), ts.UnixNano(), s.seq.Add(1))
	if err := s.db.Set([]byte(key), data, pebble.Sync); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}
