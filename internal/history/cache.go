package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nutrichat/internal/models"
	"nutrichat/internal/redis"
)

const (
	invalidateChannel = "history:invalidate"
	defaultCacheTTL   = 10 * time.Minute
)

type invalidateMessage struct {
	UserID int64 `json:"user_id"`
}

type localEntry struct {
	turns   []models.Turn
	expires time.Time
}

// CachedStore fronts another store with an in-process copy of each user's
// turns and a shared redis copy. Saves drop both and tell other instances to
// drop theirs.
//
// Every drop bumps the user's generation. A read only fills the caches when
// the generation it started under is still current, so a snapshot taken
// before a save never outlives it.
type CachedStore struct {
	next  Store
	redis *redis.Client
	ttl   time.Duration
	log   *slog.Logger
	now   func() time.Time

	mu    sync.RWMutex
	local map[int64]localEntry
	gens  map[int64]uint64
}

func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		next:  next,
		redis: client,
		ttl:   ttl,
		log:   logger,
		now:   time.Now,
		local: make(map[int64]localEntry),
		gens:  make(map[int64]uint64),
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("history:turns:%d", userID)
}

// Listen drops local entries invalidated by other instances until ctx is done.
func (s *CachedStore) Listen(ctx context.Context) error {
	return s.redis.Subscribe(ctx, invalidateChannel, func(payload string) {
		var msg invalidateMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			s.log.Warn("history invalidation decode failed", "error", err)
			return
		}
		s.dropLocal(msg.UserID)
	})
}

func (s *CachedStore) ListTurns(ctx context.Context, identity models.Identity) ([]models.Turn, error) {
	if identity.UserID <= 0 {
		return nil, ErrNoUser
	}
	if turns, ok := s.loadLocal(identity.UserID); ok {
		return turns, nil
	}
	gen := s.generation(identity.UserID)

	key := cacheKey(identity.UserID)
	data, err := s.redis.Get(ctx, key)
	switch {
	case err == nil:
		var turns []models.Turn
		if err := json.Unmarshal([]byte(data), &turns); err == nil {
			s.storeLocal(identity.UserID, gen, turns)
			return clone(turns), nil
		}
		s.log.Warn("history cache entry corrupt", "key", key)
	case !errors.Is(err, redis.ErrCacheMiss):
		s.log.Warn("history cache read failed", "key", key, "error", err)
	}

	turns, err := s.next.ListTurns(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !s.storeLocal(identity.UserID, gen, turns) {
		return clone(turns), nil
	}
	if payload, err := json.Marshal(turns); err == nil {
		if err := s.redis.Set(ctx, key, payload, s.ttl); err != nil {
			s.log.Warn("history cache write failed", "key", key, "error", err)
		} else if s.generation(identity.UserID) != gen {
			// A save landed while writing; the redis copy may predate it.
			_ = s.redis.Del(ctx, key)
		}
	}
	return clone(turns), nil
}

func (s *CachedStore) SaveTurn(ctx context.Context, identity models.Identity, turn models.TurnInput) error {
	if err := s.next.SaveTurn(ctx, identity, turn); err != nil {
		return err
	}
	s.Invalidate(ctx, identity.UserID)
	return nil
}

// Invalidate drops the cached turns of userID everywhere.
func (s *CachedStore) Invalidate(ctx context.Context, userID int64) {
	s.dropLocal(userID)
	if err := s.redis.Del(ctx, cacheKey(userID)); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		s.log.Warn("history cache delete failed", "user", userID, "error", err)
	}
	payload, _ := json.Marshal(invalidateMessage{UserID: userID})
	if err := s.redis.Publish(ctx, invalidateChannel, payload); err != nil {
		s.log.Warn("history invalidation publish failed", "user", userID, "error", err)
	}
}

func (s *CachedStore) generation(userID int64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[userID]
}

func (s *CachedStore) loadLocal(userID int64) ([]models.Turn, bool) {
	s.mu.RLock()
	entry, ok := s.local[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !s.now().Before(entry.expires) {
		s.mu.Lock()
		if cur, ok := s.local[userID]; ok && cur.expires.Equal(entry.expires) {
			delete(s.local, userID)
		}
		s.mu.Unlock()
		return nil, false
	}
	return clone(entry.turns), true
}

// storeLocal keeps turns only if no drop happened since gen was read.
func (s *CachedStore) storeLocal(userID int64, gen uint64, turns []models.Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] != gen {
		return false
	}
	now := s.now()
	for id, entry := range s.local {
		if !now.Before(entry.expires) {
			delete(s.local, id)
		}
	}
	s.local[userID] = localEntry{turns: clone(turns), expires: now.Add(s.ttl)}
	return true
}

func (s *CachedStore) dropLocal(userID int64) {
	s.mu.Lock()
	delete(s.local, userID)
	s.gens[userID]++
	s.mu.Unlock()
}

func clone(turns []models.Turn) []models.Turn {
	if turns == nil {
		return nil
	}
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out
}
