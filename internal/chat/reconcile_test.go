package chat

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"nutrichat/internal/models"
)

var alice = models.Identity{UserID: 7, Username: "alice", Token: "tok"}

func TestReconcilePairsTurns(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(
		models.Turn{UserText: "hi", AssistantText: strPtr("Hello!"), Timestamp: base},
		models.Turn{UserText: "thanks", Timestamp: base.Add(time.Minute)},
	)

	msgs, err := NewReconciler(store, nil).Reconcile(context.Background(), alice)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	want := []struct {
		role    models.Role
		content string
	}{
		{models.RoleUser, "hi"},
		{models.RoleAssistant, "Hello!"},
		{models.RoleUser, "thanks"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d: %+v", len(want), len(msgs), msgs)
	}
	seen := map[models.MessageID]bool{}
	for i, w := range want {
		if msgs[i].Role != w.role || msgs[i].Content != w.content {
			t.Fatalf("message %d: expected %s %q, got %s %q", i, w.role, w.content, msgs[i].Role, msgs[i].Content)
		}
		if msgs[i].Status != models.StatusFinal {
			t.Fatalf("message %d is not final", i)
		}
		if seen[msgs[i].ID] {
			t.Fatalf("duplicate id %d", msgs[i].ID)
		}
		seen[msgs[i].ID] = true
	}
}

func TestReconcileTranslatesReplies(t *testing.T) {
	store := newFakeStore(models.Turn{UserText: "eggs?", AssistantText: strPtr("**Yes**, in moderation."), Timestamp: time.Now()})

	msgs, err := NewReconciler(store, nil).Reconcile(context.Background(), alice)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if msgs[1].Content != "<strong>Yes</strong>, in moderation." {
		t.Fatalf("reply not translated: %q", msgs[1].Content)
	}
	if msgs[0].Content != "eggs?" {
		t.Fatalf("user text must stay verbatim: %q", msgs[0].Content)
	}
}

func TestReconcileOrdersByTimestamp(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var turns []models.Turn
	for i := 0; i < 40; i++ {
		// several turns share a timestamp
		at := base.Add(time.Duration(i/3) * time.Second)
		turns = append(turns, models.Turn{UserText: string(rune('a' + i%26)), AssistantText: strPtr("ok"), Timestamp: at})
	}
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(turns), func(i, j int) { turns[i], turns[j] = turns[j], turns[i] })

	msgs, err := NewReconciler(newFakeStore(turns...), nil).Reconcile(context.Background(), alice)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(msgs) != 80 {
		t.Fatalf("expected 80 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("out of order at %d: %v before %v", i, msgs[i].CreatedAt, msgs[i-1].CreatedAt)
		}
	}

	// ties keep fetch order
	var fetchOrder, got []string
	tie := base.Add(5 * time.Second)
	for _, turn := range turns {
		if turn.Timestamp.Equal(tie) {
			fetchOrder = append(fetchOrder, turn.UserText)
		}
	}
	for _, msg := range msgs {
		if msg.Role == models.RoleUser && msg.CreatedAt.Equal(tie) {
			got = append(got, msg.Content)
		}
	}
	if len(got) != len(fetchOrder) {
		t.Fatalf("tie group size mismatch: %v vs %v", got, fetchOrder)
	}
	for i := range got {
		if got[i] != fetchOrder[i] {
			t.Fatalf("tie order changed: got %v, fetched %v", got, fetchOrder)
		}
	}
}

func TestReconcileLoadFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")

	msgs, err := NewReconciler(store, nil).Reconcile(context.Background(), alice)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
	if !errors.Is(err, store.listErr) {
		t.Fatalf("load error should wrap the cause")
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected an empty sequence, got %v", msgs)
	}
}

func TestReconcileRequiresIdentity(t *testing.T) {
	_, err := NewReconciler(newFakeStore(), nil).Reconcile(context.Background(), models.Identity{})
	if !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
}
