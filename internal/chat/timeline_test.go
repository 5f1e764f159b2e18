package chat

import (
	"errors"
	"testing"
	"time"

	"nutrichat/internal/models"
)

func TestTimelineReplaceResolvesOnce(t *testing.T) {
	tl := NewTimeline()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mustAppend(t, tl, models.Message{ID: 1, Role: models.RoleUser, Content: "hi", Status: models.StatusFinal, CreatedAt: at})
	mustAppend(t, tl, models.Message{ID: 2, Role: models.RoleAssistant, Content: "thinking", Status: models.StatusPending, CreatedAt: at})

	err := tl.Replace(2, func(m models.Message) models.Message {
		m.ID = 99
		m.Role = models.RoleUser
		m.CreatedAt = time.Time{}
		m.Content = "Hello!"
		m.Status = models.StatusFinal
		return m
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, ok := tl.Get(2)
	if !ok {
		t.Fatalf("message 2 missing after replace")
	}
	if got.ID != 2 || got.Role != models.RoleAssistant || !got.CreatedAt.Equal(at) {
		t.Fatalf("identity fields changed: %+v", got)
	}
	if got.Content != "Hello!" || got.Status != models.StatusFinal {
		t.Fatalf("unexpected resolution: %+v", got)
	}
	if tl.PendingCount() != 0 {
		t.Fatalf("expected no pending messages, got %d", tl.PendingCount())
	}

	err = tl.Replace(2, func(m models.Message) models.Message {
		m.Content = "again"
		return m
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("second resolve: expected ErrNotFound, got %v", err)
	}
	if got, _ := tl.Get(2); got.Content != "Hello!" {
		t.Fatalf("second resolve mutated message: %+v", got)
	}
}

func TestTimelineReplaceUnknownOrFinal(t *testing.T) {
	tl := NewTimeline()
	mustAppend(t, tl, models.Message{ID: 1, Role: models.RoleUser, Content: "hi", Status: models.StatusFinal})

	noop := func(m models.Message) models.Message { return m }
	if err := tl.Replace(1, noop); !errors.Is(err, ErrNotFound) {
		t.Fatalf("final message: expected ErrNotFound, got %v", err)
	}
	if err := tl.Replace(7, noop); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestTimelineReplaceMustResolve(t *testing.T) {
	tl := NewTimeline()
	mustAppend(t, tl, models.Message{ID: 1, Role: models.RoleAssistant, Status: models.StatusPending})

	err := tl.Replace(1, func(m models.Message) models.Message { return m })
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if tl.PendingCount() != 1 {
		t.Fatalf("message should still be pending")
	}
}

func TestTimelineAppendRejects(t *testing.T) {
	tl := NewTimeline()
	mustAppend(t, tl, models.Message{ID: 1, Role: models.RoleUser, Status: models.StatusFinal})

	if err := tl.Append(models.Message{ID: 1, Role: models.RoleAssistant, Status: models.StatusFinal}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if err := tl.Append(models.Message{ID: 2, Role: models.RoleUser, Status: models.StatusPending}); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage for pending user message, got %v", err)
	}
	if tl.Len() != 1 {
		t.Fatalf("rejected appends changed the timeline: len=%d", tl.Len())
	}
}

func TestTimelineAllIsRestartable(t *testing.T) {
	tl := NewTimeline()
	for i := 1; i <= 4; i++ {
		mustAppend(t, tl, models.Message{ID: models.MessageID(i), Role: models.RoleUser, Status: models.StatusFinal})
	}

	first := collect(tl.All())
	second := collect(tl.All())
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("expected 4 messages twice, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != models.MessageID(i+1) || second[i].ID != first[i].ID {
			t.Fatalf("unexpected order at %d: %v / %v", i, first[i].ID, second[i].ID)
		}
	}

	seen := 0
	for range tl.All() {
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Fatalf("early break not honoured")
	}
}

func TestSequenceIsMonotonic(t *testing.T) {
	var seq Sequence
	prev := seq.Next()
	for i := 0; i < 100; i++ {
		next := seq.Next()
		if next <= prev {
			t.Fatalf("sequence went backwards: %d after %d", next, prev)
		}
		prev = next
	}
}

func mustAppend(t *testing.T, tl *Timeline, msg models.Message) {
	t.Helper()
	if err := tl.Append(msg); err != nil {
		t.Fatalf("append %d: %v", msg.ID, err)
	}
}
