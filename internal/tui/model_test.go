package tui

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nutrichat/internal/chat"
	"nutrichat/internal/models"
)

type fakeConversation struct {
	mu        sync.Mutex
	ready     chan struct{}
	changes   chan struct{}
	loadErr   error
	msgs      []models.Message
	submitted []string
	closed    bool
}

func newFakeConversation(msgs ...models.Message) *fakeConversation {
	ready := make(chan struct{})
	close(ready)
	return &fakeConversation{ready: ready, changes: make(chan struct{}, 1), msgs: msgs}
}

func (f *fakeConversation) Ready() <-chan struct{}   { return f.ready }
func (f *fakeConversation) LoadErr() error           { return f.loadErr }
func (f *fakeConversation) Changes() <-chan struct{} { return f.changes }

func (f *fakeConversation) AwaitingReply() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.Pending() {
			return true
		}
	}
	return false
}

func (f *fakeConversation) Submit(ctx context.Context, text string) (models.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, text)
	return models.MessageID(len(f.submitted)), nil
}

func (f *fakeConversation) Messages() iter.Seq[models.Message] {
	f.mu.Lock()
	snapshot := append([]models.Message(nil), f.msgs...)
	f.mu.Unlock()
	return func(yield func(models.Message) bool) {
		for _, m := range snapshot {
			if !yield(m) {
				return
			}
		}
	}
}

func (f *fakeConversation) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestRenderTimeline(t *testing.T) {
	msgs := []models.Message{
		{ID: 1, Role: models.RoleUser, Content: "hi", Status: models.StatusFinal, CreatedAt: base},
		{ID: 2, Role: models.RoleAssistant, Content: "Hello!", Status: models.StatusFinal, CreatedAt: base},
		{ID: 3, Role: models.RoleUser, Content: "eggs?", Status: models.StatusFinal, CreatedAt: base.Add(time.Hour)},
		{ID: 4, Role: models.RoleAssistant, Content: chat.DefaultPlaceholder, Status: models.StatusPending, CreatedAt: base.Add(time.Hour)},
	}
	out := renderTimeline(msgs, newTheme(), "*", 80, base.Add(time.Hour+10*time.Second))

	for _, want := range []string{"You", "NUTRI-BOT", "hi", "Hello!", "eggs?", "* ", chat.DefaultPlaceholder, "1 hour ago", "just now"} {
		if !strings.Contains(out, want) {
			t.Fatalf("timeline missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "hi") > strings.Index(out, "eggs?") {
		t.Fatalf("timeline out of order:\n%s", out)
	}
}

func TestRenderTimelineEmpty(t *testing.T) {
	if out := renderTimeline(nil, newTheme(), "*", 80, base); !strings.Contains(out, "No conversation yet") {
		t.Fatalf("unexpected empty timeline %q", out)
	}
}

func TestEnterSubmitsTrimmedInput(t *testing.T) {
	conv := newFakeConversation()
	m := New(conv, "bob")
	m.input.SetValue("  can I eat oats?  ")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a submit command")
	}
	if msg := cmd(); msg != (submittedMsg{}) {
		t.Fatalf("unexpected submit result %#v", msg)
	}
	if len(conv.submitted) != 1 || conv.submitted[0] != "can I eat oats?" {
		t.Fatalf("unexpected submissions %v", conv.submitted)
	}
	if got := next.(Model).input.Value(); got != "" {
		t.Fatalf("input not cleared: %q", got)
	}
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	conv := newFakeConversation()
	m := New(conv, "bob")
	m.input.SetValue("   ")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatalf("blank input should not submit")
	}
}

func TestReadyShowsLoadFailure(t *testing.T) {
	conv := newFakeConversation()
	m := New(conv, "bob")
	loadErr := &chat.LoadError{Err: errors.New("connection refused")}
	next, _ := m.Update(readyMsg{err: loadErr})
	got := next.(Model)
	if !got.statusErr || !strings.Contains(got.status, "connection refused") {
		t.Fatalf("unexpected status %q", got.status)
	}
}

func TestChangeRerendersTimeline(t *testing.T) {
	conv := newFakeConversation()
	m := New(conv, "bob")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	next, _ = m.Update(readyMsg{})
	m = next.(Model)

	conv.mu.Lock()
	conv.msgs = append(conv.msgs, models.Message{ID: 1, Role: models.RoleUser, Content: "kale chips", Status: models.StatusFinal, CreatedAt: base})
	conv.mu.Unlock()

	next, cmd := m.Update(changedMsg{})
	if cmd == nil {
		t.Fatalf("expected the change listener to be re-armed")
	}
	if !strings.Contains(next.(Model).timeline.View(), "kale chips") {
		t.Fatalf("timeline not re-rendered")
	}
}

func TestTimelineWaitsForReady(t *testing.T) {
	conv := newFakeConversation()
	m := New(conv, "bob")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	if strings.Contains(m.timeline.View(), "No conversation yet") {
		t.Fatalf("empty-state shown while history is still loading")
	}

	next, _ = m.Update(readyMsg{})
	if !strings.Contains(next.(Model).timeline.View(), "No conversation yet") {
		t.Fatalf("empty-state missing once ready")
	}
}

func TestQuitClosesConversation(t *testing.T) {
	conv := newFakeConversation()
	m := New(conv, "bob")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !conv.closed {
		t.Fatalf("expected quit and close")
	}
}
