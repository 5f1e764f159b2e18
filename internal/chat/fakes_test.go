package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"nutrichat/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	turns   []models.Turn
	listErr error
	saveErr error
	saved   []models.TurnInput
	savedCh chan models.TurnInput
}

func newFakeStore(turns ...models.Turn) *fakeStore {
	return &fakeStore{turns: turns, savedCh: make(chan models.TurnInput, 16)}
}

func (f *fakeStore) ListTurns(ctx context.Context, identity models.Identity) ([]models.Turn, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Turn, len(f.turns))
	copy(out, f.turns)
	return out, nil
}

func (f *fakeStore) SaveTurn(ctx context.Context, identity models.Identity, turn models.TurnInput) error {
	f.mu.Lock()
	f.saved = append(f.saved, turn)
	f.mu.Unlock()
	f.savedCh <- turn
	return f.saveErr
}

func (f *fakeStore) savedTurns() []models.TurnInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TurnInput, len(f.saved))
	copy(out, f.saved)
	return out
}

type adviceResult struct {
	text string
	err  error
}

type adviceCall struct {
	prompt string
	result chan adviceResult
}

// fakeAdvice blocks every Generate call until the test answers it.
type fakeAdvice struct {
	calls chan adviceCall
}

func newFakeAdvice() *fakeAdvice {
	return &fakeAdvice{calls: make(chan adviceCall, 16)}
}

func (f *fakeAdvice) Generate(ctx context.Context, prompt string) (string, error) {
	call := adviceCall{prompt: prompt, result: make(chan adviceResult, 1)}
	f.calls <- call
	select {
	case res := <-call.result:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeAdvice) next(t *testing.T) adviceCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("advice service was not called")
		return adviceCall{}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string {
	return &s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitSaved(t *testing.T, store *fakeStore) models.TurnInput {
	t.Helper()
	select {
	case turn := <-store.savedCh:
		return turn
	case <-time.After(2 * time.Second):
		t.Fatalf("turn was not saved")
		return models.TurnInput{}
	}
}

func collect(seq func(func(models.Message) bool)) []models.Message {
	var out []models.Message
	for msg := range seq {
		out = append(out, msg)
	}
	return out
}
