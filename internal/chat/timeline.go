package chat

import (
	"fmt"
	"iter"
	"sync/atomic"

	"nutrichat/internal/models"
)

// Sequence hands out message ids for one session.
type Sequence struct {
	last atomic.Uint64
}

func (s *Sequence) Next() models.MessageID {
	return models.MessageID(s.last.Add(1))
}

// Timeline is the ordered message log of a session. It only grows: messages are
// appended, and pending replies are resolved in place. It is not safe for
// concurrent use; a Session confines it to its event loop.
type Timeline struct {
	msgs    []models.Message
	index   map[models.MessageID]int
	pending map[models.MessageID]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{
		index:   make(map[models.MessageID]int),
		pending: make(map[models.MessageID]struct{}),
	}
}

// Append adds msg at the end. CreatedAt ordering is the caller's responsibility.
func (t *Timeline) Append(msg models.Message) error {
	if _, ok := t.index[msg.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, msg.ID)
	}
	if msg.Pending() && msg.Role != models.RoleAssistant {
		return fmt.Errorf("%w: only assistant messages may be pending", ErrInvalidMessage)
	}
	t.index[msg.ID] = len(t.msgs)
	t.msgs = append(t.msgs, msg)
	if msg.Pending() {
		t.pending[msg.ID] = struct{}{}
	}
	return nil
}

// Replace resolves the pending message id through updater, keeping its
// position, id, role and timestamp. A message resolves once: later calls
// with the same id return ErrNotFound.
func (t *Timeline) Replace(id models.MessageID, updater func(models.Message) models.Message) error {
	if _, ok := t.pending[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	pos := t.index[id]
	cur := t.msgs[pos]
	next := updater(cur)
	if next.Pending() {
		return fmt.Errorf("%w: replacement is still pending", ErrInvalidMessage)
	}
	next.ID, next.Role, next.CreatedAt = cur.ID, cur.Role, cur.CreatedAt
	t.msgs[pos] = next
	delete(t.pending, id)
	return nil
}

func (t *Timeline) Get(id models.MessageID) (models.Message, bool) {
	pos, ok := t.index[id]
	if !ok {
		return models.Message{}, false
	}
	return t.msgs[pos], true
}

func (t *Timeline) Last() (models.Message, bool) {
	if len(t.msgs) == 0 {
		return models.Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}

func (t *Timeline) Len() int {
	return len(t.msgs)
}

// PendingCount reports how many replies are still outstanding.
func (t *Timeline) PendingCount() int {
	return len(t.pending)
}

// Snapshot copies the current messages.
func (t *Timeline) Snapshot() []models.Message {
	out := make([]models.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// All iterates the messages in order. Each range starts over from the first
// message.
func (t *Timeline) All() iter.Seq[models.Message] {
	return func(yield func(models.Message) bool) {
		for _, msg := range t.msgs {
			if !yield(msg) {
				return
			}
		}
	}
}
