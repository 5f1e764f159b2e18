package chat

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"nutrichat/internal/markup"
	"nutrichat/internal/models"
)

// DefaultPlaceholder is the content of a reply that is still being generated.
const DefaultPlaceholder = "thinking"

// HistoryStore is where completed turns live.
type HistoryStore interface {
	ListTurns(ctx context.Context, identity models.Identity) ([]models.Turn, error)
	SaveTurn(ctx context.Context, identity models.Identity, turn models.TurnInput) error
}

// AdviceGenerator produces one reply for a user message.
type AdviceGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Translator  markup.Translator
	Placeholder string
	// ReplyTimeout bounds each advice call. Zero waits indefinitely.
	ReplyTimeout time.Duration
	Logger       *slog.Logger
	// OnPersistError is called from a background goroutine.
	OnPersistError func(*PersistError)
	Now            func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Translator == nil {
		c.Translator = markup.HTML{}
	}
	if c.Placeholder == "" {
		c.Placeholder = DefaultPlaceholder
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type submitRequest struct {
	text   string
	result chan submitResult
}

type submitResult struct {
	id  models.MessageID
	err error
}

type seedEvent struct {
	msgs []models.Message
	err  error
}

// replyEvent carries an advice outcome back to the loop. Outcomes that
// arrive after Close never reach it; generate drops them.
type replyEvent struct {
	pending  models.MessageID
	userText string
	reply    string
	err      error
}

// Session is one user's conversation for the lifetime of an application load.
// It owns a Timeline that only its event loop goroutine touches.
type Session struct {
	id         string
	identity   models.Identity
	store      HistoryStore
	advice     AdviceGenerator
	reconciler *Reconciler
	cfg        Config
	log        *slog.Logger

	// loop-owned
	timeline *Timeline
	lastAt   time.Time
	seq      Sequence

	submitCh   chan submitRequest
	replyCh    chan replyEvent
	seedCh     chan seedEvent
	snapshotCh chan chan []models.Message
	changes    chan struct{}
	ready      chan struct{}
	done       chan struct{}

	loadErr     error
	outstanding atomic.Int64
	closeOnce   sync.Once
	background  sync.WaitGroup
}

// NewSession starts a session for identity and begins loading its history
// with ctx. Ready is closed once the history is in place, whether or not the
// load succeeded.
func NewSession(ctx context.Context, identity models.Identity, store HistoryStore, advice AdviceGenerator, cfg Config) (*Session, error) {
	if !identity.Valid() {
		return nil, ErrNoIdentity
	}
	cfg = cfg.withDefaults()
	s := &Session{
		id:         uuid.NewString(),
		identity:   identity,
		store:      store,
		advice:     advice,
		reconciler: NewReconciler(store, cfg.Translator),
		cfg:        cfg,
		timeline:   NewTimeline(),
		submitCh:   make(chan submitRequest),
		replyCh:    make(chan replyEvent),
		seedCh:     make(chan seedEvent, 1),
		snapshotCh: make(chan chan []models.Message),
		changes:    make(chan struct{}, 1),
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.log = cfg.Logger.With("session", s.id, "user", identity.Username)

	go s.run()
	go s.load(ctx)
	return s, nil
}

// ID is the session key stored with every turn this session persists.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) Identity() models.Identity {
	return s.identity
}

// Ready is closed when the initial history has been reconciled.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// LoadErr returns the *LoadError from the initial fetch, if any. It is only
// meaningful after Ready is closed.
func (s *Session) LoadErr() error {
	select {
	case <-s.ready:
		return s.loadErr
	default:
		return nil
	}
}

// Changes signals that the timeline changed. Signals coalesce; readers
// re-render the whole timeline.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// AwaitingReply reports whether any submitted turn is still unresolved.
func (s *Session) AwaitingReply() bool {
	return s.outstanding.Load() > 0
}

// Submit starts a turn for text and returns the id of its pending reply.
// Before Ready it blocks until the history is in place or ctx is done.
func (s *Session) Submit(ctx context.Context, text string) (models.MessageID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyInput
	}
	if s.closed() {
		return 0, ErrSessionClosed
	}
	req := submitRequest{text: text, result: make(chan submitResult, 1)}
	select {
	case s.submitCh <- req:
	case <-s.done:
		return 0, ErrSessionClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	res := <-req.result
	return res.id, res.err
}

// Messages returns the timeline as of the call.
func (s *Session) Messages() iter.Seq[models.Message] {
	msgs := s.snapshot()
	return func(yield func(models.Message) bool) {
		for _, msg := range msgs {
			if !yield(msg) {
				return
			}
		}
	}
}

// Close discards the timeline. Replies that arrive later are dropped; their
// turns are still persisted.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Wait blocks until background advice calls and saves have finished or ctx
// is done.
func (s *Session) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.background.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) snapshot() []models.Message {
	if s.closed() {
		return nil
	}
	reply := make(chan []models.Message, 1)
	select {
	case s.snapshotCh <- reply:
	case <-s.done:
		return nil
	}
	return <-reply
}

func (s *Session) run() {
	var submits chan submitRequest
	for {
		if s.closed() {
			s.timeline = nil
			return
		}
		select {
		case <-s.done:
			s.timeline = nil
			return
		case ev := <-s.seedCh:
			s.seed(ev)
			submits = s.submitCh
		case req := <-submits:
			id, err := s.startTurn(req.text)
			req.result <- submitResult{id: id, err: err}
		case ev := <-s.replyCh:
			s.resolveTurn(ev)
		case reply := <-s.snapshotCh:
			reply <- s.timeline.Snapshot()
		}
	}
}

func (s *Session) load(ctx context.Context) {
	msgs, err := s.reconciler.ReconcileInto(ctx, s.identity, &s.seq)
	s.seedCh <- seedEvent{msgs: msgs, err: err}
}

func (s *Session) seed(ev seedEvent) {
	for _, msg := range ev.msgs {
		if err := s.timeline.Append(msg); err != nil {
			s.log.Error("seed timeline", "id", msg.ID, "error", err)
			continue
		}
		if msg.CreatedAt.After(s.lastAt) {
			s.lastAt = msg.CreatedAt
		}
	}
	if ev.err != nil {
		s.log.Warn("history unavailable, starting empty", "error", ev.err)
	} else {
		s.log.Debug("history loaded", "messages", len(ev.msgs))
	}
	s.loadErr = ev.err
	close(s.ready)
	s.notify()
}

// stamp returns the next creation time, never earlier than the last one.
func (s *Session) stamp() time.Time {
	now := s.cfg.Now()
	if now.Before(s.lastAt) {
		now = s.lastAt
	}
	s.lastAt = now
	return now
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
