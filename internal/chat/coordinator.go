package chat

import (
	"context"
	"strings"

	"nutrichat/internal/models"
)

// startTurn appends the user message and a pending reply, then asks for
// advice off the loop.
func (s *Session) startTurn(text string) (models.MessageID, error) {
	user := models.Message{
		ID:        s.seq.Next(),
		Role:      models.RoleUser,
		Content:   text,
		Status:    models.StatusFinal,
		CreatedAt: s.stamp(),
	}
	if err := s.timeline.Append(user); err != nil {
		return 0, err
	}
	pending := models.Message{
		ID:        s.seq.Next(),
		Role:      models.RoleAssistant,
		Content:   s.cfg.Placeholder,
		Status:    models.StatusPending,
		CreatedAt: s.stamp(),
	}
	if err := s.timeline.Append(pending); err != nil {
		return 0, err
	}
	s.outstanding.Add(1)
	s.notify()

	s.background.Add(1)
	go s.generate(pending.ID, text)
	return pending.ID, nil
}

func (s *Session) generate(pending models.MessageID, text string) {
	defer s.background.Done()

	ctx := context.Background()
	if s.cfg.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ReplyTimeout)
		defer cancel()
	}
	reply, err := s.advice.Generate(ctx, text)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}
	ev := replyEvent{pending: pending, userText: text, reply: reply, err: err}

	// held for the save that follows resolution
	s.background.Add(1)
	select {
	case s.replyCh <- ev:
	case <-s.done:
		s.log.Debug("session closed, dropping reply", "pending", pending)
		s.outstanding.Add(-1)
		go s.persist(ev.userText, ev.response())
	}
}

// response is what gets saved for the turn: the raw reply, or the error text
// the user saw.
func (ev replyEvent) response() string {
	if ev.err != nil {
		return (&GenerationError{Err: ev.err}).UserMessage()
	}
	return ev.reply
}

func (s *Session) resolveTurn(ev replyEvent) {
	content, status := "", models.StatusFinal
	if ev.err != nil {
		genErr := &GenerationError{Err: ev.err}
		s.log.Warn("advice failed", "pending", ev.pending, "error", genErr)
		content, status = s.cfg.Translator.Plain(genErr.UserMessage()), models.StatusFailed
	} else {
		content = s.cfg.Translator.Translate(ev.reply)
	}

	err := s.timeline.Replace(ev.pending, func(msg models.Message) models.Message {
		msg.Content = content
		msg.Status = status
		return msg
	})
	if err != nil {
		s.log.Error("resolve reply", "pending", ev.pending, "error", err)
		s.background.Done()
		return
	}
	s.outstanding.Add(-1)
	s.notify()
	go s.persist(ev.userText, ev.response())
}

// persist saves a resolved turn. Failures are reported once and never
// retried.
func (s *Session) persist(userText, response string) {
	defer s.background.Done()
	turn := models.TurnInput{Text: userText, Response: response, SessionKey: s.id}
	if err := s.store.SaveTurn(context.Background(), s.identity, turn); err != nil {
		perr := &PersistError{Turn: turn, Err: err}
		s.log.Warn("turn not saved", "error", perr)
		if s.cfg.OnPersistError != nil {
			s.cfg.OnPersistError(perr)
		}
	}
}
