package chat

import (
	"context"
	"sort"

	"nutrichat/internal/markup"
	"nutrichat/internal/models"
)

// Reconciler turns persisted turns into the messages that seed a timeline.
type Reconciler struct {
	store      HistoryStore
	translator markup.Translator
}

func NewReconciler(store HistoryStore, translator markup.Translator) *Reconciler {
	if translator == nil {
		translator = markup.HTML{}
	}
	return &Reconciler{store: store, translator: translator}
}

// Reconcile fetches the user's turns and linearizes them by timestamp. A fetch
// failure yields an empty sequence and a *LoadError; a turn without a reply
// contributes only its user message.
func (r *Reconciler) Reconcile(ctx context.Context, identity models.Identity) ([]models.Message, error) {
	return r.ReconcileInto(ctx, identity, &Sequence{})
}

// ReconcileInto is Reconcile drawing message ids from seq.
func (r *Reconciler) ReconcileInto(ctx context.Context, identity models.Identity, seq *Sequence) ([]models.Message, error) {
	if !identity.Valid() {
		return nil, ErrNoIdentity
	}
	turns, err := r.store.ListTurns(ctx, identity)
	if err != nil {
		return []models.Message{}, &LoadError{Err: err}
	}

	sorted := make([]models.Turn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	msgs := make([]models.Message, 0, 2*len(sorted))
	for _, turn := range sorted {
		msgs = append(msgs, models.Message{
			ID:        seq.Next(),
			Role:      models.RoleUser,
			Content:   turn.UserText,
			Status:    models.StatusFinal,
			CreatedAt: turn.Timestamp,
		})
		if !turn.HasReply() {
			continue
		}
		msgs = append(msgs, models.Message{
			ID:        seq.Next(),
			Role:      models.RoleAssistant,
			Content:   r.translator.Translate(*turn.AssistantText),
			Status:    models.StatusFinal,
			CreatedAt: turn.Timestamp,
		})
	}
	return msgs, nil
}
