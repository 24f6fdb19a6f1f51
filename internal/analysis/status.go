package analysis

import (
	"context"
	"fmt"

	"github.com/biodoia/goriftcoach/internal/observability"
	"github.com/biodoia/goriftcoach/pkg/models"
)

// StatusTracker aggiorna il ciclo di vita della riga persistita tra
// gli stage, validando ogni transizione contro la macchina a stati.
type StatusTracker struct {
	store       Store
	matchID     string
	requesterID string
	current     models.AnalysisStatus
}

// NewStatusTracker crea un tracker a partire dallo stato implicito pending
func NewStatusTracker(store Store, matchID, requesterID string) *StatusTracker {
	return &StatusTracker{
		store:       store,
		matchID:     matchID,
		requesterID: requesterID,
		current:     models.StatusPending,
	}
}

// Current restituisce lo stato corrente
func (t *StatusTracker) Current() models.AnalysisStatus {
	return t.current
}

// MarkPersisted registra che l'upsert dello stage 3 ha scritto la riga
// con lo stato indicato, senza un secondo round-trip al database.
func (t *StatusTracker) MarkPersisted(status models.AnalysisStatus) error {
	if !t.current.CanTransitionTo(status) {
		return fmt.Errorf("illegal status transition %s -> %s", t.current, status)
	}
	t.current = status
	return nil
}

// Transition applica la transizione sul database e aggiorna lo stato locale
func (t *StatusTracker) Transition(ctx context.Context, next models.AnalysisStatus, errMsg string) error {
	if !t.current.CanTransitionTo(next) {
		return fmt.Errorf("illegal status transition %s -> %s", t.current, next)
	}

	if err := t.store.UpdateAnalysisStatus(ctx, t.matchID, t.requesterID, next, errMsg); err != nil {
		return fmt.Errorf("failed to update status to %s: %w", next, err)
	}

	l := observability.Logger(ctx)
	l.Debug().
		Str("from", string(t.current)).
		Str("to", string(next)).
		Msg("Analysis status transition")

	t.current = next
	return nil
}
