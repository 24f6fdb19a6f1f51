package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey int

const correlationKey ctxKey = 0

// CorrelationID identifica ogni chiamata esterna fatta per conto di
// una singola analisi: "{session_id}:{branch_id}".
type CorrelationID struct {
	SessionID string
	BranchID  string
}

// String restituisce la forma canonica "{session}:{branch}"
func (c CorrelationID) String() string {
	return c.SessionID + ":" + c.BranchID
}

// WithCorrelation lega una CorrelationID al context
func WithCorrelation(ctx context.Context, cid CorrelationID) context.Context {
	return context.WithValue(ctx, correlationKey, cid)
}

// FromContext estrae la CorrelationID dal context, se presente
func FromContext(ctx context.Context) (CorrelationID, bool) {
	cid, ok := ctx.Value(correlationKey).(CorrelationID)
	return cid, ok
}

// Logger restituisce un logger con la correlation id già legata
func Logger(ctx context.Context) zerolog.Logger {
	l := log.Logger
	if cid, ok := FromContext(ctx); ok {
		l = l.With().Str("correlation_id", cid.String()).Logger()
	}
	return l
}

// Observe esegue fn emettendo un evento di inizio e uno di fine con
// durata ed esito. Non inghiotte mai l'errore: osserva soltanto.
func Observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	l := Logger(ctx)
	start := time.Now()

	l.Debug().Str("op", op).Msg("External call started")

	err := fn(ctx)
	duration := time.Since(start)

	evt := l.Info()
	if err != nil {
		evt = l.Warn().Err(err)
	}
	evt.
		Str("op", op).
		Dur("duration", duration).
		Bool("success", err == nil).
		Msg("External call finished")

	return err
}

// ObserveWith è come Observe ma consente di allegare metadati specifici
// dell'operazione all'evento di chiusura (status code, token, righe).
func ObserveWith(ctx context.Context, op string, fn func(ctx context.Context) (map[string]interface{}, error)) error {
	l := Logger(ctx)
	start := time.Now()

	l.Debug().Str("op", op).Msg("External call started")

	meta, err := fn(ctx)
	duration := time.Since(start)

	evt := l.Info()
	if err != nil {
		evt = l.Warn().Err(err)
	}
	evt = evt.
		Str("op", op).
		Dur("duration", duration).
		Bool("success", err == nil)
	for k, v := range meta {
		evt = evt.Interface(k, v)
	}
	evt.Msg("External call finished")

	return err
}
