package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrAttemptsExhausted viene restituito quando si esaurisce il budget di tentativi
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")
)

// WaitHinter è implementato dagli errori che trasportano un'indicazione
// di attesa dal vendor (header Retry-After). Quando presente, l'attesa
// suggerita sostituisce il backoff calcolato, con un minimo di 1 secondo.
type WaitHinter interface {
	WaitHint() time.Duration
}

// RetryConfig contiene la configurazione del retry
type RetryConfig struct {
	// MaxAttempts numero massimo di tentativi complessivi (>= 1)
	MaxAttempts int

	// InitialBackoff backoff iniziale
	InitialBackoff time.Duration

	// MaxBackoff backoff massimo
	MaxBackoff time.Duration

	// Multiplier moltiplicatore per exponential backoff
	Multiplier float64

	// JitterFraction frazione di jitter (0.0-1.0); 0 disabilita il jitter
	JitterFraction float64

	// Retryable decide se un errore è ritentabile; nil ritenta tutto
	Retryable func(error) bool

	// OnRetry callback chiamata prima di ogni nuovo tentativo
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetryConfig restituisce una configurazione di default
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Retry implementa retry con exponential backoff, jitter e wait hint
type Retry struct {
	config RetryConfig
	rng    *rand.Rand
}

// NewRetry crea un nuovo retry handler
func NewRetry(config RetryConfig) *Retry {
	def := DefaultRetryConfig()
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = def.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}
	if config.Multiplier <= 0 {
		config.Multiplier = def.Multiplier
	}
	if config.JitterFraction < 0 || config.JitterFraction > 1 {
		config.JitterFraction = def.JitterFraction
	}

	return &Retry{
		config: config,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute esegue una funzione con retry logic
func (r *Retry) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !r.isRetryable(err) {
			log.Debug().
				Err(err).
				Msg("Error is not retryable, stopping retries")
			return err
		}

		if attempt >= r.config.MaxAttempts {
			log.Warn().
				Err(err).
				Int("attempts", attempt).
				Msg("Retry attempts exhausted")
			return errors.Join(ErrAttemptsExhausted, err)
		}

		wait := r.waitFor(err, attempt-1)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, wait)
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.config.MaxAttempts).
			Dur("wait", wait).
			Msg("Retrying after error")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// waitFor calcola l'attesa prima del prossimo tentativo. Un WaitHint
// del vendor prevale sul backoff calcolato.
func (r *Retry) waitFor(err error, attempt int) time.Duration {
	var hinter WaitHinter
	if errors.As(err, &hinter) {
		hint := hinter.WaitHint()
		if hint < time.Second {
			hint = time.Second
		}
		return hint
	}
	return r.calculateBackoff(attempt)
}

// calculateBackoff calcola il backoff esponenziale per un tentativo
func (r *Retry) calculateBackoff(attempt int) time.Duration {
	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.Multiplier, float64(attempt))

	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	if r.config.JitterFraction > 0 {
		// Jitter: backoff ± (backoff * jitterFraction * random(-1, 1))
		backoff += backoff * r.config.JitterFraction * (r.rng.Float64()*2 - 1)
	}

	return time.Duration(backoff)
}

// isRetryable verifica se un errore è ritentabile
func (r *Retry) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if r.config.Retryable != nil {
		return r.config.Retryable(err)
	}
	return true
}
