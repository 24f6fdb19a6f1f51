package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/biodoia/goriftcoach/internal/analysis"
	"github.com/biodoia/goriftcoach/internal/stats"
)

const (
	pollTimeout   = 5 * time.Second
	depthInterval = 15 * time.Second
)

// Runner esegue una singola analisi. Implementato da analysis.Task.
type Runner interface {
	Run(ctx context.Context, req analysis.AnalysisRequest) (*analysis.TaskResult, error)
}

// Pool consuma la coda con un numero fisso di worker goroutine.
// Lo shutdown è cooperativo: alla cancellazione del context ogni worker
// finisce il task in corso e poi esce.
type Pool struct {
	broker      *Broker
	runner      Runner
	concurrency int
	metrics     *stats.Metrics

	wg sync.WaitGroup
}

// NewPool crea il pool di worker
func NewPool(broker *Broker, runner Runner, concurrency int, metrics *stats.Metrics) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		broker:      broker,
		runner:      runner,
		concurrency: concurrency,
		metrics:     metrics,
	}
}

// Start avvia i worker e il campionamento della profondità della coda
func (p *Pool) Start(ctx context.Context) {
	log.Info().Int("concurrency", p.concurrency).Msg("Starting analysis worker pool")

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.wg.Add(1)
	go p.sampleDepth(ctx)
}

// Wait blocca fino all'uscita di tutti i worker
func (p *Pool) Wait() {
	p.wg.Wait()
	log.Info().Msg("Analysis worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	l := log.With().Int("worker", id).Logger()
	l.Debug().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			l.Debug().Msg("Worker stopping")
			return
		default:
		}

		req, raw, err := p.broker.Dequeue(ctx, pollTimeout)
		if err != nil {
			if errors.Is(err, ErrQueueEmpty) || ctx.Err() != nil {
				continue
			}
			if raw != nil {
				// Payload indecodificabile: dead letter, mai requeue
				l.Error().Err(err).Msg("Poison message, moving to dead letter queue")
				if dlErr := p.broker.DeadLetter(ctx, raw); dlErr != nil {
					l.Error().Err(dlErr).Msg("Failed to dead-letter payload")
				}
				continue
			}
			l.Error().Err(err).Msg("Dequeue failed, backing off")
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		// Il task in corso non viene interrotto dallo shutdown: gli
		// stage hanno i propri deadline e chiudono in tempi limitati.
		result, runErr := p.runner.Run(context.WithoutCancel(ctx), *req)
		if runErr != nil {
			// Errore di programmazione: il record failed è già scritto,
			// il payload va ispezionato a mano
			l.Error().Err(runErr).
				Str("match_id", req.MatchID).
				Str("requester", req.RequesterID).
				Msg("Task raised a contract violation")
			if dlErr := p.broker.DeadLetter(ctx, raw); dlErr != nil {
				l.Error().Err(dlErr).Msg("Failed to dead-letter payload")
			}
			continue
		}

		if !result.Success {
			l.Warn().
				Str("match_id", req.MatchID).
				Str("stage", result.ErrorStage).
				Str("error", result.Error).
				Msg("Analysis completed with failure status")
		}
	}
}

// sampleDepth aggiorna periodicamente la gauge di profondità della coda
func (p *Pool) sampleDepth(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(depthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := p.broker.Depth(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to sample queue depth")
				continue
			}
			p.metrics.QueueDepth.Set(float64(depth))
		}
	}
}
