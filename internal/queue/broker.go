package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/goriftcoach/internal/analysis"
	"github.com/biodoia/goriftcoach/pkg/cache"
)

// ErrQueueEmpty indica che il poll bloccante è scaduto senza elementi
var ErrQueueEmpty = errors.New("queue empty")

// Broker trasporta le AnalysisRequest su una lista Redis.
// LPUSH dal dispatcher, BRPOP dai worker: at-least-once, l'idempotenza
// sta a valle nell'upsert dello store.
type Broker struct {
	redis    *cache.RedisClient
	queueKey string
}

// NewBroker crea il broker sulla lista indicata
func NewBroker(redis *cache.RedisClient, queueKey string) *Broker {
	return &Broker{redis: redis, queueKey: queueKey}
}

// Enqueue accoda una richiesta in formato JSON stabile
func (b *Broker) Enqueue(ctx context.Context, req analysis.AnalysisRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode analysis request: %w", err)
	}
	if err := b.redis.LPush(ctx, b.queueKey, payload); err != nil {
		return fmt.Errorf("failed to enqueue analysis request: %w", err)
	}
	return nil
}

// Dequeue estrae la prossima richiesta, bloccando fino a timeout.
// Restituisce ErrQueueEmpty allo scadere del poll.
func (b *Broker) Dequeue(ctx context.Context, timeout time.Duration) (*analysis.AnalysisRequest, []byte, error) {
	raw, err := b.redis.BRPop(ctx, timeout, b.queueKey)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil, ErrQueueEmpty
		}
		return nil, nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	var req analysis.AnalysisRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, raw, fmt.Errorf("failed to decode analysis request: %w", err)
	}
	return &req, raw, nil
}

// DeadLetter sposta un payload non processabile sulla coda dei morti
func (b *Broker) DeadLetter(ctx context.Context, payload []byte) error {
	return b.redis.LPush(ctx, b.queueKey+":dead", payload)
}

// Depth restituisce la profondità corrente della coda
func (b *Broker) Depth(ctx context.Context) (int64, error) {
	return b.redis.LLen(ctx, b.queueKey)
}

// Healthy verifica la raggiungibilità del trasporto
func (b *Broker) Healthy(ctx context.Context) error {
	return b.redis.Ping(ctx)
}
