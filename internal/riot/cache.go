package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/goriftcoach/internal/observability"
	"github.com/biodoia/goriftcoach/pkg/cache"
)

// bundleTTL copre i retry ravvicinati sulla stessa partita senza
// rischiare dati stantii: le partite concluse sono immutabili, ma la
// cache resta comunque a vita breve.
const bundleTTL = 10 * time.Minute

// RedisBundleCache memorizza i MatchBundle grezzi su Redis per
// assorbire richieste ripetute della stessa partita dal budget di
// rate limit del vendor.
type RedisBundleCache struct {
	redis *cache.RedisClient
}

// NewRedisBundleCache crea la cache dei bundle
func NewRedisBundleCache(redis *cache.RedisClient) *RedisBundleCache {
	return &RedisBundleCache{redis: redis}
}

func bundleKey(matchID, region string) string {
	return fmt.Sprintf("riftcoach:bundle:%s:%s", region, matchID)
}

// GetBundle recupera il bundle dalla cache. Ogni errore Redis o di
// decodifica è trattato come miss: la cache non è mai sul percorso
// di fallimento.
func (c *RedisBundleCache) GetBundle(ctx context.Context, matchID, region string) (*MatchBundle, bool) {
	l := observability.Logger(ctx)
	raw, err := c.redis.Get(ctx, bundleKey(matchID, region))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			l.Warn().Err(err).Msg("Bundle cache read failed")
		}
		return nil, false
	}

	var bundle MatchBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		l.Warn().Err(err).Msg("Bundle cache entry corrupted, dropping")
		_ = c.redis.Del(ctx, bundleKey(matchID, region))
		return nil, false
	}
	return &bundle, true
}

// PutBundle salva il bundle con TTL fisso, best-effort
func (c *RedisBundleCache) PutBundle(ctx context.Context, matchID, region string, bundle *MatchBundle) {
	l := observability.Logger(ctx)
	raw, err := json.Marshal(bundle)
	if err != nil {
		l.Warn().Err(err).Msg("Failed to encode bundle for cache")
		return
	}
	if err := c.redis.Set(ctx, bundleKey(matchID, region), raw, bundleTTL); err != nil {
		l.Warn().Err(err).Msg("Bundle cache write failed")
	}
}
