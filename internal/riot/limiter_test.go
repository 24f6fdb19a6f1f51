package riot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodoia/goriftcoach/pkg/config"
)

func TestLimiterRegistry_SharedPerRegion(t *testing.T) {
	registry := NewLimiterRegistry(config.RateLimitConfig{
		Regions: map[string]config.RegionLimit{
			"euw": {Short: 20, ShortWindowSec: 1, Long: 100, LongWindowSec: 120},
		},
	})

	assert.Same(t, registry.For("euw"), registry.For("euw"),
		"workers must share one limiter per region")
	assert.NotSame(t, registry.For("euw"), registry.For("na"))
}

func TestLimiterRegistry_UnknownRegionGetsDefaults(t *testing.T) {
	registry := NewLimiterRegistry(config.RateLimitConfig{})

	lim := registry.For("kr")
	require.NotNil(t, lim)

	// Il burst di default ammette la prima chiamata senza attesa
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, lim.Wait(ctx))
}

func TestRegionLimiter_ShortWindowThrottles(t *testing.T) {
	// 2 chiamate al secondo: la terza deve attendere
	lim := NewRegionLimiter(config.RegionLimit{
		Short: 2, ShortWindowSec: 1, Long: 1000, LongWindowSec: 120,
	})

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, lim.Wait(ctx))
	}

	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond,
		"the third call must wait for short window tokens")
}

func TestRegionLimiter_WaitRespectsContext(t *testing.T) {
	lim := NewRegionLimiter(config.RegionLimit{
		Short: 1, ShortWindowSec: 60, Long: 1000, LongWindowSec: 120,
	})

	ctx := context.Background()
	require.NoError(t, lim.Wait(ctx))

	// Il bucket corto è vuoto per un minuto: il context deve sbloccare
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, lim.Wait(shortCtx))
}
