package riot

import (
	"context"
	"sync"
	"time"

	"github.com/biodoia/goriftcoach/pkg/config"
	"golang.org/x/time/rate"
)

// RegionLimiter implementa il doppio token bucket del vendor:
// finestra corta e finestra lunga devono entrambe ammettere la chiamata.
type RegionLimiter struct {
	short *rate.Limiter
	long  *rate.Limiter
}

// NewRegionLimiter crea un limiter per una regione
func NewRegionLimiter(lim config.RegionLimit) *RegionLimiter {
	shortWindow := lim.ShortWindowSec
	if shortWindow < 1 {
		shortWindow = 1
	}
	longWindow := lim.LongWindowSec
	if longWindow < 1 {
		longWindow = 120
	}

	return &RegionLimiter{
		short: rate.NewLimiter(rate.Limit(float64(lim.Short)/float64(shortWindow)), lim.Short),
		long:  rate.NewLimiter(rate.Limit(float64(lim.Long)/float64(longWindow)), lim.Long),
	}
}

// Wait blocca finché entrambi i bucket ammettono una chiamata
func (l *RegionLimiter) Wait(ctx context.Context) error {
	// Il bucket lungo per primo: è quello che si esaurisce più lentamente
	// e rilascia il corto solo quando la chiamata è davvero imminente.
	if err := l.long.Wait(ctx); err != nil {
		return err
	}
	return l.short.Wait(ctx)
}

// defaultRegionLimit viene usato per regioni non configurate
var defaultRegionLimit = config.RegionLimit{
	Short:          20,
	ShortWindowSec: 1,
	Long:           100,
	LongWindowSec:  120,
}

// LimiterRegistry mantiene un limiter condiviso per regione, unico
// per processo: tutti i worker si serializzano sullo stesso bucket.
type LimiterRegistry struct {
	mu       sync.Mutex
	cfg      config.RateLimitConfig
	limiters map[string]*RegionLimiter
}

// NewLimiterRegistry crea un registry dai limiti configurati
func NewLimiterRegistry(cfg config.RateLimitConfig) *LimiterRegistry {
	return &LimiterRegistry{
		cfg:      cfg,
		limiters: make(map[string]*RegionLimiter),
	}
}

// For restituisce il limiter della regione, creandolo alla prima richiesta
func (r *LimiterRegistry) For(region string) *RegionLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lim, ok := r.limiters[region]; ok {
		return lim
	}

	limit, ok := r.cfg.Regions[region]
	if !ok {
		limit = defaultRegionLimit
	}

	lim := NewRegionLimiter(limit)
	r.limiters[region] = lim
	return lim
}

// Reserve espone la prossima disponibilità senza bloccare (per diagnostica)
func (l *RegionLimiter) Reserve() time.Duration {
	res := l.short.Reserve()
	delay := res.Delay()
	res.Cancel()
	return delay
}
