package riot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/biodoia/goriftcoach/internal/observability"
	"github.com/biodoia/goriftcoach/internal/stats"
	"github.com/biodoia/goriftcoach/pkg/config"
	"github.com/biodoia/goriftcoach/pkg/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrForbidden         = errors.New("access forbidden")
	ErrRateLimited       = errors.New("vendor rate limit exceeded")
	ErrVendorUnavailable = errors.New("vendor service unavailable")
)

// RateLimitError trasporta l'attesa suggerita dal vendor (Retry-After)
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("vendor rate limit exceeded, retry after %s", e.RetryAfter)
}

// Is consente errors.Is(err, ErrRateLimited)
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// WaitHint implementa resilience.WaitHinter
func (e *RateLimitError) WaitHint() time.Duration {
	return e.RetryAfter
}

// Client incapsula le chiamate al vendor di gioco.
// Rispetta il doppio token bucket per regione e la policy di retry
// dello stage fetch: backoff esponenziale sui 5xx, attesa Retry-After
// sui 429, nessun retry sui 404/403.
type Client struct {
	httpClient  *resty.Client
	limiters    *LimiterRegistry
	metrics     *stats.Metrics
	baseURL     string
	maxAttempts int
}

// NewClient crea un nuovo client verso il vendor
func NewClient(cfg *config.Config, limiters *LimiterRegistry, metrics *stats.Metrics) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.StageTimeout.Fetch).
		SetHeader("Accept", "application/json").
		SetHeader("X-API-Token", cfg.Riot.APIKey)

	httpClient.OnBeforeRequest(func(client *resty.Client, req *resty.Request) error {
		log.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("Game API request")
		return nil
	})

	httpClient.OnAfterResponse(func(client *resty.Client, resp *resty.Response) error {
		log.Debug().
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("Game API response")
		return nil
	})

	return &Client{
		httpClient:  httpClient,
		limiters:    limiters,
		metrics:     metrics,
		baseURL:     cfg.Riot.BaseURL,
		maxAttempts: cfg.Retry.Fetch.MaxAttempts,
	}
}

// GetMatchDetail recupera il dettaglio di una partita
func (c *Client) GetMatchDetail(ctx context.Context, matchID, region string) (*MatchDetail, error) {
	var detail MatchDetail
	path := "/match/" + matchID
	if err := c.get(ctx, region, path, "match_detail", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetMatchTimeline recupera la timeline di una partita
func (c *Client) GetMatchTimeline(ctx context.Context, matchID, region string) (*MatchTimeline, error) {
	var timeline MatchTimeline
	path := "/match/" + matchID + "/timeline"
	if err := c.get(ctx, region, path, "match_timeline", &timeline); err != nil {
		return nil, err
	}
	return &timeline, nil
}

// get esegue una GET con rate limiting, retry e metriche
func (c *Client) get(ctx context.Context, region, path, endpoint string, out interface{}) error {
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:    c.maxAttempts,
		InitialBackoff: 500 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		Retryable:      isTransient,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			c.metrics.FetchRetries.Inc()
		},
	})

	return observability.ObserveWith(ctx, "riot."+endpoint, func(ctx context.Context) (map[string]interface{}, error) {
		var lastStatus int
		err := retry.Execute(ctx, func() error {
			status, err := c.doOnce(ctx, region, path, endpoint, out)
			lastStatus = status
			return err
		})
		return map[string]interface{}{"status": lastStatus, "region": region}, err
	})
}

// doOnce esegue un singolo tentativo dopo aver atteso i token bucket
func (c *Client) doOnce(ctx context.Context, region, path, endpoint string, out interface{}) (int, error) {
	if err := c.limiters.For(region).Wait(ctx); err != nil {
		return 0, err
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(out).
		Get(c.regionURL(region) + path)

	status := 0
	if resp != nil {
		status = resp.StatusCode()
		c.metrics.VendorRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		c.metrics.VendorDuration.WithLabelValues(endpoint).Observe(float64(resp.Time().Milliseconds()))
	}

	if err != nil {
		return status, fmt.Errorf("request failed: %w", err)
	}

	switch {
	case resp.IsSuccess():
		return status, nil
	case status == 404:
		return status, fmt.Errorf("%w: %s", ErrMatchNotFound, path)
	case status == 403:
		return status, fmt.Errorf("%w: %s", ErrForbidden, path)
	case status == 429:
		return status, &RateLimitError{RetryAfter: parseRetryAfter(resp)}
	case status >= 500:
		return status, fmt.Errorf("%w: status %d", ErrVendorUnavailable, status)
	default:
		return status, fmt.Errorf("unexpected vendor status %d for %s", status, path)
	}
}

// regionURL sostituisce il placeholder {region} nella base URL
func (c *Client) regionURL(region string) string {
	return strings.ReplaceAll(c.baseURL, "{region}", region)
}

// parseRetryAfter legge Retry-After; minimo 1 secondo per policy
func parseRetryAfter(resp *resty.Response) time.Duration {
	if v := resp.Header().Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

// isTransient classifica gli errori: 404/403 sono permanenti,
// cancellazioni del context non vanno ritentate, il resto sì.
func isTransient(err error) bool {
	if errors.Is(err, ErrMatchNotFound) || errors.Is(err, ErrForbidden) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
