// Package overpass submits Overpass QL queries to a list of API mirrors,
// advancing to the next mirror on errors, rate limiting, server-side
// remarks, and stale data.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/tap-in-osm/overpass-etl/internal/config"
	"github.com/tap-in-osm/overpass-etl/internal/domain"
	"github.com/tap-in-osm/overpass-etl/internal/observability"
)

// errRateLimited marks an HTTP 429 so the fallback loop can apply the
// cooldown before hitting the next mirror.
var errRateLimited = errors.New("rate limited")

// StaleDataError indicates a mirror answered with data older than the
// configured maximum lag.
type StaleDataError struct {
	Endpoint  string
	LagHours  float64
	Timestamp string
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale data from %s: %.1fh old (timestamp %s)", e.Endpoint, e.LagHours, e.Timestamp)
}

// Client fetches Overpass responses with endpoint fallback. A single
// limiter paces requests across all mirrors per the Overpass usage policy.
type Client struct {
	endpoints  []string
	httpClient *http.Client
	limiter    *rate.Limiter
	clock      clockwork.Clock
	userAgent  string
	maxLag     time.Duration
	cooldown   time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an Overpass client from the run configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		endpoints: cfg.Endpoints,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: cfg.RequestTimeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		clock:     clockwork.NewRealClock(),
		userAgent: cfg.UserAgent,
		maxLag:    time.Duration(cfg.MaxDataLagHours) * time.Hour,
		cooldown:  cfg.RetryCooldown,
		logger:    logger,
		metrics:   metrics,
	}
}

// SetClock swaps the time source used for freshness checks. Tests inject a
// fake clock; pass nil to reset to real time.
func (c *Client) SetClock(clk clockwork.Clock) {
	if clk == nil {
		c.clock = clockwork.NewRealClock()
		return
	}
	c.clock = clk
}

// Fetch submits the query to each configured endpoint in order and returns
// the first acceptable response. The returned error wraps the last
// per-endpoint cause once all mirrors are exhausted.
func (c *Client) Fetch(ctx context.Context, query domain.Query) (*domain.Response, error) {
	form := url.Values{"data": {string(query)}}.Encode()

	var lastErr error
	for _, endpoint := range c.endpoints {
		c.logger.Info("trying overpass endpoint", "endpoint", endpoint)

		resp, err := c.tryEndpoint(ctx, endpoint, form)
		if err == nil {
			c.logger.Info("overpass fetch succeeded",
				"endpoint", endpoint,
				"elements", len(resp.Elements),
				"data_timestamp", resp.OSM3S.TimestampOSMBase,
			)
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		c.logger.Warn("overpass endpoint failed", "endpoint", endpoint, "error", err)

		if errors.Is(err, errRateLimited) && !sleepWithContext(ctx, c.cooldown) {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("all overpass endpoints failed: %w", lastErr)
}

// tryEndpoint performs one POST against a single mirror and validates the
// response for parseability, server remarks, and data freshness.
func (c *Client) tryEndpoint(ctx context.Context, endpoint, form string) (*domain.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.countAttempt(endpoint, observability.OutcomeNetworkError)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests {
		c.countAttempt(endpoint, observability.OutcomeRateLimited)
		return nil, fmt.Errorf("%s: %w", endpoint, errRateLimited)
	}
	if httpResp.StatusCode != http.StatusOK {
		c.countAttempt(endpoint, observability.OutcomeHTTPError)
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("HTTP %d from %s: %s", httpResp.StatusCode, endpoint, strings.TrimSpace(string(body)))
	}

	var resp domain.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		c.countAttempt(endpoint, observability.OutcomeDecodeError)
		return nil, fmt.Errorf("invalid JSON from %s (does the query declare [out:json]?): %w", endpoint, err)
	}

	// A remark with no elements is a server-side failure inside a 200.
	if resp.Remark != "" && len(resp.Elements) == 0 {
		c.countAttempt(endpoint, observability.OutcomeRemark)
		return nil, fmt.Errorf("overpass remark from %s: %s", endpoint, resp.Remark)
	}

	if ts, ok := resp.DataTimestamp(); ok {
		lag := c.clock.Now().Sub(ts)
		c.metrics.DataLagHours.Set(lag.Hours())
		if lag > c.maxLag {
			c.countAttempt(endpoint, observability.OutcomeStale)
			return nil, &StaleDataError{
				Endpoint:  endpoint,
				LagHours:  lag.Hours(),
				Timestamp: resp.OSM3S.TimestampOSMBase,
			}
		}
	}

	if resp.Remark != "" {
		c.logger.Warn("overpass remark (non-fatal)", "endpoint", endpoint, "remark", resp.Remark)
	}

	c.countAttempt(endpoint, observability.OutcomeSuccess)
	return &resp, nil
}

func (c *Client) countAttempt(endpoint, outcome string) {
	c.metrics.EndpointRequests.WithLabelValues(endpoint, outcome).Inc()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
