// Package adapter implements the client for the upstream social-analytics
// graph API. The API spans two hosts selected by token family, rate-limits
// aggressively, exposes metrics inconsistently per account tier, and
// reports errors both as non-2xx statuses and as error objects embedded in
// 200 bodies. Every fetch that feeds a user-visible number therefore runs
// through retry, per-host circuit breaking, and ordered host/metric-set
// fallback.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/insights-engine/internal/circuitbreaker"
	"github.com/insights-engine/internal/config"
	"github.com/insights-engine/internal/logging"
	"github.com/insights-engine/internal/retry"
	"github.com/insights-engine/internal/types"
)

// GraphClient performs GET requests against the upstream analytics API
type GraphClient struct {
	platformHost string
	bridgeHost   string
	httpClient   *http.Client
	limiter      *rate.Limiter
	retryCfg     *retry.Config
	maxPages     int

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
}

// NewGraphClient creates a client from graph API configuration
func NewGraphClient(cfg *config.GraphConfig) *GraphClient {
	return &GraphClient{
		platformHost: strings.TrimRight(cfg.PlatformHost, "/"),
		bridgeHost:   strings.TrimRight(cfg.BridgeHost, "/"),
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retryCfg: &retry.Config{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryBaseDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		maxPages: cfg.MaxPages,
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
	}
}

// PrimaryHost returns the host bound to a token family
func (c *GraphClient) PrimaryHost(family types.TokenFamily) string {
	if family == types.FamilyBridge {
		return c.bridgeHost
	}
	return c.platformHost
}

// FallbackHost returns the other host for a token family
func (c *GraphClient) FallbackHost(family types.TokenFamily) string {
	if family == types.FamilyBridge {
		return c.platformHost
	}
	return c.bridgeHost
}

// BuildURL assembles host + path + token + params into a request URL
func (c *GraphClient) BuildURL(host, path, token string, params url.Values) string {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("access_token", token)
	return host + "/" + strings.TrimLeft(path, "/") + "?" + q.Encode()
}

// Get issues a single GET against a fully-built URL, parses the JSON body
// and raises a typed APIError for non-2xx statuses and for error objects
// embedded in 200 responses.
func (c *GraphClient) Get(ctx context.Context, rawURL string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	breaker := c.breakerFor(rawURL)
	if err := breaker.Allow(); err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, rawURL)
	breaker.Record(err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// doRequest performs the HTTP exchange and error-object detection
func (c *GraphClient) doRequest(ctx context.Context, rawURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Error objects arrive embedded in 200 bodies as well as with error
	// statuses; both are treated identically
	var envelope struct {
		Error *struct {
			Message      string `json:"message"`
			Code         int    `json:"code"`
			ErrorSubcode int    `json:"error_subcode"`
		} `json:"error"`
	}
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Error.Code,
			Subcode:    envelope.Error.ErrorSubcode,
			Message:    envelope.Error.Message,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	return body, nil
}

// GetWithRetry wraps Get with exponential backoff. Transient upstream
// codes and network failures are retried; permanent API errors propagate
// immediately.
func (c *GraphClient) GetWithRetry(ctx context.Context, rawURL string) (json.RawMessage, error) {
	var body json.RawMessage
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context, attempt int) (bool, error) {
		var getErr error
		body, getErr = c.Get(ctx, rawURL)
		if getErr == nil {
			return false, nil
		}
		return isRetryable(getErr), getErr
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Attempt describes one entry of an ordered fallback list: a host plus a
// parameter set (typically a reduced metric list) for the same logical
// resource.
type Attempt struct {
	Host   string
	Path   string
	Params url.Values
	Label  string
}

// GetWithFallback tries each attempt in order and returns the first clean
// response. Each attempt is logged for observability; if all fail, the
// last error propagates tagged with the resource label.
func (c *GraphClient) GetWithFallback(ctx context.Context, token string, attempts []Attempt, label string) (json.RawMessage, error) {
	logger := logging.FromContext(ctx)

	var lastErr error
	for i, attempt := range attempts {
		rawURL := c.BuildURL(attempt.Host, attempt.Path, token, attempt.Params)

		body, err := c.GetWithRetry(ctx, rawURL)
		if err == nil {
			if i > 0 {
				logger.WithFields(map[string]interface{}{
					"resource": label,
					"attempt":  attempt.Label,
				}).Info("fallback attempt succeeded")
			}
			return body, nil
		}

		lastErr = err
		logger.WithFields(map[string]interface{}{
			"resource": label,
			"attempt":  attempt.Label,
			"error":    err.Error(),
		}).Warn("fetch attempt failed, trying next fallback")

		if ctx.Err() != nil {
			return nil, fmt.Errorf("fallback cancelled: %w", ctx.Err())
		}
	}

	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		tagged := *apiErr
		tagged.Label = label
		return nil, &tagged
	}
	return nil, fmt.Errorf("%s: all %d attempts failed: %w", label, len(attempts), lastErr)
}

// page is the common shape of paginated collection responses
type page struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// Paginate follows the next-page cursor from firstURL up to maxPages,
// accumulating raw items. An error mid-pagination stops the walk but
// keeps the items collected so far; only a first-page failure is an error.
func (c *GraphClient) Paginate(ctx context.Context, firstURL string, maxPages int) ([]json.RawMessage, error) {
	if maxPages <= 0 {
		maxPages = c.maxPages
	}
	logger := logging.FromContext(ctx)

	var items []json.RawMessage
	nextURL := firstURL

	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		body, err := c.GetWithRetry(ctx, nextURL)
		if err != nil {
			if pageNum == 1 {
				return nil, err
			}
			logger.WithFields(map[string]interface{}{
				"page":  pageNum,
				"items": len(items),
				"error": err.Error(),
			}).Warn("pagination stopped early, keeping partial results")
			return items, nil
		}

		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			if pageNum == 1 {
				return nil, fmt.Errorf("failed to parse page: %w", err)
			}
			return items, nil
		}

		items = append(items, p.Data...)

		if p.Paging.Next == "" {
			return items, nil
		}
		nextURL = p.Paging.Next
	}

	logger.WithFields(map[string]interface{}{
		"maxPages": maxPages,
		"items":    len(items),
	}).Warn("pagination reached page cap")
	return items, nil
}

// breakerFor returns the circuit breaker for the URL's host
func (c *GraphClient) breakerFor(rawURL string) *circuitbreaker.CircuitBreaker {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[host]; ok {
		return b
	}
	b := circuitbreaker.New(circuitbreaker.DefaultConfig(host))
	c.breakers[host] = b
	return b
}

// isRetryable classifies an error for the retry loop: typed transient
// upstream errors and raw network failures retry, everything else stops.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return false
	}
	// Network-level failure
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
