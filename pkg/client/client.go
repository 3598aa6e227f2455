// Package client is the resilient data client for the UMLS Terminology Services REST API.
//
// Every fetch goes through the same pipeline:
//   - the credential from the Authenticator is injected into the query
//   - the response cache is consulted, keyed without the credential
//   - identical concurrent misses are collapsed into one upstream call
//   - each attempt waits on the shared rate limiter
//   - 500, 502, 503 and 504 are retried with exponential backoff
//   - the decoded body has its sentinel strings replaced by nil
//
// 400 and 404 mean "absent" and come back as a nil value with no error,
// unless the caller passes Strict.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sanonone/termgraph/pkg/cache"
	"github.com/sanonone/termgraph/pkg/metrics"
)

// Defaults applied by New.
const (
	DefaultBaseURL              = "https://uts-ws.nlm.nih.gov/rest"
	DefaultRateLimit            = 20
	DefaultMaxAttempts          = 5
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMaxInterval     = 10 * time.Second
	DefaultTimeout              = 30 * time.Second
)

var tracer = otel.Tracer("github.com/sanonone/termgraph/pkg/client")

// Doer is the subset of *http.Client the client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BreakerSettings enables a circuit breaker around upstream exchanges.
type BreakerSettings struct {
	// Name identifies the breaker in logs.
	Name string
	// ConsecutiveFailures trips the breaker. Defaults to 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again. Defaults to 30s.
	OpenTimeout time.Duration
}

// Options configures a Client. Every credential and limit is explicit; the
// client reads no global state.
type Options struct {
	BaseURL    string
	Auth       Authenticator
	HTTPClient Doer
	Cache      cache.Store

	// Limiter is shared by every client it is passed to. When nil, a private
	// limiter allowing RateLimit calls per second is created.
	Limiter   *rate.Limiter
	RateLimit int

	MaxAttempts          int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// Sentinel is the string decoded as null. Defaults to DefaultSentinel.
	Sentinel string

	Breaker *BreakerSettings
	Logger  *slog.Logger
}

// Client fetches JSON documents from the terminology service.
type Client struct {
	baseURL     *url.URL
	auth        Authenticator
	httpClient  Doer
	cache       cache.Store
	limiter     *rate.Limiter
	maxAttempts int
	initial     time.Duration
	maxInterval time.Duration
	sentinel    string
	breaker     *gobreaker.CircuitBreaker
	group       singleflight.Group
	logger      *slog.Logger
}

// NewLimiter returns a limiter admitting perSecond calls per second with an
// equal burst, suitable for sharing between clients.
func NewLimiter(perSecond int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

// New creates a Client from opts.
func New(opts Options) (*Client, error) {
	rawBase := opts.BaseURL
	if rawBase == "" {
		rawBase = DefaultBaseURL
	}
	base, err := url.Parse(rawBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", rawBase)
	}
	if opts.RateLimit < 0 || opts.MaxAttempts < 0 {
		return nil, errors.New("rate limit and max attempts must not be negative")
	}

	c := &Client{
		baseURL:     base,
		auth:        opts.Auth,
		httpClient:  opts.HTTPClient,
		cache:       opts.Cache,
		limiter:     opts.Limiter,
		maxAttempts: opts.MaxAttempts,
		initial:     opts.RetryInitialInterval,
		maxInterval: opts.RetryMaxInterval,
		sentinel:    opts.Sentinel,
		logger:      opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.limiter == nil {
		perSecond := opts.RateLimit
		if perSecond == 0 {
			perSecond = DefaultRateLimit
		}
		c.limiter = NewLimiter(perSecond)
	}
	if c.maxAttempts == 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.initial == 0 {
		c.initial = DefaultRetryInitialInterval
	}
	if c.maxInterval == 0 {
		c.maxInterval = DefaultRetryMaxInterval
	}
	if c.sentinel == "" {
		c.sentinel = DefaultSentinel
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.Breaker != nil {
		c.breaker = newBreaker(*opts.Breaker, c.logger)
	}
	return c, nil
}

func newBreaker(s BreakerSettings, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if s.Name == "" {
		s.Name = "uts"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		// Absent entities are a normal answer, not an upstream failure.
		IsSuccessful: func(err error) bool {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				return IsNotFoundStatus(httpErr.StatusCode)
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// RequestOption tweaks a single fetch.
type RequestOption func(*requestOptions)

type requestOptions struct {
	strict bool
}

// Strict turns 400 and 404 responses into *HTTPError instead of an absent value.
func Strict() RequestOption {
	return func(o *requestOptions) { o.strict = true }
}

// BaseURL returns the root all relative paths are resolved against.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// FetchJSON retrieves rawURL (absolute, or relative to the base URL) with the
// given query parameters and returns the decoded, sentinel-normalized body.
// A nil value with a nil error means the entity is absent.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, params url.Values, opts ...RequestOption) (any, error) {
	var ro requestOptions
	for _, o := range opts {
		o(&ro)
	}

	target, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	query := c.prepareQuery(target.Query(), params)
	target.RawQuery = ""
	key := cacheKey(http.MethodGet, target, query)

	ctx, span := tracer.Start(ctx, "client.FetchJSON",
		trace.WithAttributes(attribute.String("http.url", key)))
	defer span.End()

	body, err := c.load(ctx, key, target, query)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && IsNotFoundStatus(httpErr.StatusCode) && !ro.strict {
			span.SetAttributes(attribute.Bool("absent", true))
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return c.decode(key, body)
}

// FetchPage fetches one page of a paginated endpoint.
func (c *Client) FetchPage(ctx context.Context, rawURL string, page int, params url.Values, opts ...RequestOption) (any, error) {
	merged := cloneValues(params)
	merged.Set("pageNumber", strconv.Itoa(page))
	return c.FetchJSON(ctx, rawURL, merged, opts...)
}

// FetchSingle returns the "result" object of a single-entity endpoint, or nil when absent.
func (c *Client) FetchSingle(ctx context.Context, rawURL string, params url.Values, opts ...RequestOption) (map[string]any, error) {
	v, err := c.FetchJSON(ctx, rawURL, params, opts...)
	if err != nil || v == nil {
		return nil, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, &ProtocolError{URL: rawURL, Reason: "response is not an object"}
	}
	result, _ := doc["result"].(map[string]any)
	return result, nil
}

func (c *Client) resolve(rawURL string) (*url.URL, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if ref.IsAbs() {
		return ref, nil
	}
	resolved := *c.baseURL
	resolved.Path = joinPath(c.baseURL.Path, ref.Path)
	resolved.RawQuery = ref.RawQuery
	return &resolved, nil
}

func joinPath(base, rel string) string {
	switch {
	case base == "" || base == "/":
		if len(rel) > 0 && rel[0] == '/' {
			return rel
		}
		return "/" + rel
	case len(rel) > 0 && rel[0] == '/':
		return trimSlash(base) + rel
	default:
		return trimSlash(base) + "/" + rel
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// prepareQuery merges params over the parameters embedded in the URL and removes
// any credential the caller supplied, so the only credential sent is the one
// injected by the Authenticator.
func (c *Client) prepareQuery(embedded, params url.Values) url.Values {
	query := cloneValues(embedded)
	for k, vals := range params {
		query[k] = append([]string(nil), vals...)
	}
	if c.auth == nil {
		return query
	}
	if query.Has(c.auth.Param()) {
		c.logger.Warn("caller supplied credential parameter, overwriting it", "param", c.auth.Param())
		query.Del(c.auth.Param())
	}
	return query
}

// load returns the raw body for key, from cache or upstream.
func (c *Client) load(ctx context.Context, key string, target *url.URL, query url.Values) ([]byte, error) {
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			c.logger.Warn("cache lookup failed", "key", key, "error", err)
		case ok:
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return body, nil
		default:
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		body, err := c.exchange(ctx, key, target, query)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if err := c.cache.Put(ctx, key, body); err != nil {
				c.logger.Warn("cache store failed", "key", key, "error", err)
			}
		}
		return body, nil
	})
	if shared {
		c.logger.Debug("collapsed concurrent fetch", "key", key)
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// exchange runs the retried fetch, behind the circuit breaker when one is configured.
func (c *Client) exchange(ctx context.Context, key string, target *url.URL, query url.Values) ([]byte, error) {
	if c.breaker == nil {
		return c.fetchWithRetry(ctx, key, target, query)
	}
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchWithRetry(ctx, key, target, query)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, key string, target *url.URL, query url.Values) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initial
	policy.MaxInterval = c.maxInterval

	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		if attempt > 1 {
			metrics.UpstreamRetriesTotal.Inc()
		}
		body, err := c.fetchOnce(ctx, key, target, query)
		if err == nil {
			return body, nil
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && retryableStatus(httpErr.StatusCode) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("upstream request failed, retrying", "url", key, "attempt", attempt, "next_in", next, "error", err)
		}),
	)
}

// fetchOnce performs exactly one upstream request.
func (c *Client) fetchOnce(ctx context.Context, key string, target *url.URL, query url.Values) ([]byte, error) {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	metrics.RateLimitWaitSeconds.Add(time.Since(waitStart).Seconds())

	q := cloneValues(query)
	if c.auth != nil {
		credential, err := c.auth.Credential(ctx)
		if err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		q.Set(c.auth.Param(), credential)
	}
	reqURL := *target
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("connection error for %s: %w", key, err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := c.auth.(interface{ Invalidate() }); ok {
				inv.Invalidate()
			}
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: key, Body: truncate(string(body))}
	}
	if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
		return nil, &ProtocolError{URL: key, Reason: "response is not valid JSON"}
	}
	return body, nil
}

// decode parses body into a fresh value on every call, so cached responses
// are never shared between callers.
func (c *Client) decode(key string, body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ProtocolError{URL: key, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return NormalizeNulls(v, c.sentinel), nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func truncate(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
