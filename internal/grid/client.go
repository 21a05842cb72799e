// Package grid talks to the GRID esports data platform: login, the central
// data and series state GraphQL APIs, the event explorer feed and the file
// download service.
package grid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultLolURL = "https://lol.grid.gg"
	DefaultAPIURL = "https://api.grid.gg"

	defaultRequestsPerSecond = 5
	defaultMaxRetries        = 5
	defaultBackoffBase       = time.Second
	requestTimeout           = 60 * time.Second
)

var (
	ErrMaxRetries    = errors.New("grid: retries exhausted")
	ErrGraphQL       = errors.New("grid: graphql error")
	ErrMissingTokens = errors.New("grid: login response carried no tokens")
	ErrTeamNotFound  = errors.New("grid: team not found")
	ErrUnauthorized  = errors.New("grid: unauthorized")
)

// StatusError is a non-2xx response that is not worth retrying.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("grid: status %d", e.Code)
	}
	return fmt.Sprintf("grid: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden)
}

type settings struct {
	lolURL      string
	apiURL      string
	rps         float64
	maxRetries  int
	backoffBase time.Duration
	timeout     time.Duration
	transport   http.RoundTripper
	log         *zap.Logger
}

// Option configures a Client or Auth.
type Option func(*settings)

// WithBaseURLs points the client at other hosts, usually an httptest server.
func WithBaseURLs(lolURL, apiURL string) Option {
	return func(s *settings) {
		s.lolURL = strings.TrimRight(lolURL, "/")
		s.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables the cap.
func WithRateLimit(rps float64) Option {
	return func(s *settings) { s.rps = rps }
}

// WithRetry sets how many attempts a request gets and the backoff base.
func WithRetry(maxRetries int, base time.Duration) Option {
	return func(s *settings) {
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
		s.backoffBase = base
	}
}

// WithRequestTimeout bounds each API call, retries and body included. The
// replay stream is only bounded until its headers arrive.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(s *settings) { s.transport = rt }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *settings) { s.log = log }
}

func newSettings(opts []Option) settings {
	s := settings{
		lolURL:      DefaultLolURL,
		apiURL:      DefaultAPIURL,
		rps:         defaultRequestsPerSecond,
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
		timeout:     requestTimeout,
		transport:   http.DefaultTransport,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// requester does rate limited HTTP with exponential backoff on 429, 5xx and
// transport failures.
type requester struct {
	http        *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	backoffBase time.Duration
	timeout     time.Duration
	log         *zap.Logger
}

func newRequester(s settings, hc *http.Client) requester {
	limit := rate.Inf
	if s.rps > 0 {
		limit = rate.Limit(s.rps)
	}
	return requester{
		http:        hc,
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  s.maxRetries,
		backoffBase: s.backoffBase,
		timeout:     s.timeout,
		log:         s.log,
	}
}

// bounded derives the deadline of one API call from ctx.
func (r requester) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// backoff is base*2^attempt plus up to one base of jitter.
func (r requester) backoff(attempt int) time.Duration {
	if r.backoffBase <= 0 {
		return 0
	}
	d := r.backoffBase << attempt
	return d + time.Duration(rand.Int64N(int64(r.backoffBase)))
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do sends the request built by build until it gets a response worth
// returning. The caller owns the returned body.
func (r requester) do(ctx context.Context, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	var (
		lastErr error
		wait    time.Duration
	)

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("grid: rate limiter: %w", err)
		}

		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("grid: build request: %w", err)
		}

		wait = r.backoff(attempt)
		resp, err := r.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
			r.log.Warn("grid request failed, retrying",
				zap.String("path", req.URL.Path), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			if d, ok := retryAfter(resp); ok {
				wait = d
			}
			drain(resp)
			lastErr = &StatusError{Code: resp.StatusCode}
			r.log.Warn("grid request throttled, retrying",
				zap.String("path", req.URL.Path), zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
			continue

		case resp.StatusCode < 200 || resp.StatusCode > 299:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			drain(resp)
			return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		return resp, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, r.maxRetries, lastErr)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func (r requester) getJSON(ctx context.Context, url string, out any) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	resp, err := r.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("grid: decode %s: %w", url, err)
	}
	return nil
}

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

func (r requester) graphql(ctx context.Context, url, op, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(gqlRequest{OperationName: op, Variables: vars, Query: query})
	if err != nil {
		return fmt.Errorf("grid: encode %s: %w", op, err)
	}

	ctx, cancel := r.bounded(ctx)
	defer cancel()
	resp, err := r.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	var body gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("grid: decode %s: %w", op, err)
	}
	if len(body.Errors) > 0 {
		msgs := make([]string, len(body.Errors))
		for i, e := range body.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%w: %s: %s", ErrGraphQL, op, strings.Join(msgs, ", "))
	}
	if out == nil || len(body.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("grid: decode %s data: %w", op, err)
	}
	return nil
}

// Client is an authenticated GRID API client. Every request carries the
// session's access token as a bearer token.
type Client struct {
	requester
	lolURL string
	apiURL string
}

func New(accessToken string, opts ...Option) *Client {
	s := newSettings(opts)
	hc := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   s.transport,
		},
	}
	return &Client{
		requester: newRequester(s, hc),
		lolURL:    s.lolURL,
		apiURL:    s.apiURL,
	}
}

func (c *Client) centralData() string { return c.apiURL + "/central-data/graphql" }
func (c *Client) seriesState() string { return c.apiURL + "/live-data-feed/series-state/graphql" }
func (c *Client) eventFeed() string   { return c.lolURL + "/api/event-explorer-api/events/graphql" }
