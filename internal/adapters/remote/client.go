// Package remote talks to the review API over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/okian/critreview/internal/domain/request"
	"github.com/okian/critreview/pkg/logger"
	"github.com/okian/critreview/pkg/metrics"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the review API endpoint.
const DefaultBaseURL = "https://us-east1-brown-critical-review.cloudfunctions.net/api"

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "critreview/1.0"

	// HeaderRequestID carries a per-call id; HeaderSessionID the caller's
	// session id when present on the context.
	HeaderRequestID = "X-Request-ID"
	HeaderSessionID = "X-Session-ID"
)

type sessionKey struct{}

// ContextWithSession attaches a session id that is forwarded on requests.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func sessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Client issues GET requests against the review API.
type Client struct {
	http      *http.Client
	baseURL   string
	limiter   *rate.Limiter
	userAgent string
	logger    logger.Logger
}

// New returns a Client for the default endpoint.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		baseURL:   DefaultBaseURL,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		userAgent: defaultUserAgent,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// URL returns the full request URL for r.
func (c *Client) URL(r request.Request) string {
	return c.baseURL + "?" + r.Encode()
}

// Fetch performs r and decodes the JSON body into out. Transport failures
// and non-2xx responses yield a *FetchError; an unparseable body yields a
// *DecodeError. Nothing is retried.
func (c *Client) Fetch(ctx context.Context, r request.Request, out any) error {
	start := time.Now()
	kind := string(r.Kind)

	body, err := c.get(ctx, r)
	if err != nil {
		metrics.RecordFetch(kind, metrics.OutcomeFetchError, msSince(start))
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.RecordFetch(kind, metrics.OutcomeDecodeError, msSince(start))
		return &DecodeError{Source: c.URL(r), Err: err}
	}

	metrics.RecordFetch(kind, metrics.OutcomeOK, msSince(start))
	return nil
}

func (c *Client) get(ctx context.Context, r request.Request) ([]byte, error) {
	url := c.URL(r)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, requestID)
	if sid := sessionFrom(ctx); sid != "" {
		req.Header.Set(HeaderSessionID, sid)
	}

	c.logger.Debug(ctx, "api request",
		logger.String("url", url),
		logger.String("request_id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
