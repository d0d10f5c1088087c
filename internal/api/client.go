package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ashfaaq98/secboard/internal/model"
)

// ErrNotFound is wrapped by StatusError for 404 responses
var ErrNotFound = errors.New("not found")

// StatusError is returned for any non-2xx response
type StatusError struct {
	Method    string
	Path      string
	Code      int
	Body      string
	RequestID string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrNotFound) match 404s
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Options configures a Client
type Options struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	Attempts  int
	BaseDelay time.Duration
	HTTP      *http.Client
	Logger    *log.Logger
}

// Client talks to the dashboard REST API
type Client struct {
	baseURL   string
	token     string
	attempts  int
	baseDelay time.Duration
	http      *http.Client
	logger    *log.Logger
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("API base URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("failed to parse API base URL: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		baseURL:   base,
		token:     opts.Token,
		attempts:  opts.Attempts,
		baseDelay: opts.BaseDelay,
		http:      hc,
		logger:    logger,
	}, nil
}

// get performs GET path and returns the body of a 2xx response. 5xx, 429 and
// transport errors are retried; other statuses fail immediately.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := retry(ctx, c.attempts, c.baseDelay, func() (bool, error) {
		b, err := c.do(ctx, http.MethodGet, path)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				return se.retryable(), err
			}
			return ctx.Err() == nil, err
		}
		body = b
		return false, nil
	})
	return body, err
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "secboard/1.0")
	req.Header.Set("X-Request-ID", reqID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("%s %s failed (request %s): %v", method, path, reqID, err)
		return nil, fmt.Errorf("failed to %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	c.logger.Printf("%s %s -> %d in %v (request %s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond), reqID)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: snippet, RequestID: reqID}
	}
	return data, nil
}

// List returns the raw JSON array for a collection
func (c *Client) List(ctx context.Context, kind model.Kind) (json.RawMessage, error) {
	data, err := c.get(ctx, "/api/"+string(kind))
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to list %s: response is not JSON", kind)
	}
	return json.RawMessage(data), nil
}

func listInto[T any](ctx context.Context, c *Client, kind model.Kind) ([]T, error) {
	raw, err := c.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (c *Client) ListTickets(ctx context.Context) ([]model.Ticket, error) {
	return listInto[model.Ticket](ctx, c, model.KindTicket)
}

func (c *Client) ListThreats(ctx context.Context) ([]model.Threat, error) {
	return listInto[model.Threat](ctx, c, model.KindThreat)
}

func (c *Client) ListVulnerabilities(ctx context.Context) ([]model.Vulnerability, error) {
	return listInto[model.Vulnerability](ctx, c, model.KindVulnerability)
}

func (c *Client) ListArtifacts(ctx context.Context) ([]model.Artifact, error) {
	return listInto[model.Artifact](ctx, c, model.KindArtifact)
}

func (c *Client) ListMembers(ctx context.Context) ([]model.Member, error) {
	return listInto[model.Member](ctx, c, model.KindMember)
}

// GetThreat fetches a single threat by id
func (c *Client) GetThreat(ctx context.Context, id string) (model.Threat, error) {
	var t model.Threat
	id = strings.TrimSpace(id)
	if id == "" {
		return t, errors.New("threat id is required")
	}
	data, err := c.get(ctx, "/api/threats/"+url.PathEscape(id))
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to decode threat %s: %w", id, err)
	}
	return t, nil
}

// ThreatSource resolves threat ids through the client for the enrichment fetcher
type ThreatSource struct {
	Client *Client
}

func (s ThreatSource) Fetch(ctx context.Context, id string) (model.Threat, error) {
	return s.Client.GetThreat(ctx, id)
}
