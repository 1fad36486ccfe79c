// Package apiclient is the HTTP client the apm CLI uses to talk to a running
// apm API server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/apm/api"
	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/briefing"
	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/progress"
)

// DefaultTimeout bounds non-streaming calls, which include a full
// non-streaming brief generation.
const DefaultTimeout = 5 * time.Minute

// Config configures a Client.
type Config struct {
	Target  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client calls the apm API.
type Client struct {
	target       string
	logger       *zap.Logger
	httpClient   *http.Client
	streamClient *http.Client
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// NewClient creates a Client for cfg.Target.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.Target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("api target must be an http(s) URL: %q", cfg.Target)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		target:       strings.TrimRight(cfg.Target, "/"),
		logger:       logger,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}, nil
}

// Target returns the API base URL.
func (c *Client) Target() string {
	return c.target
}

// Seed imports the mock CRM users.
func (c *Client) Seed(ctx context.Context) (*api.SeedResponse, error) {
	out := &api.SeedResponse{}
	return out, c.do(ctx, http.MethodPost, "/api/mock-crm", nil, out)
}

// Connect simulates connecting the named CRM.
func (c *Client) Connect(ctx context.Context, source string) (*api.ConnectResponse, error) {
	out := &api.ConnectResponse{}
	return out, c.do(ctx, http.MethodPost, "/api/connect/"+url.PathEscape(source), nil, out)
}

// Stats fetches the aggregated user stats.
func (c *Client) Stats(ctx context.Context) (*crm.Stats, error) {
	out := &crm.Stats{}
	return out, c.do(ctx, http.MethodGet, "/api/stats", nil, out)
}

// Generate creates a brief without streaming progress.
func (c *Client) Generate(ctx context.Context) (*brief.Brief, error) {
	out := &brief.Brief{}
	return out, c.do(ctx, http.MethodPost, "/api/generate-brief", nil, out)
}

// Feedback refines briefID without streaming progress.
func (c *Client) Feedback(ctx context.Context, briefID, feedback string) (*brief.Brief, error) {
	out := &brief.Brief{}
	body := api.FeedbackRequest{BriefID: briefID, Feedback: feedback}
	return out, c.do(ctx, http.MethodPost, "/api/feedback", body, out)
}

// Latest fetches the most recent brief.
func (c *Client) Latest(ctx context.Context) (*brief.Brief, error) {
	out := &brief.Brief{}
	return out, c.do(ctx, http.MethodGet, "/api/brief", nil, out)
}

// Get fetches the brief id.
func (c *Client) Get(ctx context.Context, id string) (*brief.Brief, error) {
	out := &brief.Brief{}
	return out, c.do(ctx, http.MethodGet, "/api/briefs/"+url.PathEscape(id), nil, out)
}

// List fetches up to limit briefs, newest first. Zero uses the server default.
func (c *Client) List(ctx context.Context, limit int) ([]*brief.Brief, error) {
	path := "/api/briefs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	out := &api.BriefsResponse{}
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out.Briefs, nil
}

// Lineage fetches id and its ancestors.
func (c *Client) Lineage(ctx context.Context, id string) ([]*brief.Brief, error) {
	out := &api.LineageResponse{}
	if err := c.do(ctx, http.MethodGet, "/api/briefs/"+url.PathEscape(id)+"/lineage", nil, out); err != nil {
		return nil, err
	}
	return out.Briefs, nil
}

// OpenStream starts a streaming generation. The caller must Close the
// returned stream.
func (c *Client) OpenStream(ctx context.Context, req briefing.StreamRequest) (*EventStream, error) {
	resp, err := c.send(ctx, c.streamClient, http.MethodPost, "/api/generate-brief-stream", req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return &EventStream{body: resp.Body, decoder: progress.NewStream(c.logger)}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, c.httpClient, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, body any, accept string) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.target+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	c.logger.Debug("calling apm api", zap.String("method", method), zap.String("url", c.target+path))

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", c.target, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))

	var er api.ErrorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
