package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/sse"
)

const (
	// DefaultTimeout bounds a non-streaming analysis call. Agent pipelines
	// are slow, so this is generous.
	DefaultTimeout = 5 * time.Minute

	// maxErrorBody is how much of an error response is kept.
	maxErrorBody = 4 * 1024
)

// Config configures a Client.
type Config struct {
	// Target is the base URL of the service, e.g. "http://localhost:5001".
	Target string

	// Timeout bounds Analyze and Health calls. Streams are bounded only by
	// the context passed to Open.
	Timeout time.Duration

	// Logger is optional.
	Logger *zap.Logger
}

// Client talks to the analysis service over HTTP.
type Client struct {
	target string
	logger *zap.Logger

	// httpClient carries the request timeout; streamClient has none since a
	// stream lives as long as the pipeline runs.
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a Client for cfg.Target.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Target == "" {
		return nil, errors.New("analysis target is required")
	}
	if !strings.HasPrefix(cfg.Target, "http://") && !strings.HasPrefix(cfg.Target, "https://") {
		return nil, fmt.Errorf("analysis target must be an http(s) URL: %q", cfg.Target)
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

// Target returns the base URL of the service.
func (c *Client) Target() string {
	return c.target
}

// Analyze runs the pipeline and waits for the finished result.
func (c *Client) Analyze(ctx context.Context, req Request) (*brief.Result, error) {
	resp, err := c.post(ctx, c.httpClient, AnalyzePath, req, "application/json")
	if err != nil {
		return nil, &TransportError{Op: "analyze", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus("analyze", resp); err != nil {
		return nil, err
	}

	result := &brief.Result{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, &TransportError{Op: "analyze", Err: fmt.Errorf("decoding response: %w", err)}
	}

	c.logger.Debug("analysis complete",
		zap.Float64("confidence_score", result.ConfidenceScore),
		zap.Int("agent_outputs", len(result.AgentOutputs)),
	)
	return result, nil
}

// Open starts a streaming analysis. The caller must Close the returned
// stream. Cancelling ctx aborts the stream.
func (c *Client) Open(ctx context.Context, req Request) (*EventStream, error) {
	resp, err := c.post(ctx, c.streamClient, StreamPath, req, "text/event-stream")
	if err != nil {
		return nil, &TransportError{Op: "stream", Err: err}
	}

	if err := checkStatus("stream", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	c.logger.Debug("analysis stream opened",
		zap.String("content_type", resp.Header.Get("Content-Type")),
	)
	return newEventStream(resp.Body), nil
}

// Health checks that the service is up.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target+HealthPath, nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Op: "health", Err: err}
	}
	defer resp.Body.Close()

	return checkStatus("health", resp)
}

func (c *Client) post(ctx context.Context, hc *http.Client, path string, req Request, accept string) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)

	c.logger.Debug("calling analysis service",
		zap.String("url", c.target+path),
		zap.Int("users", len(req.Users)),
		zap.Bool("refinement", req.Feedback != ""),
	)

	return hc.Do(httpReq)
}

// checkStatus turns a non-2xx response into a TransportError carrying the
// service's error message when it sent one.
func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))

	var er ErrorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		msg = er.Error
	}

	return &TransportError{Op: op, StatusCode: resp.StatusCode, Body: msg}
}

// EventStream yields the raw frames of a streaming analysis.
type EventStream struct {
	body   io.ReadCloser
	reader *sse.Reader
}

func newEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{
		body:   body,
		reader: sse.NewReader(body),
	}
}

// Next returns the next frame, or nil, nil once the service closes the
// stream. A broken connection is reported as a TransportError after every
// frame received before it.
func (s *EventStream) Next() (*sse.Frame, error) {
	f, err := s.reader.Next()
	if err != nil {
		return nil, &TransportError{Op: "stream", Err: err}
	}
	return f, nil
}

// Close releases the connection.
func (s *EventStream) Close() error {
	return s.body.Close()
}
