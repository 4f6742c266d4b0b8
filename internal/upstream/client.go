// Package upstream is the HTTP client for the external rate engine.
package upstream

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

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/labliq/internal/results"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// DefaultMaxResponseBytes caps a response body when no limit is configured.
const DefaultMaxResponseBytes int64 = 64 << 20

// ErrResponseTooLarge is returned when a response body exceeds the cap.
var ErrResponseTooLarge = errors.New("rate engine response too large")

// Request is the analysis request body.
type Request struct {
	FileID   string        `json:"fileId"`
	Mapping  ColumnMapping `json:"mapping"`
	Settings Settings      `json:"settings"`
}

// Response is a decoded engine result. Summary is kept raw because its key
// names vary between engine versions; see results.NormalizeSummary.
type Response struct {
	Rows    []results.Row
	Summary map[string]any
	Warning string
}

// EngineError is returned for non-2xx responses and {"error": ...} payloads.
type EngineError struct {
	Status  int
	Message string
}

func (e *EngineError) Error() string {
	if e.Status == 0 {
		return "rate engine error: " + e.Message
	}
	return fmt.Sprintf("rate engine returned %d: %s", e.Status, e.Message)
}

// Client calls the rate engine.
type Client struct {
	baseURL  string
	apiKey   string
	maxBytes int64
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithMaxResponseBytes caps the size of a successful response body. Values
// <= 0 keep DefaultMaxResponseBytes.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// NewClient returns a client for the engine at baseURL with the given
// per-request timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: DefaultMaxResponseBytes,
		http:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wireResponse struct {
	Results json.RawMessage `json:"results"`
	Summary map[string]any  `json:"summary"`
	Warning string          `json:"warning"`
	Error   string          `json:"error"`
}

// Analyze submits req and decodes the result rows.
func (c *Client) Analyze(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analysis", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rate engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &EngineError{Status: resp.StatusCode, Message: errorMessage(resp.Body, resp.Status)}
	}

	out, err := DecodeResponse(resp.Body, c.maxBytes)
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		engineErr.Status = resp.StatusCode
	}
	return out, err
}

// DecodeResponse decodes an engine result body. Besides the usual
// {"results": [...], "summary": {...}} envelope it accepts a bare row array,
// the shape of a saved results export. A leading byte order mark selects
// UTF-8 or UTF-16 and invalid UTF-8 becomes U+FFFD. An {"error": ...}
// payload is returned as an *EngineError with no status. A body longer than
// maxBytes (DefaultMaxResponseBytes when <= 0) fails with ErrResponseTooLarge.
func DecodeResponse(r io.Reader, maxBytes int64) (*Response, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}
	limited := &io.LimitedReader{R: r, N: maxBytes + 1}
	data, err := io.ReadAll(transform.NewReader(limited, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, fmt.Errorf("read rate engine response: %w", err)
	}
	if limited.N == 0 {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxBytes)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		rows, err := results.DecodeRows(trimmed)
		if err != nil {
			return nil, fmt.Errorf("decode rate engine results: %w", err)
		}
		return &Response{Rows: rows}, nil
	}

	var wire wireResponse
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, fmt.Errorf("decode rate engine response: %w", err)
	}
	if wire.Error != "" {
		return nil, &EngineError{Message: wire.Error}
	}

	rows := []results.Row{}
	if raw := bytes.TrimSpace(wire.Results); len(raw) > 0 && string(raw) != "null" {
		rows, err = results.DecodeRows(raw)
		if err != nil {
			return nil, fmt.Errorf("decode rate engine results: %w", err)
		}
	}

	return &Response{
		Rows:    rows,
		Summary: wire.Summary,
		Warning: wire.Warning,
	}, nil
}

// errorMessage extracts {"error": "..."} from a failed response, falling
// back to the trimmed body or the status text.
func errorMessage(body io.Reader, status string) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return status
}
