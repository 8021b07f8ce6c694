package runners

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

// maxResponseBytes caps how much of a response body http.fetch keeps.
const maxResponseBytes = 4 << 20

var httpFetchSchema = runtime.MustSchema(runtime.Object(map[string]*jsonschema.Schema{
	"url":     runtime.StringProp("request URL"),
	"method":  runtime.EnumProp("HTTP method", "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"),
	"headers": runtime.MapProp("request headers"),
	"body":    runtime.AnyProp("JSON-encoded request body"),
}, "url"))

// HTTPFetchRunner performs one HTTP request per attempt. Transport failures
// are returned as errors so the executor can retry them; any HTTP status is a
// successful result.
type HTTPFetchRunner struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPFetchRunner creates a runner using client.
func NewHTTPFetchRunner(client *http.Client, logger *slog.Logger) *HTTPFetchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetchRunner{client: client, logger: logger}
}

// FetchResult is the runner output.
type FetchResult struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func (r *HTTPFetchRunner) Execute(ctx context.Context, _ any, cfg runtime.Config, rc runtime.RunContext) (any, error) {
	url := cfg.String("url", "")
	if url == "" {
		return nil, fmt.Errorf("http.fetch: url is required")
	}
	method := strings.ToUpper(cfg.String("method", http.MethodGet))

	var body io.Reader
	if cfg.Has("body") {
		raw, err := json.Marshal(cfg["body"])
		if err != nil {
			return nil, fmt.Errorf("http.fetch: encode body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("http.fetch: build request: %w", err)
	}
	for k, v := range cfg.StringMap("headers") {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("http fetch failed", "node_id", rc.NodeID(), "method", method, "error", err)
		return nil, fmt.Errorf("http.fetch: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("http.fetch: read body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}

	r.logger.Debug("http fetch completed", "node_id", rc.NodeID(), "method", method, "status", resp.StatusCode)
	return FetchResult{Status: resp.StatusCode, Headers: headers, Body: string(raw)}, nil
}
