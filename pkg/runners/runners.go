// Package runners provides the built-in node runners the service registers
// at startup: the contact enrichment nodes, HTTP fetching, text extraction and
// the jq, expr and Rego transforms.
package runners

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options configure the built-in runners.
type Options struct {
	Logger *slog.Logger
	// HTTPClient is used by http.fetch. Defaults to an otelhttp-instrumented
	// client.
	HTTPClient *http.Client
}

// RegisterBuiltins registers every built-in runner on reg.
func RegisterBuiltins(reg *engine.Registry, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		}
	}

	registerBasics(reg)
	registerContacts(reg)

	reg.Register("nlp.extract", NLPExtractRunner{},
		engine.WithDescription("extracts person names and relationships from free text"))
	reg.Register("http.fetch", NewHTTPFetchRunner(client, logger),
		engine.WithSchema(httpFetchSchema),
		engine.WithDescription("performs an HTTP request and returns status, headers and body"))
	reg.Register("transform.jq", NewJQRunner(),
		engine.WithAliases("jq"),
		engine.WithSchema(jqSchema),
		engine.WithDescription("applies a jq query to the input"))
	reg.Register("transform.expr", NewExprRunner(),
		engine.WithAliases("expr"),
		engine.WithSchema(exprSchema),
		engine.WithDescription("evaluates an expr-lang expression with the input bound to `input`"))
	reg.Register("policy.opa", NewPolicyRunner(logger),
		engine.WithAliases("opa"),
		engine.WithSchema(policySchema),
		engine.WithDescription("evaluates a Rego policy against the input and gates or annotates it"))
}

// asList mirrors the contact nodes' input handling: lists pass through, a
// missing input is empty and anything else becomes a single element list.
func asList(input any) []any {
	switch v := input.(type) {
	case nil:
		return []any{}
	case domain.Empty:
		return []any{}
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	default:
		return []any{input}
	}
}

// toJSONValue converts arbitrary runner outputs to the plain JSON shapes
// (map[string]any, []any, float64, string, bool, nil) expected by gojq and
// expr.
func toJSONValue(v any) (any, error) {
	if domain.IsNoInput(v) {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("input is not JSON-encodable: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
