package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Redaction strategies.
const (
	StrategyDrop   = "drop"
	StrategyMask   = "mask"
	StrategyHash   = "hash"
	StrategyRedact = "redact"
)

// RedactionPolicy decides how attributes are treated before export. Keys are
// matched case-insensitively against the last segment of the attribute key.
type RedactionPolicy struct {
	// Sensitive maps substrings of a key to a strategy.
	Sensitive map[string]string
}

// DefaultRedactionPolicy hashes credential-like keys and drops bodies.
func DefaultRedactionPolicy() RedactionPolicy {
	return RedactionPolicy{Sensitive: map[string]string{
		"authorization": StrategyRedact,
		"password":      StrategyRedact,
		"secret":        StrategyRedact,
		"token":         StrategyHash,
		"apikey":        StrategyHash,
		"api_key":       StrategyHash,
		"email":         StrategyMask,
		"body":          StrategyDrop,
		"headers":       StrategyDrop,
	}}
}

func (p RedactionPolicy) strategyFor(key string) string {
	segment := strings.ToLower(key)
	if idx := strings.LastIndex(segment, "."); idx >= 0 {
		segment = segment[idx+1:]
	}
	needles := make([]string, 0, len(p.Sensitive))
	for needle := range p.Sensitive {
		needles = append(needles, needle)
	}
	sort.Strings(needles)
	for _, needle := range needles {
		if strings.Contains(segment, strings.ToLower(needle)) {
			return p.Sensitive[needle]
		}
	}
	return ""
}

// RedactAttributes applies the policy to attrs.
func RedactAttributes(policy RedactionPolicy, attrs []attribute.KeyValue) []attribute.KeyValue {
	if len(attrs) == 0 {
		return attrs
	}

	redacted := make([]attribute.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		key := string(kv.Key)
		switch policy.strategyFor(key) {
		case StrategyDrop:
			continue
		case StrategyMask:
			redacted = append(redacted, attribute.String(key, maskValue(kv.Value.Emit())))
		case StrategyHash:
			redacted = append(redacted, attribute.String(key, hashValue(kv.Value.Emit())))
		case StrategyRedact:
			redacted = append(redacted, attribute.String(key, "[REDACTED]"))
		default:
			redacted = append(redacted, kv)
		}
	}
	return redacted
}

// ConfigAttributes turns the scalar entries of a node config into
// node.config.* span attributes, sorted by key and redacted by policy.
// Nested values are skipped.
func ConfigAttributes(policy RedactionPolicy, cfg map[string]any) []attribute.KeyValue {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		name := "node.config." + k
		switch v := cfg[k].(type) {
		case string:
			attrs = append(attrs, attribute.String(name, v))
		case bool:
			attrs = append(attrs, attribute.Bool(name, v))
		case int:
			attrs = append(attrs, attribute.Int(name, v))
		case int64:
			attrs = append(attrs, attribute.Int64(name, v))
		case float64:
			attrs = append(attrs, attribute.Float64(name, v))
		case fmt.Stringer:
			attrs = append(attrs, attribute.String(name, v.String()))
		}
	}
	return RedactAttributes(policy, attrs)
}

// maskValue shows the first and last four characters, e.g. "1234***6789".
func maskValue(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}

// hashValue produces a deterministic short digest for correlation.
func hashValue(s string) string {
	if s == "" {
		return "[REDACTED:empty]"
	}
	sum := sha256.Sum256([]byte(s))
	return "[REDACTED:hash:" + hex.EncodeToString(sum[:4]) + "]"
}
