package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestRedactAttributesStrategies(t *testing.T) {
	attrs := []attribute.KeyValue{
		attribute.String("node.config.authorization", "Bearer secret"),
		attribute.String("node.config.email", "person@example.com"),
		attribute.String("node.config.apiToken", "abc123"),
		attribute.String("node.config.body", "{\"a\":1}"),
		attribute.String("node.config.url", "https://example.test"),
	}

	filtered := RedactAttributes(DefaultRedactionPolicy(), attrs)
	if len(filtered) != 4 {
		t.Fatalf("expected 4 attributes after redaction, got %d", len(filtered))
	}

	for _, kv := range filtered {
		switch kv.Key {
		case "node.config.authorization":
			if kv.Value.AsString() != "[REDACTED]" {
				t.Fatalf("authorization not redacted: %q", kv.Value.AsString())
			}
		case "node.config.email":
			if got := kv.Value.AsString(); got != "pers***.com" {
				t.Fatalf("unexpected masked email %q", got)
			}
		case "node.config.apiToken":
			if got := kv.Value.AsString(); !strings.HasPrefix(got, "[REDACTED:hash:") || strings.Contains(got, "abc123") {
				t.Fatalf("unexpected hashed token %q", got)
			}
		case "node.config.url":
			if kv.Value.AsString() != "https://example.test" {
				t.Fatalf("safe attribute changed: %q", kv.Value.AsString())
			}
		default:
			t.Fatalf("unexpected attribute %q present after redaction", kv.Key)
		}
	}
}

func TestConfigAttributesSkipsNestedValues(t *testing.T) {
	attrs := ConfigAttributes(DefaultRedactionPolicy(), map[string]any{
		"url":       "https://example.test",
		"timeoutMs": 50,
		"retries":   float64(2),
		"nested":    map[string]any{"a": 1},
		"enabled":   true,
	})

	keys := make([]string, len(attrs))
	for i, kv := range attrs {
		keys[i] = string(kv.Key)
	}
	want := []string{"node.config.enabled", "node.config.retries", "node.config.timeoutMs", "node.config.url"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected keys %v, want %v", keys, want)
	}
}
