package runtime

import (
	"encoding/json"
	"testing"
)

func TestConvertToInt(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int
		ok    bool
	}{
		{name: "int", input: 42, want: 42, ok: true},
		{name: "int64", input: int64(7), want: 7, ok: true},
		{name: "uint8", input: uint8(3), want: 3, ok: true},
		{name: "integral float", input: float64(50), want: 50, ok: true},
		{name: "fractional float", input: 1.5, ok: false},
		{name: "json number", input: json.Number("300"), want: 300, ok: true},
		{name: "numeric string", input: " 20000 ", want: 20000, ok: true},
		{name: "garbage string", input: "soon", ok: false},
		{name: "bool", input: true, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ConvertToInt(tt.input)
			if ok != tt.ok {
				t.Fatalf("ConvertToInt(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("ConvertToInt(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigIntDefault(t *testing.T) {
	cfg := Config{"retries": 3}

	got, err := cfg.Int(KeyRetries, 1)
	if err != nil || got != 3 {
		t.Fatalf("Int(retries) = %d, %v; want 3, nil", got, err)
	}

	got, err = cfg.Int(KeyTimeoutMS, 20000)
	if err != nil || got != 20000 {
		t.Fatalf("Int(timeoutMs) = %d, %v; want default 20000", got, err)
	}

	if _, err := (Config{"retries": "many"}).Int(KeyRetries, 1); err == nil {
		t.Fatal("expected error for non-numeric retries")
	}
}

func TestConfigRunnerViewDropsEngineKeys(t *testing.T) {
	cfg := Config{KeyTimeoutMS: 50, KeyRetries: 2, "url": "http://example.test"}

	view := cfg.RunnerView()
	if _, ok := view[KeyTimeoutMS]; ok {
		t.Fatal("runner view still contains timeoutMs")
	}
	if view["url"] != "http://example.test" {
		t.Fatalf("runner key lost: %v", view)
	}
	if _, ok := cfg[KeyRetries]; !ok {
		t.Fatal("RunnerView must not mutate the original config")
	}
}

func TestConfigDecode(t *testing.T) {
	var target struct {
		ListID string `json:"listId"`
		Limit  int    `json:"limit"`
	}
	cfg := Config{"listId": "vip", "limit": 5, KeyRetries: 2}

	if err := cfg.Decode(&target); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if target.ListID != "vip" || target.Limit != 5 {
		t.Fatalf("unexpected decode result: %+v", target)
	}
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{
		"name":    "ada",
		"enabled": "true",
		"headers": map[string]any{"X-Count": 2},
	}

	if got := cfg.String("name", ""); got != "ada" {
		t.Fatalf("String = %q", got)
	}
	if got := cfg.String("missing", "fallback"); got != "fallback" {
		t.Fatalf("String default = %q", got)
	}
	if !cfg.Bool("enabled", false) {
		t.Fatal("Bool should parse string true")
	}
	if got := cfg.StringMap("headers")["X-Count"]; got != "2" {
		t.Fatalf("StringMap value = %q", got)
	}
}
