package engine

import (
	"errors"
	"testing"

	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

func TestRegistryResolveAliases(t *testing.T) {
	registry := NewRegistry()
	upper := &spyRunner{output: "upper"}
	jq := &spyRunner{output: "jq"}

	registry.Register("text.upper", upper, WithAliases("upper"), WithDescription("upper-cases strings"))
	registry.Register("transform.jq@v1", jq, WithAliases("jq"))

	spec, err := registry.Resolve("upper")
	if err != nil {
		t.Fatalf("expected upper alias to resolve: %v", err)
	}
	if spec.Runner != upper {
		t.Fatalf("resolved runner mismatch for upper")
	}
	if spec.Type != "text.upper" {
		t.Fatalf("expected canonical key text.upper, got %s", spec.Type)
	}
	if spec.Description != "upper-cases strings" {
		t.Fatalf("unexpected description %q", spec.Description)
	}

	for _, name := range []string{"jq", "transform.jq", "transform.jq@v1"} {
		spec, err := registry.Resolve(name)
		if err != nil {
			t.Fatalf("expected %s to resolve: %v", name, err)
		}
		if spec.Type != "transform.jq@v1" {
			t.Fatalf("expected canonical key transform.jq@v1 for %s, got %s", name, spec.Type)
		}
	}
}

func TestRegistryFirstVersionKeepsBareKind(t *testing.T) {
	registry := NewRegistry()
	registry.Register("http.fetch@v1", &spyRunner{output: 1})
	registry.Register("http.fetch@v2", &spyRunner{output: 2})

	spec, err := registry.Resolve("http.fetch")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if spec.Type != "http.fetch@v1" {
		t.Fatalf("expected bare kind to stay on v1, got %s", spec.Type)
	}
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	registry := NewRegistry()
	first := &spyRunner{output: 1}
	second := &spyRunner{output: 2}
	registry.Register("value.const", first)
	registry.Register("value.const", second)

	runner, err := registry.Lookup("value.const")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if runner != second {
		t.Fatalf("expected the later registration to win")
	}
	if got := registry.Types(); len(got) != 1 || got[0] != "value.const" {
		t.Fatalf("unexpected types %v", got)
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Lookup("missing.type")
	if !errors.Is(err, domain.ErrUnknownNodeType) {
		t.Fatalf("expected ErrUnknownNodeType, got %v", err)
	}
	var typed *domain.UnknownNodeTypeError
	if !errors.As(err, &typed) || typed.Type != "missing.type" {
		t.Fatalf("expected typed error for missing.type, got %#v", err)
	}
}

func TestRegistrySpecsSorted(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("b.type", constRunner(nil))
	registry.RegisterFunc("a.type", constRunner(nil), WithSchema(runtime.MustSchema(runtime.Object(nil))))

	specs := registry.Specs()
	if len(specs) != 2 || specs[0].Type != "a.type" || specs[1].Type != "b.type" {
		t.Fatalf("unexpected specs %+v", specs)
	}
	if specs[0].Schema == nil {
		t.Fatalf("expected schema on a.type")
	}
}
