package runners

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/polisai/polis-dag/pkg/engine"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

// Placeholder balance attached by solana.helius.enrich until a Helius client
// is wired in.
const placeholderBalanceLamports = 123456

var (
	listSchema = runtime.MustSchema(runtime.Object(map[string]*jsonschema.Schema{
		"listId": runtime.StringProp("contact list identifier"),
	}))
	promptSchema = runtime.MustSchema(runtime.Object(map[string]*jsonschema.Schema{
		"prompt": runtime.StringProp("extraction prompt"),
	}))
)

func registerContacts(reg *engine.Registry) {
	reg.RegisterFunc("contacts.import", importContacts,
		engine.WithSchema(listSchema),
		engine.WithDescription("loads the contacts of config.listId"))
	reg.RegisterFunc("solana.helius.enrich", enrichSolana,
		engine.WithDescription("attaches Solana balances to contacts"))
	reg.RegisterFunc("ai.extract", aiExtract,
		engine.WithSchema(promptSchema),
		engine.WithDescription("annotates each item with an AI extraction marker"))
	reg.RegisterFunc("contacts.dedupe", dedupeContacts,
		engine.WithDescription("drops contacts whose email (or id) was already seen"))
	reg.RegisterFunc("contacts.write", writeContacts,
		engine.WithSchema(listSchema),
		engine.WithDescription("writes contacts to config.listId and returns a summary"))
}

// importContacts returns a fixed sample list; the contact store is outside
// this service.
func importContacts(_ context.Context, _ any, cfg runtime.Config, rc runtime.RunContext) (any, error) {
	listID := cfg.String("listId", "default")
	rc.Log(fmt.Sprintf("contacts:import:%s", listID))
	return []any{
		map[string]any{"id": "c1", "name": "Ada Lovelace", "wallets": []any{}},
		map[string]any{"id": "c2", "name": "Satoshi Nakamoto", "wallets": []any{
			map[string]any{"chain": "solana", "address": "So1111111111"},
		}},
	}, nil
}

func enrichSolana(_ context.Context, input any, _ runtime.Config, _ runtime.RunContext) (any, error) {
	items := asList(input)
	out := make([]any, 0, len(items))
	for _, item := range items {
		contact := copyObject(item)
		contact["solana"] = map[string]any{"balanceLamports": placeholderBalanceLamports}
		out = append(out, contact)
	}
	return out, nil
}

func aiExtract(_ context.Context, input any, cfg runtime.Config, _ runtime.RunContext) (any, error) {
	prompt := cfg.String("prompt", "")
	items := asList(input)
	out := make([]any, 0, len(items))
	for _, item := range items {
		annotated := copyObject(item)
		annotated["ai"] = map[string]any{"extracted": true, "prompt": prompt}
		out = append(out, annotated)
	}
	return out, nil
}

func dedupeContacts(_ context.Context, input any, _ runtime.Config, _ runtime.RunContext) (any, error) {
	items := asList(input)
	seen := make(map[string]bool, len(items))
	out := make([]any, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key := stringField(obj, "email")
		if key == "" {
			key = stringField(obj, "id")
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, obj)
	}
	return out, nil
}

func writeContacts(_ context.Context, input any, cfg runtime.Config, rc runtime.RunContext) (any, error) {
	listID := cfg.String("listId", "enriched")
	count := len(asList(input))
	rc.Log(fmt.Sprintf("contacts:write:%s:%d", listID, count))
	return map[string]any{"listId": listID, "count": count}, nil
}

// copyObject returns a shallow copy of an object item so upstream artifacts
// are never mutated. Non-object items are wrapped under "value".
func copyObject(item any) map[string]any {
	if obj, ok := item.(map[string]any); ok {
		return maps.Clone(obj)
	}
	return map[string]any{"value": item}
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
