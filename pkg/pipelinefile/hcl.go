package pipelinefile

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/polisai/polis-dag/pkg/domain"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// hclPipelineFile is the top-level structure of an HCL definition:
//
//	name       = "contacts"
//	input_node = "import"
//
//	node "import" {
//	  type   = "contacts.import"
//	  config = { format = "csv" }
//	}
//
//	edge {
//	  from = "import"
//	  to   = "dedupe"
//	}
type hclPipelineFile struct {
	Name      string     `hcl:"name,optional"`
	InputNode string     `hcl:"input_node,optional"`
	Nodes     []*hclNode `hcl:"node,block"`
	Edges     []*hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	ID     string         `hcl:"id,label"`
	Type   string         `hcl:"type"`
	Config hcl.Expression `hcl:"config,optional"`
}

type hclEdge struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

func parseHCL(data []byte, filename string) (*domain.PipelineDefinition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclPipelineFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	def := &domain.PipelineDefinition{
		Name:      parsed.Name,
		InputNode: parsed.InputNode,
		Nodes:     make([]domain.NodeDefinition, 0, len(parsed.Nodes)),
		Edges:     make([]domain.Edge, 0, len(parsed.Edges)),
	}
	for _, n := range parsed.Nodes {
		cfg, err := decodeConfig(n.Config)
		if err != nil {
			return nil, fmt.Errorf("node %q in %s: %w", n.ID, filename, err)
		}
		def.Nodes = append(def.Nodes, domain.NodeDefinition{ID: n.ID, Type: n.Type, Config: cfg})
	}
	for _, e := range parsed.Edges {
		def.Edges = append(def.Edges, domain.Edge{From: e.From, To: e.To})
	}
	return def, nil
}

// decodeConfig evaluates a config expression and converts it through its JSON
// form, so numbers arrive as float64 like they do from JSON definitions.
func decodeConfig(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to evaluate config: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("config must be a literal value")
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("config must be an object, got %s", val.Type().FriendlyName())
	}

	raw, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return nil, fmt.Errorf("failed to convert config: %w", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to convert config: %w", err)
	}
	return cfg, nil
}
