package pipelinefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonDef = `{
  "name": "contacts",
  "nodes": [
    {"id": "import", "type": "contacts.import", "config": {"limit": 10}},
    {"id": "dedupe", "type": "contacts.dedupe"}
  ],
  "edges": [["import", "dedupe"]],
  "inputNode": "import"
}`

const yamlDef = `
name: contacts
inputNode: import
nodes:
  - id: import
    type: contacts.import
    config:
      limit: 10
      tags: [a, b]
  - id: dedupe
    type: contacts.dedupe
edges:
  - [import, dedupe]
`

const hclDef = `
name       = "contacts"
input_node = "import"

node "import" {
  type   = "contacts.import"
  config = {
    limit = 10
    tags  = ["a", "b"]
  }
}

node "dedupe" {
  type = "contacts.dedupe"
}

edge {
  from = "import"
  to   = "dedupe"
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func assertContactsPipeline(t *testing.T, def *domain.PipelineDefinition) {
	t.Helper()
	assert.Equal(t, "contacts", def.Name)
	assert.Equal(t, "import", def.InputNode)
	require.Len(t, def.Nodes, 2)
	assert.Equal(t, "contacts.import", def.Nodes[0].Type)
	assert.Equal(t, float64(10), def.Nodes[0].Config["limit"])
	assert.Equal(t, []domain.Edge{{From: "import", To: "dedupe"}}, def.Edges)
	require.NoError(t, def.Validate())
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"a.json": jsonDef,
		"b.yaml": yamlDef,
		"c.hcl":  hclDef,
	} {
		t.Run(name, func(t *testing.T) {
			def, err := Load(writeFile(t, dir, name, content))
			require.NoError(t, err)
			assertContactsPipeline(t, def)
		})
	}
}

func TestYAMLAndHCLConfigsMatch(t *testing.T) {
	y, err := Parse([]byte(yamlDef), FormatYAML, "def.yaml")
	require.NoError(t, err)
	h, err := Parse([]byte(hclDef), FormatHCL, "def.hcl")
	require.NoError(t, err)

	assert.Equal(t, y.Nodes[0].Config, h.Nodes[0].Config)
	assert.Equal(t, []any{"a", "b"}, h.Nodes[0].Config["tags"])
	assert.Nil(t, h.Nodes[1].Config)
}

func TestYAMLEdgeObjectForm(t *testing.T) {
	def, err := Parse([]byte(`
nodes:
  - {id: a, type: value.const}
  - {id: b, type: text.upper}
edges:
  - {from: a, to: b}
`), FormatYAML, "edges.yaml")
	require.NoError(t, err)
	assert.Equal(t, []domain.Edge{{From: "a", To: "b"}}, def.Edges)
}

func TestLoadDefaultsNameToFileName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "enrich.json", `{"nodes":[{"id":"a","type":"value.const"}],"edges":[]}`)

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "enrich", def.Name)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeFile(t, dir, "x.toml", "name = 'x'"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = Load(writeFile(t, dir, "bad.json", `{"name": "x", "bogus": 1}`))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "bad.hcl", `node "a" {}`))
	assert.ErrorContains(t, err, "bad.hcl")

	_, err = Load(writeFile(t, dir, "cfg.hcl", `
node "a" {
  type   = "value.const"
  config = "not an object"
}`))
	assert.ErrorContains(t, err, "config must be an object")

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", yamlDef)
	writeFile(t, dir, "a.json", `{"name":"first","nodes":[{"id":"a","type":"value.const"}],"edges":[]}`)
	writeFile(t, dir, "README.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "first", defs[0].Name)
	assert.Equal(t, "contacts", defs[1].Name)
}

func TestLoadDirRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", jsonDef)
	writeFile(t, dir, "b.hcl", hclDef)

	_, err := LoadDir(dir)
	assert.ErrorContains(t, err, `pipeline "contacts" defined in both a.json and b.hcl`)
}
