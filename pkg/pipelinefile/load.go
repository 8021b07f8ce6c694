// Package pipelinefile reads pipeline definitions from JSON, YAML and HCL
// files.
package pipelinefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/polisai/polis-dag/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format identifies a definition file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatFromPath derives the format from the file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".hcl":
		return FormatHCL, true
	default:
		return "", false
	}
}

// Load reads a single definition file. A definition without a name takes the
// file's base name.
func Load(path string) (*domain.PipelineDefinition, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported pipeline file extension: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	def, err := Parse(data, format, path)
	if err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// Parse decodes data in the given format. filename is only used in
// diagnostics.
func Parse(data []byte, format Format, filename string) (*domain.PipelineDefinition, error) {
	var def domain.PipelineDefinition
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
		}
		normalizeYAML(&def)
	case FormatHCL:
		parsed, err := parseHCL(data, filename)
		if err != nil {
			return nil, err
		}
		def = *parsed
	default:
		return nil, fmt.Errorf("unsupported pipeline format %q", format)
	}
	return &def, nil
}

// LoadDir loads every definition file directly inside dir, in file name
// order. Files with other extensions are skipped. Duplicate names are an
// error.
func LoadDir(dir string) ([]*domain.PipelineDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipelines dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := FormatFromPath(entry.Name()); ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	defs := make([]*domain.PipelineDefinition, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		def, err := Load(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("pipeline %q defined in both %s and %s", def.Name, prev, name)
		}
		seen[def.Name] = name
		defs = append(defs, def)
	}
	return defs, nil
}

// normalizeYAML rewrites YAML scalars into the shapes encoding/json would
// produce, so runners see the same config regardless of file format.
func normalizeYAML(def *domain.PipelineDefinition) {
	for i := range def.Nodes {
		if def.Nodes[i].Config == nil {
			continue
		}
		def.Nodes[i].Config = normalizeValue(def.Nodes[i].Config).(map[string]any)
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return v
	}
}
