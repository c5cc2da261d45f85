package tools

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
	"github.com/xeipuuv/gojsonschema"
)

// Spec is one catalog entry loaded from the tool definition file.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"-"`
	Kind        Kind           `json:"-"`

	schemaLoader gojsonschema.JSONLoader
}

// rawSpec mirrors the on-disk shape before schema-key normalization. Tool
// definition files in the wild use input_schema, inputSchema, or parameters
// interchangeably; the loader folds all three into one field.
type rawSpec struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	InputSchema2 map[string]any `json:"inputSchema,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

// LoadCatalog reads a JSON array of tool specs from path, classifying each
// by name and compiling its input schema for later validation.
func LoadCatalog(path string) (map[string]*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tools: read catalog %s: %w", path, err)
	}

	var entries []rawSpec
	if err := json5.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("tools: parse catalog %s: %w", path, err)
	}

	catalog := make(map[string]*Spec, len(entries))
	for _, e := range entries {
		schema := e.InputSchema
		if schema == nil {
			schema = e.InputSchema2
		}
		if schema == nil {
			schema = e.Parameters
		}
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}

		spec := &Spec{
			Name:         e.Name,
			Description:  e.Description,
			InputSchema:  schema,
			Kind:         Classify(e.Name),
			schemaLoader: gojsonschema.NewGoLoader(schema),
		}
		catalog[e.Name] = spec
	}
	return catalog, nil
}

// ValidateInput checks input against the tool's compiled JSON schema. Tools
// with no catalog entry (e.g. handoff tools, which are name-derived rather
// than schema-declared) skip schema validation and rely on the classifier's
// own field checks.
func (s *Spec) ValidateInput(input map[string]any) error {
	if s == nil || s.schemaLoader == nil {
		return nil
	}
	result, err := gojsonschema.Validate(s.schemaLoader, gojsonschema.NewGoLoader(input))
	if err != nil {
		return fmt.Errorf("tools: schema validation error: %w", err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return fmt.Errorf("%w: %s", ErrInvalidInput, first.String())
	}
	return nil
}
