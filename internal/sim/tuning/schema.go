package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed experiment.schema.json
var experimentSchemaJSON string

const experimentSchemaURL = "https://tiledswarm.ai/schemas/experiment.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func experimentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(experimentSchemaURL, strings.NewReader(experimentSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(experimentSchemaURL)
	})
	return schema, schemaErr
}

// ValidateDocument checks a raw YAML (or JSON) experiment document against
// the embedded schema. Unknown keys are rejected.
func ValidateDocument(raw []byte) error {
	s, err := experimentSchema()
	if err != nil {
		return fmt.Errorf("compile experiment schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees JSON-native types.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("canonicalize: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
