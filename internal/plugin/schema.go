// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaID is the $id of the generated manifest schema.
const SchemaID = "https://holomush.dev/schemas/pluginhost/plugin.schema.json"

// schemaCache holds compiled schemas keyed by identity prefix.
var schemaCache sync.Map

// GenerateSchema generates the JSON Schema for plugin manifests whose
// identities must start with prefix.
func GenerateSchema(prefix string) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Descriptor{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Plugin Manifest"
	schema.Description = "Schema for plugin.json and plugin.yaml manifest files"
	// Manifests routinely carry package-manager fields the host ignores.
	schema.AdditionalProperties = nil

	if name, ok := schema.Properties.Get("name"); ok {
		name.Pattern = "^" + regexp.QuoteMeta(prefix)
	}

	// author and repository take either a string or an object, dependencies
	// either a list of identities or an object keyed by identity.
	stringOrObject := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{
			Description: desc,
			OneOf: []*jsonschema.Schema{
				{Type: "string"},
				{Type: "object"},
			},
		}
	}
	schema.Properties.Set("author", stringOrObject("Author name, or an object with a name field"))
	schema.Properties.Set("repository", stringOrObject("Repository URL, or an object with a url field"))
	schema.Properties.Set("dependencies", &jsonschema.Schema{
		Description: "Declared dependency identities; never resolved",
		OneOf: []*jsonschema.Schema{
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			{Type: "object"},
		},
	})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// ValidateSchema validates a manifest document against the manifest schema.
// name selects the decoder the same way ParseManifest does.
func ValidateSchema(name string, data []byte, prefix string) error {
	raw, err := ParseManifest(name, data)
	if err != nil {
		return err
	}

	sch, err := compiledSchema(prefix)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	if err := sch.Validate(convertToJSONTypes(raw)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func compiledSchema(prefix string) (*jschema.Schema, error) {
	if cached, ok := schemaCache.Load(prefix); ok {
		return cached.(*jschema.Schema), nil
	}

	schemaBytes, err := GenerateSchema(prefix)
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	schemaCache.Store(prefix, sch)
	return sch, nil
}

// convertToJSONTypes normalizes decoded manifest values to the types the
// schema validator accepts. YAML integers become float64 like JSON numbers.
func convertToJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = convertToJSONTypes(v)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = convertToJSONTypes(v)
		}
		return result
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case string, float64, bool, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var result any
			if err := json.Unmarshal(b, &result); err == nil {
				return result
			}
		}
		return val
	}
}

// FormatSchemaError strips the wrapping prefix from a schema validation error.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimPrefix(err.Error(), "schema validation failed: ")
}
