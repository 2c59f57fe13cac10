// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPrefix is the reserved identity prefix marking a package as a plugin of this host.
const DefaultPrefix = "host-plugin-"

// ManifestFiles lists the manifest file names checked in each candidate
// directory, in order of preference.
var ManifestFiles = []string{"plugin.json", "plugin.yaml"}

// Descriptor is the validated metadata of a plugin candidate.
type Descriptor struct {
	Identity     string      `json:"name" jsonschema:"required,description=Unique plugin identity carrying the reserved prefix"`
	DisplayName  string      `json:"displayName,omitempty" jsonschema:"description=Human-readable name"`
	Description  string      `json:"description,omitempty"`
	Version      string      `json:"version" jsonschema:"required,minLength=1"`
	Author       string      `json:"author,omitempty"`
	Repository   string      `json:"repository,omitempty"`
	Dependencies []string    `json:"dependencies,omitempty" jsonschema:"description=Declared dependency identities; never resolved"`
	EntryPoint   string      `json:"main" jsonschema:"required,minLength=1,description=Entry point path relative to the plugin directory"`
	Runtime      RuntimeKind `json:"runtime,omitempty" jsonschema:"enum=lua,enum=binary"`
	Engines      Engines     `json:"engines,omitempty"`
}

// Engines declares host compatibility requirements.
type Engines struct {
	Host string `json:"host,omitempty" jsonschema:"description=Semantic version constraint on the host"`
}

// Validity is the outcome of validating a raw manifest.
type Validity struct {
	OK     bool
	Reason string
}

func invalid(format string, args ...any) Validity {
	return Validity{Reason: fmt.Sprintf(format, args...)}
}

// ParseManifest decodes manifest bytes into a generic record. Files with a
// .json extension are decoded as JSON, everything else as YAML.
func ParseManifest(name string, data []byte) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var raw any
	if strings.EqualFold(path.Ext(name), ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return raw, nil
	}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return raw, nil
}

// ValidateManifest checks a raw manifest record, stopping at the first
// failure: the record must be a map, name a string carrying prefix,
// version a string and main a string. It never panics on malformed input.
func ValidateManifest(raw any, prefix string) Validity {
	m, ok := raw.(map[string]any)
	if !ok || m == nil {
		return invalid("manifest is not a structured record")
	}

	name, ok := m["name"].(string)
	if !ok {
		return invalid("name must be a string")
	}
	if !strings.HasPrefix(name, prefix) {
		return invalid("name %q must start with %q", name, prefix)
	}

	if _, ok := m["version"].(string); !ok {
		return invalid("version must be a string")
	}

	if _, ok := m["main"].(string); !ok {
		return invalid("main must be a string")
	}

	return Validity{OK: true}
}

// DecodeDescriptor builds a Descriptor from a record accepted by
// ValidateManifest. Optional fields of the wrong type are ignored.
func DecodeDescriptor(raw any) *Descriptor {
	m, _ := raw.(map[string]any)

	d := &Descriptor{
		Identity:    stringField(m, "name"),
		DisplayName: stringField(m, "displayName"),
		Description: stringField(m, "description"),
		Version:     stringField(m, "version"),
		Author:      nestedString(m["author"], "name"),
		Repository:  nestedString(m["repository"], "url"),
		EntryPoint:  stringField(m, "main"),
		Runtime:     RuntimeKind(stringField(m, "runtime")),
	}

	if d.DisplayName == "" {
		d.DisplayName = d.Identity
	}
	if d.Description == "" {
		d.Description = d.Identity
	}
	if d.Runtime == "" {
		d.Runtime = inferRuntime(d.EntryPoint)
	}

	switch deps := m["dependencies"].(type) {
	case map[string]any:
		for id := range deps {
			d.Dependencies = append(d.Dependencies, id)
		}
		sort.Strings(d.Dependencies)
	case []any:
		for _, v := range deps {
			if id, ok := v.(string); ok {
				d.Dependencies = append(d.Dependencies, id)
			}
		}
	}

	if engines, ok := m["engines"].(map[string]any); ok {
		d.Engines.Host = stringField(engines, "host")
	}

	return d
}

func inferRuntime(entry string) RuntimeKind {
	if strings.EqualFold(path.Ext(entry), ".lua") {
		return RuntimeLua
	}
	return RuntimeBinary
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// nestedString accepts either a plain string or an object carrying key,
// matching the two forms package manifests use for author and repository.
func nestedString(v any, key string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		return stringField(val, key)
	default:
		return ""
	}
}
