package nova

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is a YAML component definition. One file defines exactly one
// capability; the declared name must match the file's base name or the
// unit is rejected at discovery.
//
//	name: Weather
//	description: Fetches current weather for a city.
//	params:
//	  - name: city
//	    type: string
//	    description: City name
//	implementation:
//	  type: http
//	  url: https://wttr.in/{{city}}
//	  query:
//	    format: "3"
type Manifest struct {
	Name           string      `yaml:"name"`
	Description    string      `yaml:"description"`
	Params         []ParamSpec `yaml:"params"`
	Implementation ImplDef     `yaml:"implementation"`

	// OnLoad and Destroy are optional lifecycle hooks run as shell
	// commands on activation and deactivation.
	OnLoad  *HookDef `yaml:"onload,omitempty"`
	Destroy *HookDef `yaml:"destroy,omitempty"`
}

// ImplDef selects and configures a driver from the compiled driver table.
type ImplDef struct {
	Type    string            `yaml:"type"` // exec, http, file_read, file_write, file_list
	Command string            `yaml:"command,omitempty"`
	Method  string            `yaml:"method,omitempty"`
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Query   map[string]string `yaml:"query,omitempty"`
	Path    string            `yaml:"path,omitempty"`
	Timeout string            `yaml:"timeout,omitempty"`
}

// HookDef is an optional lifecycle hook command.
type HookDef struct {
	Command string `yaml:"command"`
}

// ParseManifest reads and validates a component manifest file.
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := m.Validate(baseName(path)); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks the manifest against the component contract. base is the
// source unit's base identifier (file name without extension).
func (m *Manifest) Validate(base string) error {
	if m.Name == "" {
		return fmt.Errorf("%w: missing name", ErrManifestInvalid)
	}
	if base != "" && m.Name != base {
		return fmt.Errorf("%w: name %q does not match file base name %q", ErrManifestInvalid, m.Name, base)
	}
	if !knownImplType(m.Implementation.Type) {
		return fmt.Errorf("%w: unknown implementation type %q", ErrManifestInvalid, m.Implementation.Type)
	}

	seen := make(map[string]bool, len(m.Params))
	for _, p := range m.Params {
		if p.Name == "" {
			return fmt.Errorf("%w: parameter with empty name", ErrManifestInvalid)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate parameter %q", ErrManifestInvalid, p.Name)
		}
		seen[p.Name] = true
	}

	switch m.Implementation.Type {
	case implExec:
		if m.Implementation.Command == "" {
			return fmt.Errorf("%w: exec implementation requires a command", ErrManifestInvalid)
		}
	case implHTTP:
		if m.Implementation.URL == "" {
			return fmt.Errorf("%w: http implementation requires a url", ErrManifestInvalid)
		}
	}

	return nil
}

// descriptor projects the manifest into an immutable Descriptor.
// Parameter types are normalized to the supported type tags.
func (m *Manifest) descriptor(path string) *Descriptor {
	params := make([]ParamSpec, len(m.Params))
	for i, p := range m.Params {
		p.Type = normalizeParamType(p.Type)
		params[i] = p
	}
	return &Descriptor{
		Name:        m.Name,
		Description: m.Description,
		Params:      params,
		Source:      path,
	}
}

// baseName returns a path's file name without its extension.
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
