package nova

import (
	"fmt"
	"log/slog"

	"github.com/everydev1618/gonova/llm"
)

// SchemaBuilder derives backend tool schemas from component descriptors.
// A schema is a read-only projection: it is regenerated every cycle and
// always derivable purely from the descriptor.
type SchemaBuilder struct{}

// NewSchemaBuilder creates a schema builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{}
}

// Build projects a descriptor into a tool schema. Parameter types map to
// {string, number, boolean}, defaulting to string; a parameter with no
// default value is required. A missing description falls back to a
// generated default.
func (b *SchemaBuilder) Build(d *Descriptor) llm.ToolSchema {
	props := make(map[string]any, len(d.Params))
	required := []string{}

	for _, p := range d.Params {
		prop := map[string]any{
			"type": normalizeParamType(p.Type),
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop

		if p.Required || p.Default == nil {
			required = append(required, p.Name)
		}
	}

	description := d.Description
	if description == "" {
		description = fmt.Sprintf("Uses the %s component.", d.Name)
	}

	return llm.ToolSchema{
		Name:        d.Name,
		Description: description,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// BuildAll projects every active instance into a tool schema, in order,
// skipping (with a warning) any instance lacking a usable capability.
func (b *SchemaBuilder) BuildAll(instances []*Instance) []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(instances))
	for _, inst := range instances {
		d := inst.Descriptor()
		if d == nil || d.Name == "" {
			slog.Warn("active component lacks a usable capability, skipping")
			continue
		}
		schemas = append(schemas, b.Build(d))
	}
	return schemas
}
