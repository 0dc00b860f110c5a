package nova

import (
	"testing"
)

func TestSchemaBuild(t *testing.T) {
	b := NewSchemaBuilder()

	t.Run("projects params into json schema", func(t *testing.T) {
		schema := b.Build(&Descriptor{
			Name:        "Weather",
			Description: "Fetches weather.",
			Params: []ParamSpec{
				{Name: "city", Type: TypeString, Description: "City name", Required: true},
				{Name: "units", Type: TypeString, Enum: []string{"metric", "imperial"}, Default: "metric"},
			},
		})

		if schema.Name != "Weather" {
			t.Errorf("name = %q", schema.Name)
		}
		props, ok := schema.InputSchema["properties"].(map[string]any)
		if !ok {
			t.Fatalf("properties missing: %+v", schema.InputSchema)
		}
		city, ok := props["city"].(map[string]any)
		if !ok {
			t.Fatal("city property missing")
		}
		if city["type"] != TypeString || city["description"] != "City name" {
			t.Errorf("city = %+v", city)
		}
		units := props["units"].(map[string]any)
		if enum, ok := units["enum"].([]string); !ok || len(enum) != 2 {
			t.Errorf("units enum = %+v", units["enum"])
		}
	})

	t.Run("param without default is required", func(t *testing.T) {
		schema := b.Build(&Descriptor{
			Name: "Mix",
			Params: []ParamSpec{
				{Name: "must", Type: TypeString},
				{Name: "may", Type: TypeString, Default: "x"},
				{Name: "forced", Type: TypeString, Default: "y", Required: true},
			},
		})

		required := schema.InputSchema["required"].([]string)
		want := map[string]bool{"must": true, "forced": true}
		if len(required) != len(want) {
			t.Fatalf("required = %v, want %v", required, want)
		}
		for _, name := range required {
			if !want[name] {
				t.Errorf("unexpected required param %q", name)
			}
		}
	})

	t.Run("type tags normalize to the supported set", func(t *testing.T) {
		tests := []struct {
			in   string
			want string
		}{
			{"string", TypeString},
			{"int", TypeNumber},
			{"integer", TypeNumber},
			{"float", TypeNumber},
			{"double", TypeNumber},
			{"number", TypeNumber},
			{"bool", TypeBoolean},
			{"boolean", TypeBoolean},
			{"", TypeString},
			{"mystery", TypeString},
		}
		for _, tt := range tests {
			schema := b.Build(&Descriptor{
				Name:   "T",
				Params: []ParamSpec{{Name: "p", Type: tt.in}},
			})
			props := schema.InputSchema["properties"].(map[string]any)
			got := props["p"].(map[string]any)["type"]
			if got != tt.want {
				t.Errorf("type %q normalized to %v, want %v", tt.in, got, tt.want)
			}
		}
	})

	t.Run("missing description gets a fallback", func(t *testing.T) {
		schema := b.Build(&Descriptor{Name: "Bare"})
		if schema.Description == "" {
			t.Error("description should not be empty")
		}
	})
}

func TestSchemaBuildAll(t *testing.T) {
	b := NewSchemaBuilder()

	good := &Instance{
		comp:  &testComponent{desc: &Descriptor{Name: "Good", Source: SourceNative}},
		state: StateActive,
	}
	broken := &Instance{
		comp:  &testComponent{desc: &Descriptor{}},
		state: StateActive,
	}

	schemas := b.BuildAll([]*Instance{good, broken})
	if len(schemas) != 1 {
		t.Fatalf("schemas = %d, want 1 (broken skipped)", len(schemas))
	}
	if schemas[0].Name != "Good" {
		t.Errorf("name = %q", schemas[0].Name)
	}
}
