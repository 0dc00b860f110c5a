package nova

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// componentForgeDef is a native component that writes a new component
// manifest into the components directory, letting the agent extend its
// own capability set. The new component is picked up by the next registry
// refresh; nothing is loaded mid-cycle.
func componentForgeDef() NativeDef {
	desc := &Descriptor{
		Name: "ComponentForge",
		Description: "Creates a new capability component by writing its manifest. " +
			"The component becomes available on the next cycle. " +
			"params_yaml is an optional YAML list of parameter specs " +
			"(name, type, description, required, default).",
		Params: []ParamSpec{
			{Name: "name", Type: TypeString, Description: "Component name (must be a valid file base name)", Required: true},
			{Name: "description", Type: TypeString, Description: "What the capability does", Required: true},
			{Name: "type", Type: TypeString, Description: "Driver type", Required: true, Enum: []string{implExec, implHTTP, implFileRead, implFileWrite, implFileList}},
			{Name: "command", Type: TypeString, Description: "Shell command for exec driver; {{param}} placeholders are interpolated", Default: ""},
			{Name: "url", Type: TypeString, Description: "URL for http driver; {{param}} placeholders are interpolated", Default: ""},
			{Name: "params_yaml", Type: TypeString, Description: "YAML list of parameter specs", Default: ""},
		},
		Source: SourceNative,
	}
	return NativeDef{
		Descriptor: desc,
		New: func(env Env) Component {
			f := &forge{dir: env.ComponentsDir}
			return &nativeComponent{
				desc:  desc,
				useFn: f.use,
			}
		},
	}
}

type forge struct {
	dir string
}

func (f *forge) use(ctx context.Context, args map[string]any) (string, error) {
	name := stringArg(args, "name", "")
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid component name %q", name)
	}

	m := &Manifest{
		Name:        name,
		Description: stringArg(args, "description", ""),
		Implementation: ImplDef{
			Type:    stringArg(args, "type", ""),
			Command: stringArg(args, "command", ""),
			URL:     stringArg(args, "url", ""),
		},
	}

	if paramsYAML := stringArg(args, "params_yaml", ""); paramsYAML != "" {
		var params []ParamSpec
		if err := yaml.Unmarshal([]byte(paramsYAML), &params); err != nil {
			return "", fmt.Errorf("parse params_yaml: %w", err)
		}
		m.Params = params
	}

	// Validate against the same contract discovery applies, so the agent
	// gets the rejection now instead of a silent skip next refresh.
	if err := m.Validate(name); err != nil {
		return "", err
	}

	path := filepath.Join(f.dir, name+".yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrComponentExists, name)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	return fmt.Sprintf("component %s written to %s; it will be discovered on the next cycle", name, path), nil
}
