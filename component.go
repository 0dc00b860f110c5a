package nova

import "context"

// Component is a discoverable unit providing one invocable capability with
// an onload/use/destroy lifecycle. Implementations must tolerate OnLoad
// and Destroy being called at most once each; Use is only called while the
// component is active.
type Component interface {
	// Descriptor returns the immutable metadata for this component.
	Descriptor() *Descriptor

	// OnLoad is called once on activation for setup side effects.
	// A failure aborts only this component's load.
	OnLoad() error

	// Use executes the capability with arguments keyed by parameter name.
	Use(ctx context.Context, args map[string]any) (string, error)

	// Destroy is called once on deactivation for cleanup side effects.
	// Failures are logged by the registry, never propagated.
	Destroy() error
}

// Parameter type tags. Unrecognized or empty types map to TypeString.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// ParamSpec defines one capability parameter.
type ParamSpec struct {
	Name        string   `yaml:"name" json:"name"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any      `yaml:"default,omitempty" json:"default,omitempty"`
	Enum        []string `yaml:"enum,omitempty" json:"enum,omitempty"`
}

// Descriptor is the immutable metadata of a discovered component: its
// unique name, ordered parameter signature, and documentation text.
type Descriptor struct {
	// Name is the component's public capability name. For manifest-backed
	// components it equals the manifest file's base name.
	Name string

	// Description is the capability documentation shown to the backend.
	Description string

	// Params is the ordered capability parameter signature.
	Params []ParamSpec

	// Source identifies where the component came from: a manifest path,
	// or "native" for compiled-in components.
	Source string
}

// State is a component instance's lifecycle state. Transitions are
// strictly monotonic; a destroyed instance is never reactivated, it is
// reconstructed from its descriptor instead.
type State int

const (
	StateUnloaded State = iota
	StateActive
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Instance is an active component tracked by the registry.
type Instance struct {
	comp  Component
	state State
}

// Descriptor returns the instance's component descriptor.
func (i *Instance) Descriptor() *Descriptor {
	return i.comp.Descriptor()
}

// State returns the instance's lifecycle state.
func (i *Instance) State() State {
	return i.state
}

// normalizeParamType maps a declared parameter type to one of the
// supported type tags, defaulting to string when unannotated or
// unrecognized.
func normalizeParamType(t string) string {
	switch t {
	case TypeString, TypeNumber, TypeBoolean:
		return t
	case "int", "integer", "float", "double":
		return TypeNumber
	case "bool":
		return TypeBoolean
	default:
		return TypeString
	}
}
