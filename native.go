package nova

import (
	"context"
	"fmt"
	"time"
)

// Env is the runtime environment handed to native components.
type Env struct {
	// ComponentsDir is the manifest directory the registry scans.
	ComponentsDir string

	// DataDir is where native components keep private state.
	DataDir string
}

// NativeDef registers a compiled-in component. Native components are
// entered into the registry's registration table ahead of directory
// discovery, so a manifest colliding with a native name is dropped.
type NativeDef struct {
	// Descriptor is the component's immutable metadata. Source should be
	// SourceNative.
	Descriptor *Descriptor

	// New constructs a fresh instance. Called on every load so a
	// destroyed component is reconstructed rather than reactivated.
	New func(env Env) Component
}

// SourceNative marks descriptors of compiled-in components.
const SourceNative = "native"

// nativeComponent adapts plain functions to the Component interface.
// Nil hooks are no-ops.
type nativeComponent struct {
	desc      *Descriptor
	onLoadFn  func() error
	useFn     func(ctx context.Context, args map[string]any) (string, error)
	destroyFn func() error
}

func (c *nativeComponent) Descriptor() *Descriptor {
	return c.desc
}

func (c *nativeComponent) OnLoad() error {
	if c.onLoadFn == nil {
		return nil
	}
	return c.onLoadFn()
}

func (c *nativeComponent) Use(ctx context.Context, args map[string]any) (string, error) {
	if c.useFn == nil {
		return "", fmt.Errorf("component %s has no capability", c.desc.Name)
	}
	return c.useFn(ctx, withDefaults(c.desc.Params, args))
}

func (c *nativeComponent) Destroy() error {
	if c.destroyFn == nil {
		return nil
	}
	return c.destroyFn()
}

// Builtins returns the native components shipped with the runtime.
func Builtins() []NativeDef {
	return []NativeDef{
		clockDef(),
		knowledgeBaseDef(),
		componentForgeDef(),
	}
}

// clockDef reports the current time.
func clockDef() NativeDef {
	desc := &Descriptor{
		Name:        "Clock",
		Description: "Returns the current date and time.",
		Params: []ParamSpec{
			{Name: "format", Type: TypeString, Description: "Go time layout string", Default: time.RFC1123},
		},
		Source: SourceNative,
	}
	return NativeDef{
		Descriptor: desc,
		New: func(env Env) Component {
			return &nativeComponent{
				desc: desc,
				useFn: func(ctx context.Context, args map[string]any) (string, error) {
					layout := stringArg(args, "format", time.RFC1123)
					return time.Now().Format(layout), nil
				},
			}
		},
	}
}
