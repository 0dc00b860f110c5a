package nova

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// factory constructs a fresh component instance from its descriptor's
// source. Loading after a destroy always goes through the factory again.
type factory func() (Component, error)

// Registry discovers, loads, unloads, and hot-reloads components. It is
// the single owner of the active component set; every plugin hook failure
// or panic is caught at this boundary and converted to a logged failure
// or an error result.
type Registry struct {
	dir     string
	env     Env
	natives []NativeDef

	descriptors map[string]*Descriptor
	factories   map[string]factory
	order       []string
	active      map[string]*Instance

	watching bool
	dirty    atomic.Bool

	mu sync.RWMutex
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEnv sets the environment handed to native components.
func WithEnv(env Env) RegistryOption {
	return func(r *Registry) {
		r.env = env
	}
}

// WithNatives registers compiled-in components. Natives are entered into
// the registration table ahead of directory discovery, so a manifest
// colliding with a native name is dropped.
func WithNatives(defs ...NativeDef) RegistryOption {
	return func(r *Registry) {
		r.natives = append(r.natives, defs...)
	}
}

// NewRegistry creates a registry scanning the given manifest directory.
func NewRegistry(dir string, opts ...RegistryOption) *Registry {
	r := &Registry{
		dir:         dir,
		env:         Env{ComponentsDir: dir, DataDir: DataDir()},
		descriptors: make(map[string]*Descriptor),
		factories:   make(map[string]factory),
		active:      make(map[string]*Instance),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Discover scans the component directory, recording a descriptor per
// valid source unit. A unit that fails to parse or violates the contract
// is skipped and logged; discovery never aborts on one bad unit.
// Duplicate names keep the first registration.
func (r *Registry) Discover() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discoverLocked()
}

func (r *Registry) discoverLocked() error {
	for _, nd := range r.natives {
		r.registerLocked(nd.Descriptor, func() (Component, error) {
			return nd.New(r.env), nil
		})
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("components directory not found, no manifests loaded", "dir", r.dir)
			return nil
		}
		return fmt.Errorf("read components directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(r.dir, name)
		m, err := ParseManifest(path)
		if err != nil {
			slog.Warn("skipping component manifest", "error", &DiscoveryError{Path: path, Err: err})
			continue
		}

		desc := m.descriptor(path)
		r.registerLocked(desc, func() (Component, error) {
			return newManifestComponent(m, path)
		})
	}

	return nil
}

// registerLocked records a descriptor and its factory. First registration
// wins; a colliding later discovery is dropped with a warning.
func (r *Registry) registerLocked(desc *Descriptor, f factory) {
	if _, exists := r.descriptors[desc.Name]; exists {
		slog.Warn("duplicate component name, keeping first registration",
			"name", desc.Name, "dropped", desc.Source)
		return
	}
	r.descriptors[desc.Name] = desc
	r.factories[desc.Name] = f
	r.order = append(r.order, desc.Name)
	slog.Debug("discovered component", "name", desc.Name, "source", desc.Source)
}

// Load activates a component by name. It is idempotent: loading an
// already-active component returns the existing instance without
// re-invoking onload. If onload fails, no instance is registered and the
// failure is isolated to this component.
func (r *Registry) Load(name string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.active[name]; ok {
		return inst, nil
	}

	f, ok := r.factories[name]
	if !ok {
		return nil, &LifecycleError{Component: name, Hook: "load", Err: ErrNotDiscovered}
	}

	comp, err := f()
	if err != nil {
		return nil, &LifecycleError{Component: name, Hook: "load", Err: err}
	}

	if err := safeOnLoad(comp); err != nil {
		return nil, &LifecycleError{Component: name, Hook: "onload", Err: err}
	}

	inst := &Instance{comp: comp, state: StateActive}
	r.active[name] = inst
	slog.Info("component loaded", "name", name)
	return inst, nil
}

// LoadAll loads every discovered descriptor not already active. Each load
// is independent; one failure does not block the rest.
func (r *Registry) LoadAll() {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.RUnlock()

	for _, name := range names {
		if _, err := r.Load(name); err != nil {
			slog.Warn("component load failed", "name", name, "error", err)
		}
	}
}

// Unload deactivates a component. Its destroy hook is invoked and the
// instance is removed from the active set regardless of whether destroy
// failed; a failing destroy is logged, not propagated. Unloading an
// unknown or inactive name is a no-op.
func (r *Registry) Unload(name string) {
	r.mu.Lock()
	inst, ok := r.active[name]
	if ok {
		delete(r.active, name)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	inst.state = StateDestroyed
	if err := safeDestroy(inst.comp); err != nil {
		slog.Error("component destroy failed", "name", name, "error", err)
	} else {
		slog.Info("component unloaded", "name", name)
	}
}

// UnloadAll deactivates every active component.
func (r *Registry) UnloadAll() {
	r.mu.RLock()
	names := make([]string, 0, len(r.active))
	for name := range r.active {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		r.Unload(name)
	}
}

// Refresh unloads everything, discards cached descriptors and parsed
// manifests so edited files are re-read, then re-discovers. This is how
// newly written or modified manifests (for example ones created at
// runtime by ComponentForge) are picked up.
func (r *Registry) Refresh() error {
	r.UnloadAll()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.descriptors = make(map[string]*Descriptor)
	r.factories = make(map[string]factory)
	r.order = nil
	r.dirty.Store(false)

	return r.discoverLocked()
}

// Active returns the active instance for a name, if any.
func (r *Registry) Active(name string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.active[name]
	return inst, ok
}

// ActiveList returns active instances in discovery order.
func (r *Registry) ActiveList() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances := make([]*Instance, 0, len(r.active))
	for _, name := range r.order {
		if inst, ok := r.active[name]; ok {
			instances = append(instances, inst)
		}
	}
	return instances
}

// Descriptors returns all discovered descriptors in discovery order.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.descriptors[name])
	}
	return descs
}

// Use resolves a name to an active component and executes its capability.
// A raised error or panic is caught and returned as a ToolError; an
// unknown name yields ErrComponentNotFound wrapped the same way.
func (r *Registry) Use(ctx context.Context, name string, args map[string]any) (string, error) {
	inst, ok := r.Active(name)
	if !ok {
		return "", &ToolError{Component: name, Err: ErrComponentNotFound}
	}

	result, err := safeUse(inst.comp, ctx, args)
	if err != nil {
		return "", &ToolError{Component: name, Err: err}
	}
	return result, nil
}

// MarkDirty flags that the component directory changed since the last
// refresh. Set by the directory watcher; cleared by Refresh.
func (r *Registry) MarkDirty() {
	r.dirty.Store(true)
}

// Dirty reports whether the component directory changed since the last
// refresh.
func (r *Registry) Dirty() bool {
	return r.dirty.Load()
}

// Watching reports whether directory change detection is running.
func (r *Registry) Watching() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.watching
}

// safeOnLoad invokes OnLoad, converting a panic into an error.
func safeOnLoad(c Component) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return c.OnLoad()
}

// safeUse invokes Use, converting a panic into an error.
func safeUse(c Component, ctx context.Context, args map[string]any) (result string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return c.Use(ctx, args)
}

// safeDestroy invokes Destroy, converting a panic into an error.
func safeDestroy(c Component) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return c.Destroy()
}
