package nova

import (
	"errors"
	"fmt"
)

// Standard errors returned by the runtime.
var (
	// ErrComponentNotFound is returned when a name resolves to no active component
	ErrComponentNotFound = errors.New("component not found")

	// ErrNotDiscovered is returned when loading a name with no discovered descriptor
	ErrNotDiscovered = errors.New("component not discovered")

	// ErrManifestInvalid is returned when a manifest violates the component contract
	ErrManifestInvalid = errors.New("invalid component manifest")

	// ErrComponentExists is returned when writing a manifest that already exists
	ErrComponentExists = errors.New("component already exists")
)

// DiscoveryError wraps a failure to parse or validate one source unit.
// Discovery never aborts on one bad unit; these are logged and skipped.
type DiscoveryError struct {
	Path string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Path, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// LifecycleError wraps a failure raised by a component's onload or destroy
// hook. The failure is isolated to that component.
type LifecycleError struct {
	Component string
	Hook      string
	Err       error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("component %s: %s: %v", e.Component, e.Hook, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// ToolError wraps a failure during tool resolution or execution. It is a
// recoverable application outcome: the orchestrator converts it to an
// error-describing tool result and the conversation continues.
type ToolError struct {
	Component string
	Err       error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Component, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// TransportError wraps a backend or network failure during an exchange.
// Unlike a ToolError it is a protocol failure: the orchestrator rolls back
// the triggering user turn and reports it to the caller.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend exchange: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
