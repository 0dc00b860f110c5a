package nova

// EventType categorizes orchestrator events.
type EventType string

const (
	// EventTextDelta is an incremental piece of model text.
	EventTextDelta EventType = "text_delta"
	// EventToolStart is emitted when a tool invocation begins.
	EventToolStart EventType = "tool_start"
	// EventToolEnd is emitted when a tool invocation finishes, carrying
	// its (possibly error-describing) result.
	EventToolEnd EventType = "tool_end"
	// EventStepDone is emitted when a step, including every chained
	// follow-up exchange, has fully resolved.
	EventStepDone EventType = "step_done"
	// EventError is emitted for a transport failure, after rollback.
	EventError EventType = "error"
)

// Event is a structured event surfaced during a step. Text deltas arrive
// interleaved with tool lifecycle events so a caller can render tool
// activity inline with the response text.
type Event struct {
	Type       EventType      `json:"type"`
	Delta      string         `json:"delta,omitempty"`
	CallID     string         `json:"call_id,omitempty"`
	Tool       string         `json:"tool,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	Result     string         `json:"result,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Err        string         `json:"error,omitempty"`
}

// EventHandler receives orchestrator events. Handlers run synchronously
// on the orchestrator's goroutine; fragments are delivered strictly in
// arrival order.
type EventHandler func(Event)
