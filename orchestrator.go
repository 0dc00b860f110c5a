package nova

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/everydev1618/gonova/llm"
)

// DefaultBackoff is how long a failed step pauses before the caller may
// try again.
const DefaultBackoff = 5 * time.Second

// Usage accumulates token counts across every exchange of a session.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Orchestrator drives one model exchange cycle: send the conversation,
// stream the response, execute tool calls as they resolve, and feed the
// results back to the model until it produces a final answer. It is the
// sole owner of the conversation state.
type Orchestrator struct {
	backend  llm.LLM
	registry *Registry
	limiter  *RateLimiter

	conv   *Conversation
	system string

	events  EventHandler
	backoff time.Duration
	wait    func(ctx context.Context, d time.Duration) error

	transcript *TranscriptStore
	session    string

	usage Usage
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSystemPrompt sets the system prompt prepended to every request.
func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.system = prompt
	}
}

// WithEvents sets the handler receiving step events. The handler runs
// synchronously on the orchestrator goroutine.
func WithEvents(h EventHandler) OrchestratorOption {
	return func(o *Orchestrator) {
		o.events = h
	}
}

// WithBackoff sets the pause taken after a transport failure.
func WithBackoff(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.backoff = d
		}
	}
}

// WithTranscript persists every committed turn of the given session to
// the store, and removes the rolled-back turn on failure.
func WithTranscript(store *TranscriptStore, session string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.transcript = store
		o.session = session
	}
}

// NewOrchestrator creates an orchestrator over a backend, a component
// registry, and a rate limiter.
func NewOrchestrator(backend llm.LLM, registry *Registry, limiter *RateLimiter, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		backend:  backend,
		registry: registry,
		limiter:  limiter,
		conv:     NewConversation(),
		backoff:  DefaultBackoff,
		wait:     sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Conversation exposes the conversation state for inspection.
func (o *Orchestrator) Conversation() *Conversation {
	return o.conv
}

// Usage returns accumulated token counts.
func (o *Orchestrator) Usage() Usage {
	return o.usage
}

// AppendUserTurn appends a user turn without contacting the backend.
func (o *Orchestrator) AppendUserTurn(text string) {
	o.commit(TextTurn(RoleUser, text))
}

// Step runs one full cycle against the most recently appended user turn.
// The cycle only ends when the model responds without requesting another
// tool call; there is no depth cap on chained calls. On a transport
// failure Step rolls the triggering user turn back, restoring the
// conversation to its exact pre-call state, pauses for the backoff, and
// returns a TransportError. Tool execution failures are not failures of
// the step; they travel back to the model as result text.
func (o *Orchestrator) Step(ctx context.Context, specs []llm.ToolSchema) error {
	base := o.conv.Len()

	if err := o.exchange(ctx, specs); err != nil {
		if o.conv.Len() == base && o.conv.DropLast(RoleUser) {
			o.uncommit()
			slog.Warn("backend call failed, rolled back user turn", "error", err)
		} else {
			slog.Warn("backend call failed mid-step, conversation kept", "error", err)
		}
		o.emit(Event{Type: EventError, Err: err.Error()})
		if werr := o.wait(ctx, o.backoff); werr != nil {
			return werr
		}
		return &TransportError{Err: err}
	}

	o.emit(Event{Type: EventStepDone})
	return nil
}

// exchange performs one backend request and consumes its stream. Each
// resolved tool call is executed immediately and followed by a recursive
// exchange so the model can react to the result before this stream's
// remaining fragments are read.
func (o *Orchestrator) exchange(ctx context.Context, specs []llm.ToolSchema) error {
	if err := o.limiter.Acquire(ctx); err != nil {
		return err
	}

	stream, err := o.backend.GenerateStream(ctx, o.conv.Messages(o.system), specs)
	if err != nil {
		return err
	}

	var text strings.Builder
	var pending *llm.ToolCall
	var pendingJSON strings.Builder

	for ev := range stream {
		switch ev.Type {
		case llm.StreamEventMessageStart:
			o.usage.InputTokens += ev.InputTokens

		case llm.StreamEventContentDelta:
			text.WriteString(ev.Delta)
			o.emit(Event{Type: EventTextDelta, Delta: ev.Delta})

		case llm.StreamEventToolStart:
			if ev.ToolCall != nil {
				call := *ev.ToolCall
				pending = &call
				pendingJSON.Reset()
			}

		case llm.StreamEventToolDelta:
			pendingJSON.WriteString(ev.Delta)

		case llm.StreamEventContentEnd:
			if pending == nil {
				continue
			}
			call := o.resolveCall(pending, pendingJSON.String())
			pending = nil
			pendingJSON.Reset()

			o.commit(CallTurn(text.String(), call))
			text.Reset()

			if err := o.runTool(ctx, call); err != nil {
				return err
			}
			if err := o.exchange(ctx, specs); err != nil {
				return err
			}

		case llm.StreamEventMessageEnd:
			o.usage.OutputTokens += ev.OutputTokens

		case llm.StreamEventError:
			return ev.Error
		}
	}

	if text.Len() > 0 {
		o.commit(TextTurn(RoleModel, text.String()))
	}
	return nil
}

// resolveCall finalizes a streamed tool call: accumulated argument JSON
// takes precedence over arguments delivered on the start fragment, and a
// missing call ID gets a generated one.
func (o *Orchestrator) resolveCall(tc *llm.ToolCall, argJSON string) ToolInvocation {
	args := tc.Arguments
	if strings.TrimSpace(argJSON) != "" {
		parsed := map[string]any{}
		if err := json.Unmarshal([]byte(argJSON), &parsed); err != nil {
			slog.Warn("malformed tool arguments, passing raw", "tool", tc.Name, "error", err)
			parsed = map[string]any{"_raw": argJSON}
		}
		args = parsed
	}
	if args == nil {
		args = map[string]any{}
	}

	id := tc.ID
	if id == "" {
		id = "call_" + uuid.NewString()[:8]
	}

	return ToolInvocation{ID: id, Name: tc.Name, Args: args}
}

// runTool executes one tool call and commits its result turn. Execution
// errors become result text addressed to the model, never a step failure.
func (o *Orchestrator) runTool(ctx context.Context, call ToolInvocation) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	o.emit(Event{Type: EventToolStart, CallID: call.ID, Tool: call.Name, Args: call.Args})

	start := time.Now()
	result, err := o.registry.Use(ctx, call.Name, call.Args)
	elapsed := time.Since(start)

	if err != nil {
		result = fmt.Sprintf("Error: %v", err)
		slog.Warn("tool execution failed", "tool", call.Name, "error", err)
	}

	o.commit(ResultTurn(call, result))
	o.emit(Event{
		Type:       EventToolEnd,
		CallID:     call.ID,
		Tool:       call.Name,
		Result:     result,
		DurationMs: elapsed.Milliseconds(),
	})
	return nil
}

// commit appends a turn and persists it when a transcript is attached.
func (o *Orchestrator) commit(t Turn) {
	o.conv.Append(t)
	if o.transcript != nil {
		if err := o.transcript.AppendTurn(o.session, t); err != nil {
			slog.Warn("transcript append failed", "error", err)
		}
	}
}

// uncommit removes the most recently persisted turn after a rollback.
func (o *Orchestrator) uncommit() {
	if o.transcript == nil {
		return
	}
	if err := o.transcript.DeleteLastTurn(o.session); err != nil {
		slog.Warn("transcript rollback failed", "error", err)
	}
}

func (o *Orchestrator) emit(e Event) {
	if o.events != nil {
		o.events(e)
	}
}
