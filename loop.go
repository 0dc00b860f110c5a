package nova

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// DefaultContinuation is the user turn injected when the interrupt
// source has nothing to say, keeping an autonomous session moving.
const DefaultContinuation = "Your Inner voice says you to proceed."

// InterruptSource supplies operator input between cycles. Next blocks
// until input is available; it returns io.EOF when the source is
// exhausted, which ends the loop cleanly.
type InterruptSource interface {
	Next(ctx context.Context) (string, error)
}

// ReaderInterrupts reads one interrupt per line, typically from stdin.
type ReaderInterrupts struct {
	scanner *bufio.Scanner
}

// NewReaderInterrupts wraps r as a line-per-interrupt source.
func NewReaderInterrupts(r io.Reader) *ReaderInterrupts {
	return &ReaderInterrupts{scanner: bufio.NewScanner(r)}
}

// Next returns the next line. A closed reader yields io.EOF.
func (s *ReaderInterrupts) Next(ctx context.Context) (string, error) {
	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		if s.scanner.Scan() {
			ch <- line{text: s.scanner.Text()}
			return
		}
		err := s.scanner.Err()
		if err == nil {
			err = io.EOF
		}
		ch <- line{err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-ch:
		return l.text, l.err
	}
}

// ChannelInterrupts delivers interrupts from a channel. A closed channel
// yields io.EOF.
type ChannelInterrupts struct {
	C chan string
}

// NewChannelInterrupts creates a buffered channel source.
func NewChannelInterrupts(buffer int) *ChannelInterrupts {
	return &ChannelInterrupts{C: make(chan string, buffer)}
}

// Next returns the next queued interrupt.
func (s *ChannelInterrupts) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text, ok := <-s.C:
		if !ok {
			return "", io.EOF
		}
		return text, nil
	}
}

// Controller runs the autonomous cycle: refresh components, rebuild tool
// schemas, collect the next interrupt, and step the orchestrator. Every
// cycle sees the current contents of the component directory.
type Controller struct {
	registry   *Registry
	builder    *SchemaBuilder
	orch       *Orchestrator
	interrupts InterruptSource

	continuation string
	cycles       int
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithContinuation overrides the phrase injected on an empty interrupt.
func WithContinuation(phrase string) ControllerOption {
	return func(c *Controller) {
		if phrase != "" {
			c.continuation = phrase
		}
	}
}

// NewController creates a loop controller.
func NewController(registry *Registry, orch *Orchestrator, interrupts InterruptSource, opts ...ControllerOption) *Controller {
	c := &Controller{
		registry:     registry,
		builder:      NewSchemaBuilder(),
		orch:         orch,
		interrupts:   interrupts,
		continuation: DefaultContinuation,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cycles returns how many cycles have run.
func (c *Controller) Cycles() int {
	return c.cycles
}

// isExit reports whether an interrupt is an exit directive.
func isExit(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "exit", "quit":
		return true
	}
	return false
}

// Run executes cycles until an exit directive, source exhaustion, or
// context cancellation. Component refresh happens strictly between
// cycles, never during one; when the registry is watching its directory,
// refreshes are skipped while nothing has changed. A failed step does not
// end the loop, the cycle's interrupt is simply lost with the rolled-back
// turn.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.shouldRefresh() {
			if err := c.registry.Refresh(); err != nil {
				slog.Error("component refresh failed", "error", err)
			}
			c.registry.LoadAll()
		}

		specs := c.builder.BuildAll(c.registry.ActiveList())

		text, err := c.interrupts.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Info("interrupt source exhausted, ending loop")
				return nil
			}
			return err
		}

		if isExit(text) {
			slog.Info("exit directive received, ending loop")
			return nil
		}
		if strings.TrimSpace(text) == "" {
			text = c.continuation
		}

		c.orch.AppendUserTurn(text)

		if err := c.orch.Step(ctx, specs); err != nil {
			var te *TransportError
			if errors.As(err, &te) {
				slog.Warn("cycle step failed, continuing", "error", err)
				c.cycles++
				continue
			}
			return err
		}

		c.cycles++
	}
}

// shouldRefresh decides whether this cycle re-scans the component
// directory. The first cycle always refreshes; afterwards, a running
// watcher lets clean cycles skip the re-scan.
func (c *Controller) shouldRefresh() bool {
	if c.cycles == 0 {
		return true
	}
	if c.registry.Watching() && !c.registry.Dirty() {
		return false
	}
	return true
}
