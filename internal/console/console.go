// Package console renders agent activity to a terminal with color.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Printer writes color-coded agent output to a writer. Methods are safe
// to call from the orchestrator's event handler; nothing here buffers
// beyond the writer.
type Printer struct {
	out io.Writer

	thought *color.Color
	action  *color.Color
	result  *color.Color
	system  *color.Color
	errc    *color.Color

	streaming bool
}

// New creates a printer writing to out.
func New(out io.Writer) *Printer {
	return &Printer{
		out:     out,
		thought: color.New(color.FgWhite),
		action:  color.New(color.FgCyan),
		result:  color.New(color.FgGreen),
		system:  color.New(color.FgYellow),
		errc:    color.New(color.FgRed, color.Bold),
	}
}

// Thought streams a piece of model text as it arrives.
func (p *Printer) Thought(delta string) {
	p.streaming = true
	p.thought.Fprint(p.out, delta)
}

// Action announces a tool invocation.
func (p *Printer) Action(tool string, args map[string]any) {
	p.breakStream()
	p.action.Fprintf(p.out, "▶ %s %s\n", tool, compactArgs(args))
}

// Result renders a tool result, truncated for the terminal.
func (p *Printer) Result(tool, result string, durationMs int64) {
	p.breakStream()
	display := result
	if len(display) > 400 {
		display = display[:400] + "…"
	}
	p.result.Fprintf(p.out, "✔ %s (%dms): %s\n", tool, durationMs, strings.TrimSpace(display))
}

// Systemf prints a runtime status line.
func (p *Printer) Systemf(format string, args ...any) {
	p.breakStream()
	p.system.Fprintf(p.out, format+"\n", args...)
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...any) {
	p.breakStream()
	p.errc.Fprintf(p.out, format+"\n", args...)
}

// Prompt prints the interrupt prompt without a trailing newline.
func (p *Printer) Prompt() {
	p.breakStream()
	p.system.Fprint(p.out, "> ")
}

// breakStream terminates an in-flight thought line before block output.
func (p *Printer) breakStream() {
	if p.streaming {
		fmt.Fprintln(p.out)
		p.streaming = false
	}
}

func compactArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		s := fmt.Sprintf("%v", v)
		if len(s) > 60 {
			s = s[:60] + "…"
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, s))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
