package nova

import (
	"strings"
	"sync"

	"github.com/everydev1618/gonova/llm"
)

// Role tags one conversation turn.
type Role string

const (
	// RoleUser is operator input, an interrupt, or a continuation prompt.
	RoleUser Role = "user"
	// RoleModel is backend output: text, a tool-call record, or both.
	RoleModel Role = "model"
	// RoleTool is the textual result of one tool invocation.
	RoleTool Role = "tool"
)

// ToolInvocation records one named tool call with its arguments.
type ToolInvocation struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Segment is one unit of turn content: text, a tool-invocation record, or
// both text and the call the text answers. On a tool turn, Call
// identifies the invocation the text is the result of.
type Segment struct {
	Text string          `json:"text,omitempty"`
	Call *ToolInvocation `json:"call,omitempty"`
}

// Turn is one role-tagged unit of conversation content. Turns are
// immutable once appended, except the single rollback case after a
// backend transport failure.
type Turn struct {
	Role     Role      `json:"role"`
	Segments []Segment `json:"segments"`
}

// TextTurn builds a turn with a single text segment.
func TextTurn(role Role, text string) Turn {
	return Turn{Role: role, Segments: []Segment{{Text: text}}}
}

// CallTurn builds a model turn recording a tool call, optionally preceded
// by the text the model emitted before calling.
func CallTurn(text string, call ToolInvocation) Turn {
	t := Turn{Role: RoleModel}
	if text != "" {
		t.Segments = append(t.Segments, Segment{Text: text})
	}
	t.Segments = append(t.Segments, Segment{Call: &call})
	return t
}

// ResultTurn builds a tool turn carrying the textual result of a call.
func ResultTurn(call ToolInvocation, result string) Turn {
	return Turn{
		Role: RoleTool,
		Segments: []Segment{{
			Text: result,
			Call: &ToolInvocation{ID: call.ID, Name: call.Name},
		}},
	}
}

// Conversation is the append-ordered turn sequence, exclusively owned and
// mutated by the Orchestrator. Its length only grows, except the exact
// single-turn rollback after a transport failure.
type Conversation struct {
	turns []Turn
	mu    sync.RWMutex
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append pushes a turn.
func (c *Conversation) Append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Turns returns a copy of the turn sequence.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Last returns the most recent turn.
func (c *Conversation) Last() (Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// DropLast removes the most recent turn iff its role matches, reporting
// whether a turn was removed. This is the rollback primitive: the
// orchestrator only calls it for the user turn that triggered a failed
// step, and only when that turn is still the most recent.
func (c *Conversation) DropLast(role Role) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.turns) == 0 || c.turns[len(c.turns)-1].Role != role {
		return false
	}
	c.turns = c.turns[:len(c.turns)-1]
	return true
}

// Messages converts the conversation into backend messages. Tool calls
// and results are carried as tool blocks inside message text; tool
// results travel as user-role messages, which is how the backends expect
// them.
func (c *Conversation) Messages(system string) []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	messages := make([]llm.Message, 0, len(c.turns)+1)
	if system != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}

	for _, t := range c.turns {
		switch t.Role {
		case RoleUser:
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: joinText(t.Segments),
			})

		case RoleModel:
			parts := make([]string, 0, len(t.Segments))
			for _, seg := range t.Segments {
				if seg.Call != nil {
					parts = append(parts, llm.FormatToolCall(seg.Call.ID, seg.Call.Name, seg.Call.Args))
					continue
				}
				if seg.Text != "" {
					parts = append(parts, seg.Text)
				}
			}
			messages = append(messages, llm.Message{
				Role:    llm.RoleAssistant,
				Content: strings.Join(parts, "\n"),
			})

		case RoleTool:
			for _, seg := range t.Segments {
				if seg.Call == nil {
					continue
				}
				messages = append(messages, llm.Message{
					Role:    llm.RoleUser,
					Content: llm.FormatToolResult(seg.Call.ID, seg.Call.Name, seg.Text),
				})
			}
		}
	}

	return messages
}

func joinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, "\n")
}
