package llm

import (
	"strings"
	"testing"
)

func TestFormatToolCall(t *testing.T) {
	got := FormatToolCall("call_1", "Weather", map[string]any{"city": "Berlin"})
	for _, want := range []string{`id="call_1"`, `name="Weather"`, `"city":"Berlin"`, "</tool_use>"} {
		if !strings.Contains(got, want) {
			t.Errorf("block %q missing %q", got, want)
		}
	}
}

func TestParseToolBlocks(t *testing.T) {
	t.Run("text around a tool_use block", func(t *testing.T) {
		content := "Let me check.\n" + FormatToolCall("c1", "Weather", map[string]any{"city": "Oslo"})
		blocks := parseToolBlocks(content)
		if len(blocks) != 2 {
			t.Fatalf("blocks = %d, want 2: %+v", len(blocks), blocks)
		}

		text := blocks[0].(map[string]any)
		if text["type"] != "text" || text["text"] != "Let me check." {
			t.Errorf("text block = %+v", text)
		}

		use := blocks[1].(map[string]any)
		if use["type"] != "tool_use" || use["id"] != "c1" || use["name"] != "Weather" {
			t.Errorf("tool_use block = %+v", use)
		}
		input := use["input"].(map[string]any)
		if input["city"] != "Oslo" {
			t.Errorf("input = %+v", input)
		}
	})

	t.Run("tool_result block", func(t *testing.T) {
		content := FormatToolResult("c1", "Weather", "sunny, 22C")
		blocks := parseToolBlocks(content)
		if len(blocks) != 1 {
			t.Fatalf("blocks = %d, want 1", len(blocks))
		}

		res := blocks[0].(map[string]any)
		if res["type"] != "tool_result" || res["tool_use_id"] != "c1" || res["content"] != "sunny, 22C" {
			t.Errorf("tool_result block = %+v", res)
		}
	})

	t.Run("multiple blocks in order", func(t *testing.T) {
		content := FormatToolCall("c1", "A", nil) + "\nbetween\n" + FormatToolCall("c2", "B", nil)
		blocks := parseToolBlocks(content)
		if len(blocks) != 3 {
			t.Fatalf("blocks = %d, want 3", len(blocks))
		}
		if blocks[0].(map[string]any)["name"] != "A" || blocks[2].(map[string]any)["name"] != "B" {
			t.Errorf("blocks out of order: %+v", blocks)
		}
	})

	t.Run("plain text passes through", func(t *testing.T) {
		blocks := parseToolBlocks("no tools here")
		if len(blocks) != 1 || blocks[0].(map[string]any)["text"] != "no tools here" {
			t.Errorf("blocks = %+v", blocks)
		}
	})

	t.Run("unterminated block is dropped", func(t *testing.T) {
		blocks := parseToolBlocks(`<tool_use id="c1" name="X">{"a":1}`)
		if len(blocks) != 0 {
			t.Errorf("blocks = %+v, want none", blocks)
		}
	})
}

func TestExtractAttr(t *testing.T) {
	tests := []struct {
		tag  string
		attr string
		want string
	}{
		{`<tool_use id="abc" name="foo"`, "id", "abc"},
		{`<tool_use id="abc" name="foo"`, "name", "foo"},
		{`<tool_use id="abc"`, "missing", ""},
		{`<tool_use id="unclosed`, "id", ""},
	}
	for _, tt := range tests {
		if got := extractAttr(tt.tag, tt.attr); got != tt.want {
			t.Errorf("extractAttr(%q, %q) = %q, want %q", tt.tag, tt.attr, got, tt.want)
		}
	}
}
