package llm

import (
	"encoding/json"
	"strings"
)

// Tool activity is carried inside message text as XML-ish blocks so that
// callers can keep a flat []Message history. Backends that want structured
// content (Anthropic) decode these blocks back into API content blocks;
// backends that accept plain text pass them through unchanged.

// FormatToolCall renders a tool call as a <tool_use> block for an
// assistant message.
func FormatToolCall(id, name string, args map[string]any) string {
	argsJSON, _ := json.Marshal(args)
	return "<tool_use id=\"" + id + "\" name=\"" + name + "\">\n" + string(argsJSON) + "\n</tool_use>"
}

// FormatToolResult renders a tool result as a <tool_result> block for a
// user message.
func FormatToolResult(id, name, result string) string {
	return "<tool_result tool_use_id=\"" + id + "\" name=\"" + name + "\">\n" + result + "\n</tool_result>"
}

// parseToolBlocks converts message text containing tool_use/tool_result
// blocks into structured Anthropic content blocks for API requests.
// Returns []any where each element is a map with exactly the fields the API
// expects for that block type (text, tool_use, or tool_result).
func parseToolBlocks(content string) []any {
	var blocks []any

	remaining := content
	for remaining != "" {
		toolUseIdx := strings.Index(remaining, "<tool_use ")
		toolResultIdx := strings.Index(remaining, "<tool_result ")

		nextIdx := -1
		isToolUse := false
		if toolUseIdx >= 0 && (toolResultIdx < 0 || toolUseIdx < toolResultIdx) {
			nextIdx = toolUseIdx
			isToolUse = true
		} else if toolResultIdx >= 0 {
			nextIdx = toolResultIdx
		}

		if nextIdx < 0 {
			text := strings.TrimSpace(remaining)
			if text != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": text})
			}
			break
		}

		if nextIdx > 0 {
			text := strings.TrimSpace(remaining[:nextIdx])
			if text != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": text})
			}
		}

		if isToolUse {
			block, rest := parseToolUseBlock(remaining[nextIdx:])
			if block != nil {
				blocks = append(blocks, block)
			}
			remaining = rest
		} else {
			block, rest := parseToolResultBlock(remaining[nextIdx:])
			if block != nil {
				blocks = append(blocks, block)
			}
			remaining = rest
		}
	}

	return blocks
}

// parseToolUseBlock extracts a tool_use block from text like:
// <tool_use id="..." name="...">\njson\n</tool_use>
func parseToolUseBlock(s string) (map[string]any, string) {
	endTag := "</tool_use>"
	endIdx := strings.Index(s, endTag)
	if endIdx < 0 {
		return nil, ""
	}

	tagEnd := strings.Index(s, ">")
	if tagEnd < 0 || tagEnd > endIdx {
		return nil, s[endIdx+len(endTag):]
	}

	openTag := s[:tagEnd]
	id := extractAttr(openTag, "id")
	name := extractAttr(openTag, "name")
	jsonBody := strings.TrimSpace(s[tagEnd+1 : endIdx])

	input := map[string]any{}
	if jsonBody != "" {
		json.Unmarshal([]byte(jsonBody), &input)
	}

	block := map[string]any{
		"type":  "tool_use",
		"id":    id,
		"name":  name,
		"input": input,
	}

	return block, s[endIdx+len(endTag):]
}

// parseToolResultBlock extracts a tool_result block from text like:
// <tool_result tool_use_id="..." name="...">\ncontent\n</tool_result>
func parseToolResultBlock(s string) (map[string]any, string) {
	endTag := "</tool_result>"
	endIdx := strings.Index(s, endTag)
	if endIdx < 0 {
		return nil, ""
	}

	tagEnd := strings.Index(s, ">")
	if tagEnd < 0 || tagEnd > endIdx {
		return nil, s[endIdx+len(endTag):]
	}

	openTag := s[:tagEnd]
	toolUseID := extractAttr(openTag, "tool_use_id")
	resultContent := strings.TrimSpace(s[tagEnd+1 : endIdx])

	block := map[string]any{
		"type":        "tool_result",
		"tool_use_id": toolUseID,
		"content":     resultContent,
	}

	return block, s[endIdx+len(endTag):]
}

// extractAttr extracts an attribute value from an XML-like tag string.
// e.g. extractAttr(`<tool_use id="abc" name="foo"`, "id") yields "abc".
func extractAttr(tag, attr string) string {
	needle := attr + `="`
	idx := strings.Index(tag, needle)
	if idx < 0 {
		return ""
	}
	start := idx + len(needle)
	end := strings.Index(tag[start:], `"`)
	if end < 0 {
		return ""
	}
	return tag[start : start+end]
}
