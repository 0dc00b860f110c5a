package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicBuildRequest(t *testing.T) {
	a := NewAnthropic(WithAPIKey("test"))

	t.Run("system message becomes the system field", func(t *testing.T) {
		req := a.buildRequest([]Message{
			{Role: RoleSystem, Content: "be terse"},
			{Role: RoleUser, Content: "hi"},
		}, nil, false)

		if req.System != "be terse" {
			t.Errorf("system = %q", req.System)
		}
		if len(req.Messages) != 1 {
			t.Fatalf("messages = %d, want 1", len(req.Messages))
		}
	})

	t.Run("tool blocks convert to structured content", func(t *testing.T) {
		content := "Checking.\n" + FormatToolCall("c1", "Weather", map[string]any{"city": "Oslo"})
		req := a.buildRequest([]Message{
			{Role: RoleAssistant, Content: content},
			{Role: RoleUser, Content: FormatToolResult("c1", "Weather", "sunny")},
		}, nil, false)

		blocks, ok := req.Messages[0].Content.([]any)
		if !ok || len(blocks) != 2 {
			t.Fatalf("assistant content = %+v, want 2 blocks", req.Messages[0].Content)
		}
		if blocks[1].(map[string]any)["type"] != "tool_use" {
			t.Errorf("second block = %+v", blocks[1])
		}

		resBlocks, ok := req.Messages[1].Content.([]any)
		if !ok || resBlocks[0].(map[string]any)["type"] != "tool_result" {
			t.Fatalf("user content = %+v", req.Messages[1].Content)
		}
	})

	t.Run("tool schemas are forwarded", func(t *testing.T) {
		req := a.buildRequest(nil, []ToolSchema{
			{Name: "Echo", Description: "echoes", InputSchema: map[string]any{"type": "object"}},
		}, true)

		if len(req.Tools) != 1 || req.Tools[0].Name != "Echo" {
			t.Errorf("tools = %+v", req.Tools)
		}
		if !req.Stream {
			t.Error("stream flag not set")
		}
	})
}

func TestAnthropicGenerateStream(t *testing.T) {
	sse := strings.Join([]string{
		`event: message_start`,
		`data: {"message":{"usage":{"input_tokens":12}}}`,
		``,
		`event: content_block_start`,
		`data: {"content_block":{"type":"text"}}`,
		``,
		`event: content_block_delta`,
		`data: {"delta":{"type":"text_delta","text":"Hello"}}`,
		``,
		`event: content_block_stop`,
		`data: {}`,
		``,
		`event: content_block_start`,
		`data: {"content_block":{"type":"tool_use","id":"toolu_1","name":"Weather"}}`,
		``,
		`event: content_block_delta`,
		`data: {"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
		``,
		`event: content_block_delta`,
		`data: {"delta":{"type":"input_json_delta","partial_json":"\"Oslo\"}"}}`,
		``,
		`event: content_block_stop`,
		`data: {}`,
		``,
		`event: message_delta`,
		`data: {"usage":{"output_tokens":7}}`,
		``,
		`event: message_stop`,
		`data: {}`,
		``,
	}, "\n")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sse))
	}))
	defer ts.Close()

	a := NewAnthropic(WithAPIKey("test-key"), WithBaseURL(ts.URL))
	ch, err := a.GenerateStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}

	wantTypes := []StreamEventType{
		StreamEventMessageStart,
		StreamEventContentStart,
		StreamEventContentDelta,
		StreamEventContentEnd,
		StreamEventToolStart,
		StreamEventToolDelta,
		StreamEventToolDelta,
		StreamEventContentEnd,
		StreamEventMessageEnd,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("events = %d, want %d: %+v", len(events), len(wantTypes), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d = %v, want %v", i, events[i].Type, want)
		}
	}

	if events[0].InputTokens != 12 {
		t.Errorf("input tokens = %d", events[0].InputTokens)
	}
	if events[2].Delta != "Hello" {
		t.Errorf("delta = %q", events[2].Delta)
	}
	if tc := events[4].ToolCall; tc == nil || tc.ID != "toolu_1" || tc.Name != "Weather" {
		t.Errorf("tool call = %+v", events[4].ToolCall)
	}
	if events[5].Delta+events[6].Delta != `{"city":"Oslo"}` {
		t.Errorf("accumulated json = %q", events[5].Delta+events[6].Delta)
	}
	if events[8].OutputTokens != 7 {
		t.Errorf("output tokens = %d", events[8].OutputTokens)
	}
}

func TestAnthropicGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "claude-sonnet-4-20250514",
			"content": [
				{"type": "text", "text": "It is "},
				{"type": "text", "text": "sunny."}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 100, "output_tokens": 10}
		}`))
	}))
	defer ts.Close()

	a := NewAnthropic(WithAPIKey("test-key"), WithBaseURL(ts.URL))
	resp, err := a.Generate(context.Background(), []Message{{Role: RoleUser, Content: "weather?"}}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if resp.Content != "It is sunny." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.StopReason != StopReasonEnd {
		t.Errorf("stop reason = %v", resp.StopReason)
	}
	if resp.InputTokens != 100 || resp.OutputTokens != 10 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if resp.CostUSD <= 0 {
		t.Errorf("cost = %v, want positive for a known model", resp.CostUSD)
	}
}

func TestAnthropicValidateKey(t *testing.T) {
	t.Run("empty key fails immediately", func(t *testing.T) {
		a := NewAnthropic(WithAPIKey(""))
		if err := a.ValidateKey(context.Background()); err == nil {
			t.Fatal("expected error for empty key")
		}
	})

	t.Run("401 reports an invalid key", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"authentication_error"}}`, http.StatusUnauthorized)
		}))
		defer ts.Close()

		a := NewAnthropic(WithAPIKey("bad"), WithBaseURL(ts.URL))
		err := a.ValidateKey(context.Background())
		if err == nil || !strings.Contains(err.Error(), "invalid API key") {
			t.Fatalf("err = %v, want invalid API key", err)
		}
	})
}

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		model  string
		in     int
		out    int
		want   float64
		isZero bool
	}{
		{"claude-sonnet-4-20250514", 1_000_000, 1_000_000, 18.0, false},
		{"gemini-2.0-flash", 1_000_000, 0, 0.10, false},
		{"unknown-model", 1_000_000, 1_000_000, 0, true},
	}
	for _, tt := range tests {
		got := CalculateCost(tt.model, tt.in, tt.out)
		if tt.isZero && got != 0 {
			t.Errorf("cost(%s) = %v, want 0", tt.model, got)
		}
		if !tt.isZero && (got < tt.want-0.001 || got > tt.want+0.001) {
			t.Errorf("cost(%s) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
