package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GeminiLLM is an LLM implementation using the Google Gemini API.
// Unlike Anthropic, Gemini delivers complete tool-call arguments in a
// single stream fragment, so tool events carry their arguments on
// ToolStart and emit no ToolDelta events.
type GeminiLLM struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
}

// GeminiOption configures the Gemini client.
type GeminiOption func(*GeminiLLM)

// WithGeminiAPIKey sets the API key.
func WithGeminiAPIKey(key string) GeminiOption {
	return func(g *GeminiLLM) {
		g.apiKey = key
	}
}

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(g *GeminiLLM) {
		g.model = model
	}
}

// WithGeminiBaseURL sets the API base URL.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(g *GeminiLLM) {
		g.baseURL = url
	}
}

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(g *GeminiLLM) {
		g.httpClient = client
	}
}

// Default Gemini configuration values
const (
	DefaultGeminiTimeout = 5 * time.Minute
	DefaultGeminiModel   = "gemini-1.5-flash-latest"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
)

// NewGemini creates a new Gemini LLM client. The API key defaults to the
// GEMINI_API_KEY environment variable.
func NewGemini(opts ...GeminiOption) *GeminiLLM {
	g := &GeminiLLM{
		apiKey:  os.Getenv("GEMINI_API_KEY"),
		baseURL: DefaultGeminiBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultGeminiTimeout,
		},
		model: DefaultGeminiModel,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// geminiRequest is the generateContent request format.
type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []geminiTools   `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiTools struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// geminiResponse is one generateContent response (or stream chunk).
type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ValidateKey makes a minimal API call to verify the API key is valid.
func (g *GeminiLLM) ValidateKey(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("API key is empty")
	}

	req := &geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: "hi"}}}},
	}

	_, err := g.doRequest(ctx, req)
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "400") || strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "api key") || strings.Contains(errStr, "permission") {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return fmt.Errorf("could not reach Gemini API: %w", err)
}

// Generate sends a request and returns the complete response.
func (g *GeminiLLM) Generate(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	start := time.Now()

	req := g.buildRequest(messages, tools)

	resp, err := g.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	return g.parseResponse(resp, time.Since(start)), nil
}

// GenerateStream sends a request and returns a channel of streaming events.
func (g *GeminiLLM) GenerateStream(ctx context.Context, messages []Message, tools []ToolSchema) (<-chan StreamEvent, error) {
	req := g.buildRequest(messages, tools)

	eventCh := make(chan StreamEvent, 100)

	go func() {
		defer close(eventCh)

		const maxRetries = 5
		for attempt := 0; attempt <= maxRetries; attempt++ {
			httpReq, err := g.createHTTPRequest(ctx, req, true)
			if err != nil {
				eventCh <- StreamEvent{Type: StreamEventError, Error: err}
				return
			}

			httpResp, err := g.httpClient.Do(httpReq)
			if err != nil {
				eventCh <- StreamEvent{Type: StreamEventError, Error: err}
				return
			}

			if httpResp.StatusCode == http.StatusOK {
				g.parseSSE(httpResp.Body, eventCh)
				httpResp.Body.Close()
				return
			}

			body, _ := io.ReadAll(httpResp.Body)

			// Retry on 429 (quota) and 503 (overloaded).
			if (httpResp.StatusCode == 429 || httpResp.StatusCode == 503) && attempt < maxRetries {
				wait := retryAfterDelay(httpResp, attempt)
				slog.Warn("Gemini API rate limited (stream), retrying", "status", httpResp.StatusCode, "attempt", attempt+1, "wait", wait)
				httpResp.Body.Close()
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					eventCh <- StreamEvent{Type: StreamEventError, Error: ctx.Err()}
					return
				}
			}

			httpResp.Body.Close()
			eventCh <- StreamEvent{
				Type:  StreamEventError,
				Error: fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(body)),
			}
			return
		}

		eventCh <- StreamEvent{Type: StreamEventError, Error: fmt.Errorf("max retries exceeded")}
	}()

	return eventCh, nil
}

func (g *GeminiLLM) buildRequest(messages []Message, tools []ToolSchema) *geminiRequest {
	req := &geminiRequest{}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			req.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: msg.Content}},
			}
		case RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		default:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		}
	}

	if len(tools) > 0 {
		decls := make([]geminiFunctionDecl, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, geminiFunctionDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			})
		}
		req.Tools = []geminiTools{{FunctionDeclarations: decls}}
	}

	return req
}

func (g *GeminiLLM) createHTTPRequest(ctx context.Context, req *geminiRequest, stream bool) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	method := "generateContent"
	query := ""
	if stream {
		method = "streamGenerateContent"
		query = "?alt=sse"
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:%s%s", g.baseURL, g.model, method, query)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	return httpReq, nil
}

func (g *GeminiLLM) doRequest(ctx context.Context, req *geminiRequest) (*geminiResponse, error) {
	const maxRetries = 5

	for attempt := 0; attempt <= maxRetries; attempt++ {
		httpReq, err := g.createHTTPRequest(ctx, req, false)
		if err != nil {
			return nil, err
		}

		httpResp, err := g.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}

		body, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if httpResp.StatusCode == http.StatusOK {
			var resp geminiResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
			if resp.Error != nil {
				return nil, fmt.Errorf("API error %d: %s", resp.Error.Code, resp.Error.Message)
			}
			return &resp, nil
		}

		if (httpResp.StatusCode == 429 || httpResp.StatusCode == 503) && attempt < maxRetries {
			wait := retryAfterDelay(httpResp, attempt)
			slog.Warn("Gemini API rate limited, retrying", "status", httpResp.StatusCode, "attempt", attempt+1, "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(body))
	}

	return nil, fmt.Errorf("max retries exceeded")
}

func (g *GeminiLLM) parseResponse(resp *geminiResponse, latency time.Duration) *Response {
	result := &Response{
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		LatencyMs:    latency.Milliseconds(),
		StopReason:   StopReasonEnd,
	}

	result.CostUSD = CalculateCost(g.model, result.InputTokens, result.OutputTokens)

	if len(resp.Candidates) == 0 {
		return result
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == "MAX_TOKENS" {
		result.StopReason = StopReasonLength
	}

	for _, part := range cand.Content.Parts {
		if part.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        newCallID(),
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
			result.StopReason = StopReasonToolUse
			continue
		}
		result.Content += part.Text
	}

	return result
}

// parseSSE reads Gemini stream chunks. Each data line is a complete
// geminiResponse JSON object.
func (g *GeminiLLM) parseSSE(reader io.Reader, eventCh chan<- StreamEvent) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	started := false
	outputTokens := 0

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			eventCh <- StreamEvent{Type: StreamEventError, Error: fmt.Errorf("unmarshal chunk: %w", err)}
			return
		}

		if chunk.Error != nil {
			eventCh <- StreamEvent{
				Type:  StreamEventError,
				Error: fmt.Errorf("stream error %d: %s", chunk.Error.Code, chunk.Error.Message),
			}
			return
		}

		if !started {
			started = true
			eventCh <- StreamEvent{
				Type:        StreamEventMessageStart,
				InputTokens: chunk.UsageMetadata.PromptTokenCount,
			}
		}
		if chunk.UsageMetadata.CandidatesTokenCount > 0 {
			outputTokens = chunk.UsageMetadata.CandidatesTokenCount
		}

		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				if part.FunctionCall != nil {
					// Arguments arrive complete; signal start and end with
					// no intervening deltas.
					eventCh <- StreamEvent{
						Type: StreamEventToolStart,
						ToolCall: &ToolCall{
							ID:        newCallID(),
							Name:      part.FunctionCall.Name,
							Arguments: part.FunctionCall.Args,
						},
					}
					eventCh <- StreamEvent{Type: StreamEventContentEnd}
					continue
				}
				if part.Text != "" {
					eventCh <- StreamEvent{
						Type:  StreamEventContentDelta,
						Delta: part.Text,
					}
				}
			}
		}
	}

	eventCh <- StreamEvent{Type: StreamEventMessageEnd, OutputTokens: outputTokens}
}

// newCallID generates an ID for tool calls on backends that don't assign one.
func newCallID() string {
	return "call_" + uuid.NewString()[:8]
}
