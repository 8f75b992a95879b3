package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config configures the HTTP client.
type Config struct {
	// BaseURL of the provider, without trailing slash.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey sent as a Bearer token.
	APIKey string `json:"-" yaml:"-"`

	// Model identifier for all calls.
	Model string `json:"model" yaml:"model"`

	// ReasoningEffort requested from the provider. Default: "high".
	ReasoningEffort string `json:"reasoning_effort" yaml:"reasoning_effort"`

	// Verbosity requested for generated text. Default: "medium".
	Verbosity string `json:"verbosity" yaml:"verbosity"`

	// Timeout for one call. Generation calls can be slow; the provider's
	// own limit applies on top. Default: 120s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Logger for call diagnostics.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.ReasoningEffort == "" {
		c.ReasoningEffort = "high"
	}
	if c.Verbosity == "" {
		c.Verbosity = "medium"
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client talks to an OpenAI-responses-compatible endpoint.
// It implements both Generator and Searcher.
type Client struct {
	client *http.Client
	config Config
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model        string           `json:"model"`
	Input        []message        `json:"input"`
	Instructions string           `json:"instructions,omitempty"`
	Reasoning    map[string]any   `json:"reasoning,omitempty"`
	Text         map[string]any   `json:"text,omitempty"`
	Tools        []map[string]any `json:"tools,omitempty"`
}

type responsesReply struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends one generation call and returns the trimmed output text.
func (c *Client) Generate(ctx context.Context, instructions, input string) (string, error) {
	req := responsesRequest{
		Model:        c.config.Model,
		Input:        []message{{Role: "developer", Content: input}},
		Instructions: instructions,
		Reasoning:    map[string]any{"effort": c.config.ReasoningEffort},
		Text:         map[string]any{"verbosity": c.config.Verbosity},
	}
	text, err := c.call(ctx, req)
	if err != nil {
		return "", &GenerationError{Op: "generate", Err: err}
	}
	return text, nil
}

// Search sends one web-search-enabled call and returns the raw output text.
func (c *Client) Search(ctx context.Context, prompt string) (string, error) {
	req := responsesRequest{
		Model: c.config.Model,
		Input: []message{{Role: "user", Content: prompt}},
		Tools: []map[string]any{{"type": "web_search"}},
	}
	text, err := c.call(ctx, req)
	if err != nil {
		return "", &GenerationError{Op: "search", Err: err}
	}
	return text, nil
}

func (c *Client) call(ctx context.Context, req responsesRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/v1/responses", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	c.config.Logger.Debug("genai: call done",
		"model", c.config.Model,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var reply responsesReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if reply.Error != nil {
		return "", fmt.Errorf("provider error: %s", reply.Error.Message)
	}

	if text := strings.TrimSpace(reply.OutputText); text != "" {
		return text, nil
	}

	// Fall back to assembling the output array.
	var sb strings.Builder
	for _, out := range reply.Output {
		for _, part := range out.Content {
			if part.Type == "output_text" || part.Type == "text" {
				sb.WriteString(part.Text)
			}
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("empty output")
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
