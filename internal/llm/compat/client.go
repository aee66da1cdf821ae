package compat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/patient-docs/internal/llm"
)

// Config for a chat/completions endpoint reached over plain HTTP, e.g. a self-hosted
// model server. Such servers often ignore response_format, so JSONMode defaults off and
// replies are scanned for the JSON object.
type Config struct {
	APIKey   string
	BaseURL  string // e.g. http://localhost:11434/v1
	Model    string
	Timeout  time.Duration
	JSONMode bool
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ llm.Completer = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *Client) StrictJSON() bool { return c.cfg.JSONMode }

func (c *Client) Model() string { return c.cfg.Model }

// Complete posts a non-streaming chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	messages := make([]map[string]any, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == llm.RoleModel {
			role = "assistant"
		}
		messages = append(messages, map[string]any{"role": role, "content": m.Content})
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": req.Temperature,
		"stream":      false,
		"messages":    messages,
	}
	if req.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	if err := llm.PostJSON(ctx, c.http, endpoint, body, &cc, headers, c.logger); err != nil {
		return "", fmt.Errorf("compat: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in compat response")
	}
	return cc.Choices[0].Message.Content, nil
}
