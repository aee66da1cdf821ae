package gemini

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	APIKey   string // if empty, falls back to env GEMINI_API_KEY
	BaseURL  string // optional endpoint override
	Model    string // e.g., "gemini-2.5-flash"
	Timeout  time.Duration
	JSONMode bool // response_mime_type application/json
	// ThinkingBudget is sent when non-nil; 0 turns thinking off on models that allow it.
	ThinkingBudget *int32
}

// generator is the slice of *genai.Models the client uses.
type generator interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type Client struct {
	cfg    Config
	models generator
	logger *slog.Logger
}

var _ llm.Completer = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newClient(cfg, gc.Models, logger), nil
}

func newClient(cfg Config, models generator, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, models: models, logger: logger}
}

func (c *Client) StrictJSON() bool { return c.cfg.JSONMode }

func (c *Client) Model() string { return c.cfg.Model }

// Complete streams generate_content and concatenates the text of every chunk in order.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == llm.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	gcfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(req.Temperature),
		ThinkingConfig: thinkingConfig(c.cfg.ThinkingBudget),
	}
	if req.System != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONMode {
		gcfg.ResponseMIMEType = "application/json"
	}

	c.logger.Info("llm.gemini.request",
		"req_id", rid,
		"model", c.cfg.Model,
		"contents", len(contents),
		"json_mode", req.JSONMode,
	)

	var b strings.Builder
	fragments := 0
	for chunk, err := range c.models.GenerateContentStream(ctx, c.cfg.Model, contents, gcfg) {
		if err != nil {
			c.logger.Error("llm.gemini.stream_error",
				"req_id", rid, "error", err, "fragments", fragments,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		if chunk == nil {
			continue
		}
		b.WriteString(chunk.Text())
		fragments++
	}

	c.logger.Info("llm.gemini.response",
		"req_id", rid,
		"fragments", fragments,
		"bytes", b.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b.String(), nil
}

func thinkingConfig(budget *int32) *genai.ThinkingConfig {
	if budget == nil {
		return nil
	}
	return &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(*budget)}
}
