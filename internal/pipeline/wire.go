package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/extract"
	"github.com/joseph-ayodele/patient-docs/internal/llm"
	"github.com/joseph-ayodele/patient-docs/internal/llm/compat"
	"github.com/joseph-ayodele/patient-docs/internal/llm/gemini"
	"github.com/joseph-ayodele/patient-docs/internal/llm/openai"
	"github.com/joseph-ayodele/patient-docs/internal/render"
)

// NewCompleter builds the completion client named by cfg.Provider.
func NewCompleter(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, error) {
	switch cfg.Provider {
	case common.ProviderGemini:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Timeout:        cfg.Timeout,
			JSONMode:       cfg.JSONMode,
			ThinkingBudget: genai.Ptr[int32](0),
		}, logger)
	case common.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Timeout:  cfg.Timeout,
			JSONMode: cfg.JSONMode,
		}, logger), nil
	case common.ProviderCompat:
		return compat.NewClient(compat.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Timeout:  cfg.Timeout,
			JSONMode: cfg.JSONMode,
		}, logger), nil
	}
	return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown llm.provider %q", cfg.Provider), common.ErrInvalidInput)
}

// NewFromConfig wires completer, extractor, renderer and the file template.
// A missing template is logged, not fatal; every render then reports TEMPLATE_ERROR.
func NewFromConfig(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Processor, llm.Completer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	completer, err := NewCompleter(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, nil, err
	}

	tmpl := render.FileTemplate{Path: cfg.Template.Path}
	if !tmpl.Exists() {
		logger.Warn("template.missing", "path", tmpl.Path)
	}

	proc := NewProcessor(logger, extract.NewExtractor(completer, logger), render.NewRenderer(logger), tmpl)
	return proc, completer, nil
}
