package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/entity"
	"github.com/joseph-ayodele/patient-docs/internal/extract"
	"github.com/joseph-ayodele/patient-docs/internal/render"
)

// ErrEmptyInput is returned before any model call when the submitted text is blank.
var ErrEmptyInput = errors.New("please enter some patient information")

// Result is a successful generate: the structured record and its document.
type Result struct {
	RequestID string
	Record    entity.PatientRecord
	Document  render.Document
}

// Processor coordinates extraction (text -> record) then rendering (record -> document).
type Processor struct {
	Logger    *slog.Logger
	Extractor extract.RecordExtractor
	Renderer  render.DocumentRenderer
	Template  render.Template
}

func NewProcessor(logger *slog.Logger, x extract.RecordExtractor, r render.DocumentRenderer, tmpl render.Template) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Extractor: x, Renderer: r, Template: tmpl}
}

// Extract runs only the extraction stage.
func (p *Processor) Extract(ctx context.Context, text string) (entity.PatientRecord, error) {
	if strings.TrimSpace(text) == "" {
		return entity.PatientRecord{}, ErrEmptyInput
	}
	return p.Extractor.Extract(withRequestID(ctx), text)
}

// Render runs only the rendering stage against the configured template.
func (p *Processor) Render(ctx context.Context, rec entity.PatientRecord) (render.Document, error) {
	return p.Renderer.Render(withRequestID(ctx), rec, p.Template)
}

// Generate extracts a record from text and renders it. The returned error is
// ErrEmptyInput, an *extract.Error or a *render.Error.
func (p *Processor) Generate(ctx context.Context, text string) (Result, error) {
	ctx = withRequestID(ctx)
	rid := common.RequestIDFromContext(ctx)
	sid := common.SessionIDFromContext(ctx)
	start := time.Now()

	rec, err := p.Extract(ctx, text)
	if err != nil {
		p.Logger.Error("processor.extract.failed", "req_id", rid, "session_id", sid, "err", err)
		return Result{RequestID: rid}, err
	}

	doc, err := p.Render(ctx, rec)
	if err != nil {
		p.Logger.Error("processor.render.failed", "req_id", rid, "session_id", sid, "err", err)
		return Result{RequestID: rid, Record: rec}, err
	}

	p.Logger.Info("processor.generate.ok",
		"req_id", rid,
		"session_id", sid,
		"filename", doc.Filename,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{RequestID: rid, Record: rec, Document: doc}, nil
}

func withRequestID(ctx context.Context) context.Context {
	if common.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	return common.WithRequestID(ctx, uuid.New().String())
}
