package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/patient-docs/constants"
	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/entity"
)

// Document is a rendered, download-ready file.
type Document struct {
	Bytes    []byte
	Filename string
	MIMEType string
	Type     constants.DocType
}

// Error is a failed render. Record is the data that was being rendered.
type Error struct {
	Category constants.ErrorCategory
	Detail   string
	Record   entity.PatientRecord
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// DocumentRenderer fills a template with a record.
type DocumentRenderer interface {
	Render(ctx context.Context, rec entity.PatientRecord, tmpl Template) (Document, error)
}

// Renderer substitutes record fields into {{placeholder}} tokens of DOCX or XLSX templates.
type Renderer struct {
	logger *slog.Logger
}

var _ DocumentRenderer = (*Renderer)(nil)

func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render returns the filled document. On failure no bytes are returned.
func (r *Renderer) Render(ctx context.Context, rec entity.PatientRecord, tmpl Template) (Document, error) {
	start := time.Now()
	rid := common.RequestIDFromContext(ctx)

	if tmpl == nil {
		return r.fail(rid, rec, nil, "no template configured")
	}
	docType := DocTypeOf(tmpl)
	if docType == "" {
		return r.fail(rid, rec, nil, "unsupported template type %q (want .docx or .xlsx)", tmpl.Name())
	}

	data, err := tmpl.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return r.fail(rid, rec, err, "template %q not found; create it with placeholders %s", tmpl.Name(), placeholderHint())
		}
		return r.fail(rid, rec, err, "read template %q: %v", tmpl.Name(), err)
	}

	var out []byte
	switch docType {
	case constants.DOCX:
		out, err = renderDOCX(data, rec)
	case constants.XLSX:
		out, err = renderXLSX(data, rec)
	}
	if err != nil {
		return r.fail(rid, rec, err, "fill template %q: %v", tmpl.Name(), err)
	}
	if len(out) == 0 {
		return r.fail(rid, rec, nil, "template %q produced an empty document", tmpl.Name())
	}

	doc := Document{
		Bytes:    out,
		Filename: SuggestedFilename(rec, docType),
		MIMEType: docType.MIMEType(),
		Type:     docType,
	}
	r.logger.Info("render.ok",
		"req_id", rid,
		"type", docType,
		"bytes", len(out),
		"filename", doc.Filename,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

func (r *Renderer) fail(rid string, rec entity.PatientRecord, err error, format string, args ...any) (Document, error) {
	e := &Error{
		Category: constants.ErrTemplateError,
		Detail:   fmt.Sprintf(format, args...),
		Record:   rec,
		Err:      err,
	}
	r.logger.Error("render.failed", "req_id", rid, "detail", e.Detail)
	return Document{}, e
}

var unsafeFilenameChars = strings.NewReplacer(
	" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// SuggestedFilename derives the download name: the patient name with spaces replaced by
// underscores, then "_document.<ext>". An empty name uses the placeholder label.
func SuggestedFilename(rec entity.PatientRecord, docType constants.DocType) string {
	base := unsafeFilenameChars.Replace(strings.TrimSpace(rec.Name))
	if strings.Trim(base, "_.") == "" {
		base = constants.FilenamePlaceholder
	}
	return base + constants.FilenameSuffix + "." + docType.Ext()
}

func placeholderHint() string {
	parts := make([]string, len(entity.PatientFields))
	for i, k := range entity.PatientFields {
		parts[i] = "{{" + k + "}}"
	}
	return strings.Join(parts, ", ")
}
