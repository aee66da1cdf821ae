package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/patient-docs/constants"
	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/entity"
	"github.com/joseph-ayodele/patient-docs/internal/llm"
)

// Extractor sends the fixed prompt through a Completer and normalizes the reply.
type Extractor struct {
	completer llm.Completer
	logger    *slog.Logger
}

var _ RecordExtractor = (*Extractor)(nil)

func NewExtractor(completer llm.Completer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{completer: completer, logger: logger}
}

// Model reports the model behind the completer.
func (x *Extractor) Model() string {
	return x.completer.Model()
}

// Extract runs one extraction. It never panics on empty input and never returns an
// error other than *Error.
func (x *Extractor) Extract(ctx context.Context, userText string) (entity.PatientRecord, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()
	strict := x.completer.StrictJSON()

	x.logger.Info("extract.start",
		"req_id", rid,
		"model", x.completer.Model(),
		"text_len", len(userText),
		"strict_json", strict,
	)

	raw, err := x.complete(ctx, llm.BuildRequest(userText, strict))
	if err != nil {
		return x.fail(rid, start, newError(constants.ErrServiceFailure, raw, err, "completion service call failed: %v", err))
	}
	if strings.TrimSpace(raw) == "" {
		return x.fail(rid, start, newError(constants.ErrEmptyResponse, raw, nil, "received empty response from the model"))
	}

	candidate := strings.TrimSpace(raw)
	if !strict {
		obj, ok := llm.LocateJSONObject(raw)
		if !ok {
			return x.fail(rid, start, newError(constants.ErrExtractionFailure, raw, nil, "no JSON object found in the model response"))
		}
		candidate = obj
	}

	fields, err := llm.DecodeObject([]byte(candidate))
	if err != nil {
		return x.fail(rid, start, newError(constants.ErrParseFailure, candidate, err, "json decode error: %v", err))
	}

	rec, _ := llm.NormalizeFields(fields, x.logger)
	if err := llm.ValidatePatientRecord(rec); err != nil {
		return x.fail(rid, start, newError(constants.ErrParseFailure, candidate, err, "normalized record invalid: %v", err))
	}

	x.logger.Info("extract.ok",
		"req_id", rid,
		"has_name", rec.Name != "",
		"has_age", rec.Age != "",
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// complete calls the completer, turning a panic inside a provider SDK into an error.
func (x *Extractor) complete(ctx context.Context, req llm.CompletionRequest) (raw string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completer panic: %v", r)
		}
	}()
	return x.completer.Complete(ctx, req)
}

func (x *Extractor) fail(rid string, start time.Time, e *Error) (entity.PatientRecord, error) {
	x.logger.Error("extract.failed",
		"req_id", rid,
		"category", e.Category,
		"detail", e.Detail,
		"raw_bytes", len(e.Raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.PatientRecord{}, e
}
