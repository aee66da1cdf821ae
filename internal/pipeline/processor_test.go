package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/patient-docs/constants"
	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/entity"
	"github.com/joseph-ayodele/patient-docs/internal/extract"
	"github.com/joseph-ayodele/patient-docs/internal/render"
)

var _ extract.RecordExtractor = (*MockExtractor)(nil)

type MockExtractor struct {
	ExtractFunc      func(ctx context.Context, text string) (entity.PatientRecord, error)
	ExtractCallCount int32
}

func (m *MockExtractor) Extract(ctx context.Context, text string) (entity.PatientRecord, error) {
	atomic.AddInt32(&m.ExtractCallCount, 1)
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, text)
	}
	return entity.PatientRecord{}, errors.New("ExtractFunc not implemented in mock")
}

var _ render.DocumentRenderer = (*MockRenderer)(nil)

type MockRenderer struct {
	RenderFunc      func(ctx context.Context, rec entity.PatientRecord, tmpl render.Template) (render.Document, error)
	RenderCallCount int32
}

func (m *MockRenderer) Render(ctx context.Context, rec entity.PatientRecord, tmpl render.Template) (render.Document, error) {
	atomic.AddInt32(&m.RenderCallCount, 1)
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, rec, tmpl)
	}
	return render.Document{}, errors.New("RenderFunc not implemented in mock")
}

func TestGenerate_RunsExtractThenRender(t *testing.T) {
	rec := entity.PatientRecord{Name: "Yedidya", Age: "40"}
	tmpl := render.BytesTemplate{Filename: "t.docx", Data: []byte("x")}

	var extractRID, renderRID string
	mx := &MockExtractor{ExtractFunc: func(ctx context.Context, text string) (entity.PatientRecord, error) {
		extractRID = common.RequestIDFromContext(ctx)
		assert.Equal(t, "ידידיה בן 40", text)
		return rec, nil
	}}
	mr := &MockRenderer{RenderFunc: func(ctx context.Context, got entity.PatientRecord, gotTmpl render.Template) (render.Document, error) {
		renderRID = common.RequestIDFromContext(ctx)
		assert.Equal(t, rec, got)
		assert.Equal(t, tmpl, gotTmpl)
		return render.Document{Bytes: []byte("doc"), Filename: "Yedidya_document.docx", Type: constants.DOCX}, nil
	}}

	p := NewProcessor(nil, mx, mr, tmpl)
	res, err := p.Generate(context.Background(), "ידידיה בן 40")
	require.NoError(t, err)

	assert.Equal(t, rec, res.Record)
	assert.Equal(t, "Yedidya_document.docx", res.Document.Filename)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, res.RequestID, extractRID)
	assert.Equal(t, res.RequestID, renderRID)
}

func TestGenerate_EmptyInputSkipsModel(t *testing.T) {
	mx := &MockExtractor{}
	mr := &MockRenderer{}
	p := NewProcessor(nil, mx, mr, nil)

	for _, text := range []string{"", "  \n "} {
		_, err := p.Generate(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Zero(t, mx.ExtractCallCount)
	assert.Zero(t, mr.RenderCallCount)
}

func TestGenerate_ExtractFailureStopsBeforeRender(t *testing.T) {
	xerr := &extract.Error{Category: constants.ErrParseFailure, Detail: "bad json", Raw: "{"}
	mx := &MockExtractor{ExtractFunc: func(context.Context, string) (entity.PatientRecord, error) {
		return entity.PatientRecord{}, xerr
	}}
	mr := &MockRenderer{}

	res, err := NewProcessor(nil, mx, mr, nil).Generate(context.Background(), "text")
	assert.Equal(t, constants.ErrParseFailure, extract.CategoryOf(err))
	assert.Empty(t, res.Document.Bytes)
	assert.Zero(t, mr.RenderCallCount)
}

func TestGenerate_RenderFailureKeepsRecord(t *testing.T) {
	rec := entity.PatientRecord{Name: "Dana"}
	mx := &MockExtractor{ExtractFunc: func(context.Context, string) (entity.PatientRecord, error) {
		return rec, nil
	}}
	mr := &MockRenderer{RenderFunc: func(_ context.Context, got entity.PatientRecord, _ render.Template) (render.Document, error) {
		return render.Document{}, &render.Error{Category: constants.ErrTemplateError, Detail: "missing", Record: got}
	}}

	res, err := NewProcessor(nil, mx, mr, nil).Generate(context.Background(), "Dana")
	var re *render.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, rec, re.Record)
	assert.Equal(t, rec, res.Record)
	assert.Empty(t, res.Document.Bytes)
}

func TestGenerate_KeepsCallerRequestID(t *testing.T) {
	mx := &MockExtractor{ExtractFunc: func(ctx context.Context, _ string) (entity.PatientRecord, error) {
		assert.Equal(t, "caller-rid", common.RequestIDFromContext(ctx))
		return entity.PatientRecord{}, nil
	}}
	mr := &MockRenderer{RenderFunc: func(context.Context, entity.PatientRecord, render.Template) (render.Document, error) {
		return render.Document{Bytes: []byte("x")}, nil
	}}

	ctx := common.WithRequestID(context.Background(), "caller-rid")
	res, err := NewProcessor(nil, mx, mr, nil).Generate(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "caller-rid", res.RequestID)
}

func TestNewCompleter(t *testing.T) {
	for _, provider := range []string{common.ProviderOpenAI, common.ProviderCompat} {
		c, err := NewCompleter(context.Background(), common.LLMConfig{
			Provider: provider,
			Model:    "m",
			APIKey:   "k",
			BaseURL:  "http://localhost:1/v1",
			JSONMode: true,
		}, nil)
		require.NoError(t, err, provider)
		assert.Equal(t, "m", c.Model())
		assert.True(t, c.StrictJSON())
	}

	_, err := NewCompleter(context.Background(), common.LLMConfig{Provider: "nope"}, nil)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}
