package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/patient-docs/constants"
	"github.com/joseph-ayodele/patient-docs/internal/entity"
	"github.com/joseph-ayodele/patient-docs/internal/extract"
	"github.com/joseph-ayodele/patient-docs/internal/pipeline"
	"github.com/joseph-ayodele/patient-docs/internal/render"
)

var _ Pipeline = (*MockPipeline)(nil)

type MockPipeline struct {
	ExtractFunc  func(ctx context.Context, text string) (entity.PatientRecord, error)
	GenerateFunc func(ctx context.Context, text string) (pipeline.Result, error)
}

func (m *MockPipeline) Extract(ctx context.Context, text string) (entity.PatientRecord, error) {
	return m.ExtractFunc(ctx, text)
}

func (m *MockPipeline) Generate(ctx context.Context, text string) (pipeline.Result, error) {
	return m.GenerateFunc(ctx, text)
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			return tc.Text
		}
		if tc, ok := content.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, "", "test", nil)
	assert.Error(t, err)

	s, err := NewServer(&MockPipeline{}, "", "test", nil)
	require.NoError(t, err)
	assert.NotNil(t, s.mcpServer)
	assert.Equal(t, ".", s.outputDir)
}

func TestHandleExtract(t *testing.T) {
	pipe := &MockPipeline{ExtractFunc: func(_ context.Context, text string) (entity.PatientRecord, error) {
		assert.Equal(t, "ידידיה בן 40", text)
		return entity.PatientRecord{Name: "ידידיה", Age: "40"}, nil
	}}
	s, err := NewServer(pipe, "", "test", nil)
	require.NoError(t, err)

	result, err := s.handleExtract(context.Background(), callRequest(map[string]interface{}{"text": "ידידיה בן 40"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := extractTextFromResult(result)
	assert.Contains(t, text, `"name": "ידידיה"`)
	assert.Contains(t, text, `"age": "40"`)
	assert.Contains(t, text, `"ai_recommondation": ""`)
}

func TestHandleExtract_Errors(t *testing.T) {
	pipe := &MockPipeline{ExtractFunc: func(context.Context, string) (entity.PatientRecord, error) {
		return entity.PatientRecord{}, &extract.Error{Category: constants.ErrParseFailure, Detail: "bad json", Raw: `{"name":`}
	}}
	s, err := NewServer(pipe, "", "test", nil)
	require.NoError(t, err)

	result, err := s.handleExtract(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleExtract(context.Background(), callRequest(map[string]interface{}{"text": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text := extractTextFromResult(result)
	assert.Contains(t, text, "PARSE_FAILURE: bad json")
	assert.Contains(t, text, `{"name":`)
}

func TestHandleGenerate_WritesDocument(t *testing.T) {
	dir := t.TempDir()
	pipe := &MockPipeline{GenerateFunc: func(context.Context, string) (pipeline.Result, error) {
		return pipeline.Result{
			RequestID: "rid",
			Record:    entity.PatientRecord{Name: "Yedidya"},
			Document: render.Document{
				Bytes:    []byte("DOCX"),
				Filename: "Yedidya_document.docx",
				MIMEType: constants.DOCX.MIMEType(),
			},
		}, nil
	}}
	s, err := NewServer(pipe, filepath.Join(dir, "default"), "test", nil)
	require.NoError(t, err)

	custom := filepath.Join(dir, "custom")
	result, err := s.handleGenerate(context.Background(), callRequest(map[string]interface{}{"text": "x", "output_dir": custom}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	path := filepath.Join(custom, "Yedidya_document.docx")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DOCX", string(data))
	assert.Contains(t, extractTextFromResult(result), "Wrote "+path)

	result, err = s.handleGenerate(context.Background(), callRequest(map[string]interface{}{"text": "x"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	_, err = os.Stat(filepath.Join(dir, "default", "Yedidya_document.docx"))
	assert.NoError(t, err)
}

func TestHandleGenerate_TemplateError(t *testing.T) {
	pipe := &MockPipeline{GenerateFunc: func(context.Context, string) (pipeline.Result, error) {
		return pipeline.Result{}, &render.Error{Category: constants.ErrTemplateError, Detail: "template missing"}
	}}
	dir := t.TempDir()
	s, err := NewServer(pipe, dir, "test", nil)
	require.NoError(t, err)

	result, err := s.handleGenerate(context.Background(), callRequest(map[string]interface{}{"text": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "TEMPLATE_ERROR: template missing")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
