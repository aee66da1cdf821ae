package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joseph-ayodele/patient-docs/internal/entity"
	"github.com/joseph-ayodele/patient-docs/internal/extract"
	"github.com/joseph-ayodele/patient-docs/internal/pipeline"
	"github.com/joseph-ayodele/patient-docs/internal/render"
)

const (
	ServerName = "patient-docs"

	ToolExtract  = "extract_patient_record"
	ToolGenerate = "generate_patient_document"
)

// Pipeline is the subset of the processor the tools call.
type Pipeline interface {
	Extract(ctx context.Context, text string) (entity.PatientRecord, error)
	Generate(ctx context.Context, text string) (pipeline.Result, error)
}

// Server exposes extraction and document generation as MCP tools over stdio.
type Server struct {
	pipe      Pipeline
	outputDir string
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer registers the tools. Generated documents are written under outputDir
// unless a call names its own directory.
func NewServer(pipe Pipeline, outputDir, version string, logger *slog.Logger) (*Server, error) {
	if pipe == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if outputDir == "" {
		outputDir = "."
	}

	s := &Server{
		pipe:      pipe,
		outputDir: outputDir,
		mcpServer: server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	extractTool := mcp.NewTool(
		ToolExtract,
		mcp.WithDescription("Extract a structured patient record (name, age, kupat_cholim, symptoms, ai_recommondation) from free text"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Free-text patient information, in any language"),
		),
	)
	s.mcpServer.AddTool(extractTool, s.handleExtract)

	generateTool := mcp.NewTool(
		ToolGenerate,
		mcp.WithDescription("Extract a patient record from free text and write the filled document template to disk"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Free-text patient information, in any language"),
		),
		mcp.WithString("output_dir",
			mcp.Description("Directory to write the document to (uses the configured directory if empty)"),
		),
	)
	s.mcpServer.AddTool(generateTool, s.handleGenerate)
}

// Run serves the tools on stdin/stdout until the client disconnects.
func (s *Server) Run(_ context.Context) error {
	s.logger.Info("mcp.stdio.start", "output_dir", s.outputDir)
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

func (s *Server) handleExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.pipe.Extract(ctx, text)
	if err != nil {
		s.logger.Error("mcp.extract.failed", "err", err)
		return mcp.NewToolResultError(describe(err)), nil
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dir := s.outputDir
	if d, ok := request.GetArguments()["output_dir"].(string); ok && strings.TrimSpace(d) != "" {
		dir = strings.TrimSpace(d)
	}

	res, err := s.pipe.Generate(ctx, text)
	if err != nil {
		s.logger.Error("mcp.generate.failed", "req_id", res.RequestID, "err", err)
		return mcp.NewToolResultError(describe(err)), nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create output directory: %v", err)), nil
	}
	path := filepath.Join(dir, res.Document.Filename)
	if err := os.WriteFile(path, res.Document.Bytes, 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("write document: %v", err)), nil
	}
	s.logger.Info("mcp.generate.ok", "req_id", res.RequestID, "path", path, "bytes", len(res.Document.Bytes))

	rec, _ := json.MarshalIndent(res.Record, "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "Wrote %s (%s, %d bytes)\n\n", path, res.Document.MIMEType, len(res.Document.Bytes))
	b.WriteString("Record:\n")
	b.Write(rec)
	return mcp.NewToolResultText(b.String()), nil
}

// describe renders a pipeline failure with its category and, for model output, the raw text.
func describe(err error) string {
	var xe *extract.Error
	if errors.As(err, &xe) {
		if xe.Raw == "" {
			return xe.Error()
		}
		return fmt.Sprintf("%s\n\nModel output:\n%s", xe.Error(), xe.Raw)
	}
	var re *render.Error
	if errors.As(err, &re) {
		return re.Error()
	}
	return err.Error()
}
