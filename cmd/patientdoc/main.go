// Command patientdoc turns one free-text patient note into a filled document.
//
//	patientdoc [flags] [note.txt]
//
// With no file argument the note is read from stdin and the document is written to
// --output-dir. Otherwise it is written next to the note.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/extract"
	"github.com/joseph-ayodele/patient-docs/internal/pipeline"
)

func main() {
	args := append([]string{"--mode", common.ModeCLI}, os.Args[1:]...)
	cfg, rest, err := common.LoadConfigArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, rest, logger); err != nil {
		logger.Error("patientdoc failed", "error", err)
		var xe *extract.Error
		if errors.As(err, &xe) && xe.Raw != "" {
			fmt.Fprintf(os.Stderr, "model output:\n%s\n", xe.Raw)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, args []string, logger *slog.Logger) error {
	var (
		text   []byte
		outDir = cfg.Server.OutputDir
		err    error
	)
	switch len(args) {
	case 0:
		text, err = io.ReadAll(os.Stdin)
	case 1:
		text, err = os.ReadFile(args[0])
		outDir = filepath.Dir(args[0])
	default:
		return common.NewAppError("USAGE", "expected at most one input file", common.ErrInvalidInput)
	}
	if err != nil {
		return common.WrapError(err, "read input")
	}

	proc, completer, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("processing", "model", completer.Model(), "template", cfg.Template.Path)

	res, err := proc.Generate(ctx, string(text))
	if err != nil {
		return err
	}

	path := filepath.Join(outDir, res.Document.Filename)
	if err := os.WriteFile(path, res.Document.Bytes, 0o644); err != nil {
		return common.WrapError(err, "write document")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res.Record); err != nil {
		return err
	}
	logger.Info("document written", "path", path, "mime_type", res.Document.MIMEType, "req_id", res.RequestID)
	return nil
}
