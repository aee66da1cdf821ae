package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/mcp"
	"github.com/joseph-ayodele/patient-docs/internal/pipeline"
	"github.com/joseph-ayodele/patient-docs/internal/server"
)

var version = "dev"

func main() {
	cfg, err := common.LoadConfig(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if cfg.Server.Mode == common.ModeCLI {
		slog.Error("mode 'cli' is served by the patientdoc command")
		os.Exit(2)
	}

	// stdout carries the MCP protocol in stdio mode.
	var logOut io.Writer = os.Stdout
	if cfg.Server.Mode == common.ModeStdio {
		logOut = os.Stderr
	}
	logger := common.NewLogger(cfg.Log, logOut)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, completer, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	logger.Info("pipeline ready",
		"provider", cfg.LLM.Provider,
		"model", completer.Model(),
		"strict_json", completer.StrictJSON(),
		"template", cfg.Template.Path,
	)

	if cfg.Server.Mode == common.ModeStdio {
		srv, err := mcp.NewServer(proc, cfg.Server.OutputDir, version, logger)
		if err != nil {
			logger.Error("failed to create MCP server", "error", err)
			os.Exit(1)
		}
		if err := srv.Run(ctx); err != nil {
			logger.Error("MCP server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, proc, completer.Model(), logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// serve runs the web UI and, when configured, the gRPC API until ctx is cancelled.
func serve(ctx context.Context, cfg *common.Config, proc *pipeline.Processor, model string, logger *slog.Logger) error {
	ui, err := server.NewUI(proc, model, cfg.Auth.Password, server.NewSessionStore(), logger)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           ui.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var stopGRPC func()
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			return err
		}
		grpcServer, healthServer := server.NewGRPCServer(server.NewDocumentService(proc, logger), cfg.Auth.Password, logger)
		go func() {
			logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
		stopGRPC = func() {
			healthServer.Shutdown()
			grpcServer.GracefulStop()
		}
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopGRPC != nil {
		stopGRPC()
	}
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("http shutdown", "error", shutdownErr)
	}
	return err
}
