// Package main implements the document service: PDF upload, processing
// status, semantic search, document management and question answering.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/app"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/config"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/mid"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/resilience"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return err
	}

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(a, logger),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newHandler(a *app.App, logger *slog.Logger) http.Handler {
	s := &server{app: a, log: logger}
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: a.Config.UploadRate, Burst: 5})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", a.Metrics.Registry().Handler())
	if a.Config.UploadRate > 0 {
		mux.Handle("POST /upload-pdf", mid.RateLimit(limiter)(http.HandlerFunc(s.handleUpload)))
	} else {
		mux.HandleFunc("POST /upload-pdf", s.handleUpload)
	}
	mux.HandleFunc("GET /status/{id}", s.handleStatus)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /documents", s.handleList)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDelete)
	mux.HandleFunc("DELETE /documents", s.handleClear)
	mux.HandleFunc("POST /api/ask", s.handleAsk)

	return mid.Chain(mux,
		mid.RequestID(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(a.Config.CORSOrigin),
		mid.OTel("rag-api"),
		mid.Metrics(a.Metrics),
	)
}
