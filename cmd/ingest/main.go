// Command ingest consumes PDF ingestion jobs from NATS and runs them through
// extraction, chunking, embedding and indexing.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/app"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/ingest"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/config"
)

var errNoQueue = errors.New("ingest: NATS_URL is required")

func main() {
	metricsAddr := flag.String("metrics", ":9091", "metrics listen address (empty disables)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *metricsAddr, logger); err != nil {
		logger.Error("ingest worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, metricsAddr string, logger *slog.Logger) error {
	if cfg.NATSURL == "" {
		return errNoQueue
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	sub, err := ingest.StartConsumer(a.NATS, a.Processor, logger)
	if err != nil {
		return err
	}
	logger.Info("ingest worker started", "subject", ingest.Subject, "queue", ingest.Queue)

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", a.Metrics.Registry().Handler())
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := sub.Drain(); err != nil {
		logger.Warn("drain subscription", "err", err)
	}
	if srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
	return nil
}
