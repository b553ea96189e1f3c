// Command actions runs the dialogue layer's action server. Questions are
// answered against the document service, which does retrieval; synthesis
// happens here.
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

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/actions"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/app"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/rag"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/config"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/docclient"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/metrics"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/mid"
)

func main() {
	addr := flag.String("addr", ":5055", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *addr, logger); err != nil {
		logger.Error("action server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, addr string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         addr,
		Handler:      newHandler(cfg, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("action server starting", "addr", addr, "doc_service", cfg.DocServiceURL)
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

func newHandler(cfg config.Config, logger *slog.Logger) http.Handler {
	m := metrics.NewRAG(metrics.New())
	docs := docclient.New(cfg.DocServiceURL, docclient.DefaultTimeout)
	synth, _ := app.NewSynthesizer(cfg, logger, m)
	answerer := rag.New(docs, synth, rag.Options{
		TopK:    cfg.MaxSearchResults,
		Logger:  logger,
		Metrics: m,
	})
	reg := actions.New(answerer, docs, docs.BaseURL(), logger)

	mux := http.NewServeMux()
	mux.Handle("/", reg.Handler())
	mux.Handle("GET /metrics", m.Registry().Handler())

	return mid.Chain(mux,
		mid.RequestID(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("rag-actions"),
		mid.Metrics(m),
	)
}
