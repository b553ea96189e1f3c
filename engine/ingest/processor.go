package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/registry"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/semantic"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/fn"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/metrics"
)

// Processor runs the pipeline for a job and records the outcome in the
// registry. Chunks are stored before the document is marked completed.
type Processor struct {
	pipeline fn.Stage[Job, Indexed]
	store    semantic.Store
	registry *registry.Registry
	metrics  *metrics.RAG
	log      *slog.Logger
}

// NewProcessor wires a processor. m may be nil.
func NewProcessor(deps Deps, reg *registry.Registry, m *metrics.RAG) *Processor {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		pipeline: NewPipeline(deps),
		store:    deps.Store,
		registry: reg,
		metrics:  m,
		log:      log,
	}
}

// Process makes one attempt and records it as final.
func (p *Processor) Process(ctx context.Context, job Job) error {
	start := time.Now()
	res, err := p.attempt(ctx, job)
	return p.finish(ctx, job, res, err, start)
}

func (p *Processor) attempt(ctx context.Context, job Job) (Indexed, error) {
	return p.pipeline(ctx, job).Unwrap()
}

// finish records the final outcome of a job. It returns the pipeline error,
// or the registry error on success.
func (p *Processor) finish(ctx context.Context, job Job, res Indexed, runErr error, start time.Time) error {
	if runErr != nil {
		p.log.Error("ingest: failed", "file_id", job.FileID, "filename", job.Filename, "error", runErr)
		if _, err := p.registry.MarkFailed(ctx, job.FileID, failureReason(runErr)); err != nil {
			p.log.Error("ingest: mark failed", "file_id", job.FileID, "error", err)
		}
		p.metrics.IngestDone(string(domain.StatusFailed))
		return runErr
	}

	if _, err := p.registry.MarkCompleted(ctx, job.FileID, res.Chunks); err != nil {
		// Vectors must not outlive a document that never reached completed.
		if derr := p.store.DeleteByFileID(ctx, job.FileID); derr != nil {
			p.log.Error("ingest: orphan cleanup", "file_id", job.FileID, "error", derr)
		}
		if errors.Is(err, domain.ErrNotFound) {
			p.log.Warn("ingest: document removed during processing", "file_id", job.FileID)
		} else {
			p.log.Error("ingest: mark completed", "file_id", job.FileID, "error", err)
			if _, ferr := p.registry.MarkFailed(ctx, job.FileID, failureReason(err)); ferr != nil {
				p.log.Error("ingest: mark failed", "file_id", job.FileID, "error", ferr)
			}
		}
		p.metrics.IngestDone(string(domain.StatusFailed))
		return err
	}
	if p.metrics != nil {
		p.metrics.ChunksIndexed.Add(int64(res.Chunks))
		p.metrics.IngestDuration.Since(start)
	}
	p.metrics.IngestDone(string(domain.StatusCompleted))
	p.log.Info("ingest: completed", "file_id", job.FileID, "filename", job.Filename, "chunks", res.Chunks, "duration", time.Since(start))
	return nil
}

// failureReason is the message stored on a failed document.
func failureReason(err error) string {
	if errors.Is(err, domain.ErrNoText) {
		return domain.ErrNoText.Error()
	}
	return err.Error()
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrNoText),
		errors.Is(err, domain.ErrUnsupportedFile),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, fs.ErrNotExist):
		return false
	}
	return true
}
