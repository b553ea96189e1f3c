package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/natsutil"
)

const (
	// Subject carries ingestion jobs.
	Subject = "rag.ingest"
	// DLQSubject receives jobs that kept failing.
	DLQSubject = "rag.ingest.dlq"
	// Queue is the queue group shared by ingestion workers.
	Queue = "ingest"
	// MaxRetries before a job goes to the DLQ.
	MaxRetries = 3
)

// Submitter hands a job to whatever runs the pipeline.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// NATSSubmitter publishes jobs for the ingestion workers.
type NATSSubmitter struct {
	nc *nats.Conn
}

func NewNATSSubmitter(nc *nats.Conn) *NATSSubmitter {
	return &NATSSubmitter{nc: nc}
}

func (s *NATSSubmitter) Submit(ctx context.Context, job Job) error {
	return natsutil.Publish(ctx, s.nc, Subject, job)
}

// LocalSubmitter processes jobs in background goroutines, at most workers
// at a time.
type LocalSubmitter struct {
	proc *Processor
	sem  chan struct{}
	wg   sync.WaitGroup
}

func NewLocalSubmitter(proc *Processor, workers int) *LocalSubmitter {
	if workers <= 0 {
		workers = 2
	}
	return &LocalSubmitter{proc: proc, sem: make(chan struct{}, workers)}
}

// Submit returns at once. The job outlives the caller's cancellation but
// keeps its values, such as the trace span.
func (s *LocalSubmitter) Submit(ctx context.Context, job Job) error {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
		_ = s.proc.Process(ctx, job)
	}()
	return nil
}

// Wait blocks until every submitted job has finished.
func (s *LocalSubmitter) Wait() { s.wg.Wait() }

type dlqMessage struct {
	Job     Job    `json:"job"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// StartConsumer subscribes to Subject in the Queue group. Failed jobs are
// republished with an incremented X-Retry-Count; after MaxRetries attempts
// they are marked failed and published to DLQSubject. Failures that cannot
// succeed on retry, such as a PDF without text, are recorded at once.
func StartConsumer(nc *nats.Conn, proc *Processor, logger *slog.Logger) (*nats.Subscription, error) {
	log := logger
	if log == nil {
		log = slog.Default()
	}

	return natsutil.QueueSubscribe(nc, Subject, Queue, func(ctx context.Context, msg *nats.Msg) {
		job, err := natsutil.Decode[Job](msg)
		if err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		start := time.Now()
		res, runErr := proc.attempt(ctx, job)
		if runErr == nil || !retryable(runErr) {
			_ = proc.finish(ctx, job, res, runErr, start)
			return
		}

		retries := natsutil.RetryCount(msg) + 1
		log.Warn("ingest: attempt failed", "file_id", job.FileID, "error", runErr, "retry", retries)
		if retries < MaxRetries {
			err := natsutil.Redeliver(ctx, nc, msg, retries)
			if err == nil {
				return
			}
			log.Error("ingest: retry publish failed", "error", err)
		}

		_ = proc.finish(ctx, job, res, runErr, start)
		dlq := dlqMessage{Job: job, Error: runErr.Error(), Retries: retries}
		if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
			log.Error("ingest: DLQ publish failed", "error", err)
		}
	})
}
