// Package ingest turns uploaded PDFs into indexed chunks: text extraction,
// chunking, embedding and vector storage, run as fn stages. Jobs arrive over
// NATS or from an in-process submitter, and their outcome is recorded in the
// document registry.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/chunker"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/embedding"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/semantic"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/fn"
)

// EmbedBatchSize is the max chunks per embedding request.
const EmbedBatchSize = 64

// Job asks for one uploaded file to be indexed.
type Job struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}

// ExtractedDoc is a job with the text of its file.
type ExtractedDoc struct {
	Job
	Text string
}

// ChunkedDoc is an extracted document split into chunks. After the embed
// stage every chunk carries its vector.
type ChunkedDoc struct {
	Job
	Chunks []domain.Chunk
}

// Indexed reports a stored document.
type Indexed struct {
	FileID string
	Chunks int
}

// Deps holds the collaborators of the pipeline.
type Deps struct {
	Index   *embedding.Index
	Store   semantic.Store
	Chunker chunker.Options
	// Extract reads a file's text; ExtractText when nil.
	Extract   func(path string) (string, error)
	BatchSize int
	// EmbedRetry governs each embedding request.
	EmbedRetry fn.RetryOpts
	Logger     *slog.Logger
}

// Validate checks the job before any I/O.
var Validate fn.Stage[Job, Job] = func(_ context.Context, job Job) fn.Result[Job] {
	if strings.TrimSpace(job.FileID) == "" {
		return fn.Err[Job](domain.NewValidationError("file_id", job.FileID, domain.ErrInvalidInput))
	}
	if err := domain.ValidateFilename(job.Filename); err != nil {
		return fn.Err[Job](err)
	}
	return fn.Ok(job)
}

// NewExtract reads the file's text. A document without text fails with
// domain.ErrNoText.
func NewExtract(extract func(string) (string, error)) fn.Stage[Job, ExtractedDoc] {
	return func(_ context.Context, job Job) fn.Result[ExtractedDoc] {
		text, err := extract(job.FilePath)
		if err != nil {
			return fn.Err[ExtractedDoc](fmt.Errorf("extract %s: %w", job.Filename, err))
		}
		if strings.TrimSpace(text) == "" {
			return fn.Err[ExtractedDoc](domain.ErrNoText)
		}
		return fn.Ok(ExtractedDoc{Job: job, Text: text})
	}
}

// NewChunk splits the text with opts.
func NewChunk(opts chunker.Options) fn.Stage[ExtractedDoc, ChunkedDoc] {
	return func(_ context.Context, doc ExtractedDoc) fn.Result[ChunkedDoc] {
		texts, err := opts.Split(doc.Text)
		if err != nil {
			return fn.Err[ChunkedDoc](err)
		}
		if len(texts) == 0 {
			return fn.Err[ChunkedDoc](domain.ErrNoText)
		}
		chunks := make([]domain.Chunk, len(texts))
		for i, t := range texts {
			chunks[i] = domain.Chunk{DocID: doc.FileID, Filename: doc.Filename, Index: i, Text: t}
		}
		return fn.Ok(ChunkedDoc{Job: doc.Job, Chunks: chunks})
	}
}

// NewEmbed embeds chunk texts in batches of batchSize. Each batch is retried
// per retry; the zero RetryOpts makes a single attempt.
func NewEmbed(ix *embedding.Index, batchSize int, retry fn.RetryOpts) fn.Stage[ChunkedDoc, ChunkedDoc] {
	if batchSize <= 0 {
		batchSize = EmbedBatchSize
	}
	embedBatch := fn.RetryStage(retry, func(ctx context.Context, batch []domain.Chunk) fn.Result[[]domain.Chunk] {
		vecs, err := ix.Embed(ctx, fn.Map(batch, func(c domain.Chunk) string { return c.Text }))
		if err != nil {
			return fn.Errf[[]domain.Chunk]("embed %d chunks from #%d: %w", len(batch), batch[0].Index, err)
		}
		out := make([]domain.Chunk, len(batch))
		for i, c := range batch {
			c.Embedding = vecs[i]
			out[i] = c
		}
		return fn.Ok(out)
	})
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[ChunkedDoc] {
		out := make([]domain.Chunk, 0, len(doc.Chunks))
		for _, batch := range fn.Chunk(doc.Chunks, batchSize) {
			embedded, err := embedBatch(ctx, batch).Unwrap()
			if err != nil {
				return fn.Err[ChunkedDoc](err)
			}
			out = append(out, embedded...)
		}
		doc.Chunks = out
		return fn.Ok(doc)
	}
}

// NewStore writes the embedded chunks.
func NewStore(store semantic.Store) fn.Stage[ChunkedDoc, Indexed] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[Indexed] {
		if err := store.Insert(ctx, doc.Chunks); err != nil {
			return fn.Err[Indexed](fmt.Errorf("vector insert: %w", err))
		}
		return fn.Ok(Indexed{FileID: doc.FileID, Chunks: len(doc.Chunks)})
	}
}

// LoggedTap returns a pass-through stage that logs the stage about to run.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return fn.TapStage(func(ctx context.Context, _ T) {
		log.DebugContext(ctx, "stage.enter", "stage", name)
	})
}

// NewPipeline composes Validate -> Extract -> Chunk -> Embed -> Store with a
// logging tap and a span around every stage.
func NewPipeline(deps Deps) fn.Stage[Job, Indexed] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	extract := deps.Extract
	if extract == nil {
		extract = ExtractText
	}
	opts := deps.Chunker
	if opts == (chunker.Options{}) {
		opts = chunker.Default()
	}

	validated := fn.Then(LoggedTap[Job]("validate", log), fn.TracedStage("ingest.validate", Validate))
	extracted := fn.Then(validated, fn.Then(LoggedTap[Job]("extract", log), fn.TracedStage("ingest.extract", NewExtract(extract))))
	chunked := fn.Then(extracted, fn.Then(LoggedTap[ExtractedDoc]("chunk", log), fn.TracedStage("ingest.chunk", NewChunk(opts))))
	embedded := fn.Then(chunked, fn.Then(LoggedTap[ChunkedDoc]("embed", log), fn.TracedStage("ingest.embed", NewEmbed(deps.Index, deps.BatchSize, deps.EmbedRetry))))
	return fn.Then(embedded, fn.Then(LoggedTap[ChunkedDoc]("store", log), fn.TracedStage("ingest.store", NewStore(deps.Store))))
}
