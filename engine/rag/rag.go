// Package rag answers questions over the uploaded documents: it retrieves
// the best matching chunks, builds a context from them and asks the
// synthesizer for an answer with its sources attached. The service keeps no
// per-conversation state.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/embedding"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/semantic"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/fn"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/metrics"
)

// Fixed replies shown to end users.
const (
	MsgNoQuestion   = "I didn't receive a question. What would you like to know?"
	MsgSearchFailed = "Sorry, I'm having trouble accessing the knowledge base. Please try again later."
	MsgNoResults    = "I couldn't find any relevant information in the uploaded documents. Please make sure you have uploaded PDFs that might contain the answer to your question."

	SourcesPrefix  = "\n\n📚 Sources: "
	UnknownSource  = "Unknown"
	ContextSlot    = "context"
	DefaultTopK    = 5
	contextJoinSep = " "
)

// Searcher returns up to k hits for query, best first.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
}

// Synthesizer writes an answer from a question and its context. It never
// fails; degraded answers are still text.
type Synthesizer interface {
	Synthesize(ctx context.Context, question, docContext string, sources []string) string
}

// Reply is the outcome of one question.
type Reply struct {
	Text    string
	Sources []string
	// Context is the retrieved text the answer was built from.
	Context string
	Results []domain.SearchHit
}

// Slots returns the dialogue slots set by this reply.
func (r Reply) Slots() map[string]any {
	if r.Context == "" {
		return map[string]any{}
	}
	return map[string]any{ContextSlot: r.Context}
}

// Options configures the Service.
type Options struct {
	TopK    int
	Logger  *slog.Logger
	Metrics *metrics.RAG
}

// Service is the retrieval orchestrator.
type Service struct {
	search Searcher
	synth  Synthesizer
	topK   int
	log    *slog.Logger
	m      *metrics.RAG
}

// New creates a Service that retrieves with search and answers with synth.
func New(search Searcher, synth Synthesizer, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{search: search, synth: synth, topK: opts.TopK, log: log, m: opts.Metrics}
}

// Answer runs retrieval and synthesis for question. Retrieval problems come
// back as fixed replies, not errors; only an oversized question is an error.
func (s *Service) Answer(ctx context.Context, question string) (Reply, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		if errors.Is(err, domain.ErrEmptyQuestion) {
			return Reply{Text: MsgNoQuestion}, nil
		}
		return Reply{}, err
	}
	question = strings.TrimSpace(question)

	start := time.Now()
	hits, err := s.search.Search(ctx, question, s.topK)
	if s.m != nil {
		s.m.SearchDuration.Since(start)
	}
	if err != nil {
		s.log.Error("rag: search failed", "error", err)
		return Reply{Text: MsgSearchFailed}, nil
	}
	if len(hits) == 0 {
		s.log.Info("rag: no results", "question_len", len(question))
		return Reply{Text: MsgNoResults, Results: []domain.SearchHit{}}, nil
	}

	docContext := BuildContext(hits)
	sources := Sources(hits)
	answer := s.synth.Synthesize(ctx, question, docContext, sources)
	return Reply{
		Text:    answer + SourcesPrefix + strings.Join(sources, ", "),
		Sources: sources,
		Context: docContext,
		Results: hits,
	}, nil
}

// BuildContext joins hit texts in ranking order.
func BuildContext(hits []domain.SearchHit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Content
	}
	return strings.Join(parts, contextJoinSep)
}

// Sources lists distinct filenames in first-seen order.
func Sources(hits []domain.SearchHit) []string {
	return fn.Unique(fn.Map(hits, func(h domain.SearchHit) string {
		if h.Filename == "" {
			return UnknownSource
		}
		return h.Filename
	}))
}

// IndexSearcher embeds the query and searches a vector store.
type IndexSearcher struct {
	index *embedding.Index
	store semantic.Store
}

// NewIndexSearcher searches store with query vectors from ix.
func NewIndexSearcher(ix *embedding.Index, store semantic.Store) *IndexSearcher {
	return &IndexSearcher{index: ix, store: store}
}

// Search embeds query and returns the k nearest chunks.
func (s *IndexSearcher) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	vec, err := s.index.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.store.Search(ctx, vec, k)
}
