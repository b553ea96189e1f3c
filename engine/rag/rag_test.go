package rag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/chunker"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/embedding"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/semantic"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/synth"
)

// --- mocks ---

type mockSearcher struct {
	hits  []domain.SearchHit
	err   error
	calls int
	k     int
}

func (m *mockSearcher) Search(_ context.Context, _ string, k int) ([]domain.SearchHit, error) {
	m.calls++
	m.k = k
	return m.hits, m.err
}

type mockSynth struct {
	mu      sync.Mutex
	calls   int
	context string
	sources []string
}

func (m *mockSynth) Synthesize(_ context.Context, _, docContext string, sources []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.context = docContext
	m.sources = sources
	return "ANSWER"
}

func hits(pairs ...string) []domain.SearchHit {
	out := make([]domain.SearchHit, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.SearchHit{Filename: pairs[i], Content: pairs[i+1], Score: 1 - float64(i)/10})
	}
	return out
}

// --- Answer ---

func TestAnswer_EmptyQuestion(t *testing.T) {
	s := &mockSearcher{}
	sy := &mockSynth{}
	for _, q := range []string{"", "   ", "\n\t"} {
		r, err := New(s, sy, Options{}).Answer(context.Background(), q)
		if err != nil || r.Text != MsgNoQuestion {
			t.Fatalf("Answer(%q) = %+v, %v", q, r, err)
		}
	}
	if s.calls != 0 || sy.calls != 0 {
		t.Fatal("no search or synthesis for empty questions")
	}
}

func TestAnswer_TooLong(t *testing.T) {
	s := &mockSearcher{}
	_, err := New(s, &mockSynth{}, Options{}).Answer(context.Background(), strings.Repeat("x", domain.MaxQuestionLength+1))
	if !errors.Is(err, domain.ErrQuestionTooLong) || s.calls != 0 {
		t.Fatalf("err=%v calls=%d", err, s.calls)
	}
}

func TestAnswer_SearchFailure(t *testing.T) {
	sy := &mockSynth{}
	r, err := New(&mockSearcher{err: errors.New("connection refused")}, sy, Options{}).Answer(context.Background(), "why?")
	if err != nil || r.Text != MsgSearchFailed || sy.calls != 0 {
		t.Fatalf("reply=%+v err=%v synth=%d", r, err, sy.calls)
	}
}

func TestAnswer_NoResultsSkipsSynthesizer(t *testing.T) {
	sy := &mockSynth{}
	r, err := New(&mockSearcher{}, sy, Options{}).Answer(context.Background(), "why?")
	if err != nil || r.Text != MsgNoResults {
		t.Fatalf("reply=%+v err=%v", r, err)
	}
	if sy.calls != 0 {
		t.Fatal("synthesizer must not run without results")
	}
	if len(r.Slots()) != 0 {
		t.Fatalf("no slots expected, got %v", r.Slots())
	}
}

func TestAnswer_ContextAndSources(t *testing.T) {
	s := &mockSearcher{hits: hits("b.pdf", "first", "a.pdf", "second", "b.pdf", "third", "", "fourth")}
	sy := &mockSynth{}
	r, err := New(s, sy, Options{TopK: 4}).Answer(context.Background(), "  what?  ")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if s.k != 4 {
		t.Fatalf("k = %d", s.k)
	}
	if sy.context != "first second third fourth" {
		t.Fatalf("context = %q", sy.context)
	}
	wantSources := []string{"b.pdf", "a.pdf", "Unknown"}
	if !reflect.DeepEqual(r.Sources, wantSources) || !reflect.DeepEqual(sy.sources, wantSources) {
		t.Fatalf("sources = %v", r.Sources)
	}
	if r.Text != "ANSWER\n\n📚 Sources: b.pdf, a.pdf, Unknown" {
		t.Fatalf("text = %q", r.Text)
	}
	if r.Slots()[ContextSlot] != "first second third fourth" {
		t.Fatalf("slots = %v", r.Slots())
	}
}

func TestAnswer_DefaultTopK(t *testing.T) {
	s := &mockSearcher{}
	_, _ = New(s, &mockSynth{}, Options{}).Answer(context.Background(), "q")
	if s.k != DefaultTopK {
		t.Fatalf("k = %d", s.k)
	}
}

func TestAnswer_Concurrent(t *testing.T) {
	svc := New(&mockSearcher{hits: hits("a.pdf", "text")}, &mockSynth{}, Options{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.Answer(context.Background(), "q")
			if err != nil || !strings.HasPrefix(r.Text, "ANSWER") {
				t.Errorf("reply=%+v err=%v", r, err)
			}
		}()
	}
	wg.Wait()
}

// --- end to end ---

type constModel struct{}

func (constModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 1}
	}
	return out, nil
}

func (constModel) Dimensions() int { return 2 }

func TestIndexSearcher_KeywordEndToEnd(t *testing.T) {
	ctx := context.Background()
	text := "The sky is blue. Water boils at 100 degrees. Paris is the capital of France."
	pieces := chunker.Chunk(text, 40, 5)
	ix := embedding.New(constModel{})
	vecs, err := ix.Embed(ctx, pieces)
	if err != nil {
		t.Fatal(err)
	}
	store := semantic.NewMemory()
	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{DocID: "doc1", Filename: "facts.pdf", Index: i, Text: p, Embedding: vecs[i]}
	}
	if err := store.Insert(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	svc := New(NewIndexSearcher(ix, store), synth.New(synth.Options{Mode: synth.ModeKeyword}), Options{})
	r, err := svc.Answer(ctx, "What temperature does water boil at?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(r.Text, "100 degrees") {
		t.Fatalf("answer missing fact: %q", r.Text)
	}
	if !strings.HasSuffix(r.Text, "📚 Sources: facts.pdf") {
		t.Fatalf("answer missing sources: %q", r.Text)
	}
	if len(r.Results) != 3 {
		t.Fatalf("results = %d", len(r.Results))
	}
}

func TestIndexSearcher_EmbeddingError(t *testing.T) {
	s := NewIndexSearcher(embedding.New(failingModel{}), semantic.NewMemory())
	if _, err := s.Search(context.Background(), "q", 3); !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

type failingModel struct{}

func (failingModel) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("down")
}
func (failingModel) Dimensions() int { return 2 }
