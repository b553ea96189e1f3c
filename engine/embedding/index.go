// Package embedding turns text into vectors through an embedding model and
// owns the similarity contract used to rank candidates. Storage and
// approximate search are delegated to engine/semantic.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
)

// Model produces one vector per input text, in input order.
type Model interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Index wraps a Model with the ranking math.
type Index struct {
	model Model
}

// New creates an Index backed by model.
func New(model Model) *Index {
	return &Index{model: model}
}

// Dimensions reports the vector size of the underlying model.
func (ix *Index) Dimensions() int { return ix.model.Dimensions() }

// Embed returns one vector per text. An empty input never reaches the model.
// Model failures are returned wrapped in domain.ErrEmbedding; there is no
// fallback embedding.
func (ix *Index) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := ix.model.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: model returned %d vectors for %d texts", domain.ErrEmbedding, len(vecs), len(texts))
	}
	return vecs, nil
}

// EmbedOne embeds a single text, typically a query.
func (ix *Index) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := ix.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Similarity is the cosine similarity of a and b, in [-1, 1]. It is 0 when
// either vector has zero magnitude or the lengths differ.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / math.Sqrt(na*nb)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return s
}

// Ranked is a candidate position with its similarity to the query.
type Ranked struct {
	Index int
	Score float64
}

// Rank scores every candidate against query and returns at most topK of
// them, highest score first. Equal scores keep candidate order.
func Rank(query []float32, candidates [][]float32, topK int) []Ranked {
	if topK <= 0 || len(candidates) == 0 {
		return []Ranked{}
	}
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{Index: i, Score: Similarity(query, c)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
