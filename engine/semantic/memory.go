package semantic

import (
	"context"
	"sync"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/embedding"
)

// MemoryStore keeps chunks in insertion order and ranks them with
// embedding.Rank. Writes take the lock for the whole batch, so a search sees
// all of a document's chunks or none.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
	index  map[string]int // ChunkID -> position in chunks
}

func NewMemory() *MemoryStore {
	return &MemoryStore{index: map[string]int{}}
}

func (m *MemoryStore) Insert(_ context.Context, chunks []domain.Chunk) error {
	if err := checkEmbeddings(chunks); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		id := ChunkID(c.DocID, c.Index)
		if i, ok := m.index[id]; ok {
			m.chunks[i] = c
			continue
		}
		m.index[id] = len(m.chunks)
		m.chunks = append(m.chunks, c)
	}
	return nil
}

func (m *MemoryStore) Search(_ context.Context, vector []float32, k int) ([]domain.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vecs := make([][]float32, len(m.chunks))
	for i, c := range m.chunks {
		vecs[i] = c.Embedding
	}
	ranked := embedding.Rank(vector, vecs, k)
	hits := make([]domain.SearchHit, len(ranked))
	for i, r := range ranked {
		c := m.chunks[r.Index]
		hits[i] = domain.SearchHit{
			ID:       ChunkID(c.DocID, c.Index),
			DocID:    c.DocID,
			Filename: c.Filename,
			ChunkID:  c.Index,
			Content:  c.Text,
			Score:    r.Score,
		}
	}
	return hits, nil
}

func (m *MemoryStore) DeleteByFileID(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocID != fileID {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	m.reindex()
	return nil
}

func (m *MemoryStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	m.index = map[string]int{}
	return nil
}

// Len is the number of stored chunks.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) reindex() {
	m.index = make(map[string]int, len(m.chunks))
	for i, c := range m.chunks {
		m.index[ChunkID(c.DocID, c.Index)] = i
	}
}
