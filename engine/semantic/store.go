// Package semantic stores chunk vectors and answers similarity queries.
// Qdrant is the production backend; MemoryStore serves tests and
// single-process setups.
package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
)

// Payload keys written with every point.
const (
	KeyFileID   = "file_id"
	KeyFilename = "filename"
	KeyChunkID  = "chunk_id"
	KeyContent  = "content"
)

// Store is the vector-store collaborator. Scores are cosine similarities,
// higher first.
type Store interface {
	// Insert writes chunks, which must carry embeddings.
	Insert(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchHit, error)
	// DeleteByFileID removes every chunk of one document.
	DeleteByFileID(ctx context.Context, fileID string) error
	// Reset drops every chunk.
	Reset(ctx context.Context) error
	Close() error
}

// ChunkID is the readable id of a chunk: "{file_id}_{index}".
func ChunkID(fileID string, index int) string {
	return fmt.Sprintf("%s_%d", fileID, index)
}

// PointID derives a stable UUID from the chunk id, so re-indexing a document
// overwrites its points.
func PointID(fileID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(ChunkID(fileID, index))).String()
}

func checkEmbeddings(chunks []domain.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("semantic: chunk %s has no embedding: %w", ChunkID(c.DocID, c.Index), domain.ErrInvalidInput)
		}
	}
	return nil
}

var (
	_ Store = (*QdrantStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
