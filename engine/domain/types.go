// Package domain defines the core types, lifecycle rules and validation for
// the document question-answering engine. It is the validation gate at the
// upload and question entry points.
package domain

import "time"

// Status is the lifecycle state of an uploaded document.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is an uploaded PDF tracked by the registry.
type Document struct {
	ID          string    `json:"file_id"`
	Filename    string    `json:"filename"`
	Status      Status    `json:"status"`
	FilePath    string    `json:"file_path,omitempty"`
	ChunksCount int       `json:"chunks_count"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Chunk is an indexed span of a document's text.
type Chunk struct {
	DocID     string    `json:"file_id"`
	Filename  string    `json:"filename"`
	Index     int       `json:"chunk_id"`
	Text      string    `json:"content"`
	Embedding []float32 `json:"-"`
}

// SearchHit is a ranked chunk returned by a similarity search.
// Score is a cosine similarity: higher is more similar.
type SearchHit struct {
	ID       string  `json:"id"`
	DocID    string  `json:"file_id"`
	Filename string  `json:"filename"`
	ChunkID  int     `json:"chunk_id"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}
