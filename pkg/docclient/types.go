package docclient

import "github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"

// Metadata is the payload stored with every indexed chunk.
type Metadata struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	ChunkID  int    `json:"chunk_id"`
}

// SearchResult is one ranked chunk in a search response.
type SearchResult struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Query   string         `json:"query,omitempty"`
	Message string         `json:"message,omitempty"`
}

// UploadResponse is the body of POST /upload-pdf.
type UploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// DocumentInfo is a document summary as listed by GET /documents.
type DocumentInfo struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	ChunksCount int    `json:"chunks_count"`
}

// DocumentsResponse is the body of GET /documents.
type DocumentsResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the body of a POST /api/ask reply.
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Context string   `json:"context,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Info summarises a document for listings.
func Info(d domain.Document) DocumentInfo {
	return DocumentInfo{FileID: d.ID, Filename: d.Filename, Status: string(d.Status), ChunksCount: d.ChunksCount}
}

// Result converts a search hit to its wire form.
func Result(h domain.SearchHit) SearchResult {
	return SearchResult{
		Content:  h.Content,
		Metadata: Metadata{FileID: h.DocID, Filename: h.Filename, ChunkID: h.ChunkID},
		Score:    h.Score,
	}
}

// Hit converts a wire search result back to a search hit.
func (r SearchResult) Hit() domain.SearchHit {
	return domain.SearchHit{
		DocID:    r.Metadata.FileID,
		Filename: r.Metadata.Filename,
		ChunkID:  r.Metadata.ChunkID,
		Content:  r.Content,
		Score:    r.Score,
	}
}
