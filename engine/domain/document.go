package domain

import (
	"fmt"
	"time"
)

// NewDocument returns a document in the processing state.
func NewDocument(id, filename, path string, now time.Time) Document {
	return Document{
		ID:        id,
		Filename:  filename,
		Status:    StatusProcessing,
		FilePath:  path,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete moves a processing document to completed. A completed document
// always has at least one chunk.
func (d Document) Complete(chunks int, now time.Time) (Document, error) {
	if d.Status != StatusProcessing {
		return d, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, StatusCompleted)
	}
	if chunks <= 0 {
		return d, NewValidationError("chunks_count", fmt.Sprint(chunks), ErrInvalidInput)
	}
	d.Status = StatusCompleted
	d.ChunksCount = chunks
	d.Error = ""
	d.UpdatedAt = now
	return d, nil
}

// Fail moves a processing document to failed with the given reason.
func (d Document) Fail(reason string, now time.Time) (Document, error) {
	if d.Status != StatusProcessing {
		return d, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, StatusFailed)
	}
	d.Status = StatusFailed
	d.Error = reason
	d.UpdatedAt = now
	return d, nil
}
