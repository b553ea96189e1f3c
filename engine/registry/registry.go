// Package registry tracks uploaded documents through their lifecycle:
// processing, then completed or failed. Terminal documents only change by
// deletion.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/repo"
)

// Label is the Neo4j node label for documents.
const Label = "Document"

// Registry owns document records.
type Registry struct {
	repo repo.Repository[domain.Document, string]
	now  func() time.Time
}

func New(r repo.Repository[domain.Document, string]) *Registry {
	return &Registry{repo: r, now: time.Now}
}

// NewMemory returns a registry backed by an in-memory repository.
func NewMemory() *Registry {
	return New(repo.NewMemoryRepo(
		func(d domain.Document) string { return d.ID },
		newestFirst,
	))
}

// NewNeo4j returns a registry storing Document nodes keyed by file_id.
func NewNeo4j(driver neo4j.DriverWithContext) *Registry {
	return New(repo.NewNeo4jRepo[domain.Document, string](
		driver, Label, toProps, fromRecord,
		repo.WithIDKey[domain.Document, string]("file_id"),
		repo.WithOrderBy[domain.Document, string]("created_at"),
	))
}

func newestFirst(a, b domain.Document) bool { return a.CreatedAt.After(b.CreatedAt) }

// Create records a new document in the processing state.
func (r *Registry) Create(ctx context.Context, id, filename, path string) (domain.Document, error) {
	doc := domain.NewDocument(id, filename, path, r.now().UTC())
	created, err := r.repo.Create(ctx, doc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("registry: create %s: %w", id, err)
	}
	return created, nil
}

func (r *Registry) Get(ctx context.Context, id string) (domain.Document, error) {
	doc, err := r.repo.Get(ctx, id)
	if err != nil {
		return domain.Document{}, mapErr("get", id, err)
	}
	return doc, nil
}

// MarkCompleted records a successful ingestion of chunks chunks.
func (r *Registry) MarkCompleted(ctx context.Context, id string, chunks int) (domain.Document, error) {
	return r.transition(ctx, id, func(d domain.Document) (domain.Document, error) {
		return d.Complete(chunks, r.now().UTC())
	})
}

// MarkFailed records a failed ingestion with the reason shown to users.
func (r *Registry) MarkFailed(ctx context.Context, id, reason string) (domain.Document, error) {
	return r.transition(ctx, id, func(d domain.Document) (domain.Document, error) {
		return d.Fail(reason, r.now().UTC())
	})
}

func (r *Registry) transition(ctx context.Context, id string, next func(domain.Document) (domain.Document, error)) (domain.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	doc, err = next(doc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("registry: %s: %w", id, err)
	}
	updated, err := r.repo.Update(ctx, doc)
	if err != nil {
		return domain.Document{}, mapErr("update", id, err)
	}
	return updated, nil
}

// List returns every document, newest first.
func (r *Registry) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := r.repo.List(ctx, repo.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	sort.SliceStable(docs, func(i, j int) bool { return newestFirst(docs[i], docs[j]) })
	return docs, nil
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return mapErr("delete", id, err)
	}
	return nil
}

// Reset removes every document record.
func (r *Registry) Reset(ctx context.Context) (int, error) {
	n, err := r.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("registry: reset: %w", err)
	}
	return n, nil
}

func mapErr(op, id string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("registry: %s %s: %w", op, id, domain.ErrNotFound)
	}
	return fmt.Errorf("registry: %s %s: %w", op, id, err)
}
