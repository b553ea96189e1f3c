// Package repo defines the generic Repository interface with Neo4j and
// in-memory implementations.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no entity has the requested ID.
var ErrNotFound = errors.New("repo: not found")

// Repository is a generic CRUD interface.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
	// DeleteAll removes every entity and returns how many were removed.
	DeleteAll(ctx context.Context) (int, error)
}

// DefaultLimit applies when ListOpts.Limit is not positive.
const DefaultLimit = 1000

// ListOpts controls pagination for List.
type ListOpts struct {
	Offset int
	Limit  int
}

func (o ListOpts) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}
