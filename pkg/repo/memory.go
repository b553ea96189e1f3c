package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepo keeps entities in a map. List returns them sorted by less, or
// in insertion order when less is nil.
type MemoryRepo[T any, ID comparable] struct {
	mu    sync.RWMutex
	items map[ID]T
	order []ID
	key   func(T) ID
	less  func(a, b T) bool
}

func NewMemoryRepo[T any, ID comparable](key func(T) ID, less func(a, b T) bool) *MemoryRepo[T, ID] {
	return &MemoryRepo[T, ID]{items: map[ID]T{}, key: key, less: less}
}

var _ Repository[any, string] = (*MemoryRepo[any, string])(nil)

func (m *MemoryRepo[T, ID]) Get(_ context.Context, id ID) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%v: %w", id, ErrNotFound)
	}
	return v, nil
}

func (m *MemoryRepo[T, ID]) List(_ context.Context, opts ListOpts) ([]T, error) {
	m.mu.RLock()
	all := make([]T, 0, len(m.order))
	for _, id := range m.order {
		all = append(all, m.items[id])
	}
	m.mu.RUnlock()

	if m.less != nil {
		sort.SliceStable(all, func(i, j int) bool { return m.less(all[i], all[j]) })
	}
	if opts.Offset >= len(all) {
		return []T{}, nil
	}
	all = all[max(opts.Offset, 0):]
	if l := opts.limit(); len(all) > l {
		all = all[:l]
	}
	return all, nil
}

func (m *MemoryRepo[T, ID]) Create(_ context.Context, entity T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.key(entity)
	if _, ok := m.items[id]; ok {
		var zero T
		return zero, fmt.Errorf("repo: %v already exists", id)
	}
	m.items[id] = entity
	m.order = append(m.order, id)
	return entity, nil
}

func (m *MemoryRepo[T, ID]) Update(_ context.Context, entity T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.key(entity)
	if _, ok := m.items[id]; !ok {
		var zero T
		return zero, fmt.Errorf("%v: %w", id, ErrNotFound)
	}
	m.items[id] = entity
	return entity, nil
}

func (m *MemoryRepo[T, ID]) Delete(_ context.Context, id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%v: %w", id, ErrNotFound)
	}
	delete(m.items, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryRepo[T, ID]) DeleteAll(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.items)
	m.items = map[ID]T{}
	m.order = nil
	return n, nil
}
