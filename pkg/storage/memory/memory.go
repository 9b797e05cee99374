// Package memory provides an in-memory RunStore for single-instance
// deployments and tests. Runs are lost when the process restarts. When a
// size bound is set, the oldest run is evicted to make room.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/compii/playground/pkg/api"
	"github.com/compii/playground/pkg/storage"
)

type entry struct {
	run   *api.Run
	owner string
	elem  *list.Element
	seq   uint64 // insertion order, breaks created_at ties
}

// Store is an in-memory RunStore with bounded size.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   *list.List // front = newest, back = oldest
	maxSize int        // 0 = unlimited
	seq     uint64
}

var _ storage.RunStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// SaveRun stores a copy of run under the owner found in ctx.
func (s *Store) SaveRun(ctx context.Context, run *api.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[run.ID]; exists {
		return storage.ErrConflict
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	cp := *run
	s.seq++
	s.entries[run.ID] = &entry{
		run:   &cp,
		owner: storage.GetOwner(ctx),
		elem:  s.order.PushFront(run.ID),
		seq:   s.seq,
	}
	return nil
}

// GetRun retrieves a run by ID, scoped by owner when one is set.
func (s *Store) GetRun(ctx context.Context, id string) (*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || !visible(ctx, e) {
		return nil, storage.ErrNotFound
	}
	cp := *e.run
	return &cp, nil
}

// ListRuns returns a page of runs visible to the owner in ctx.
func (s *Store) ListRuns(ctx context.Context, opts storage.ListOptions) (*api.RunList, error) {
	s.mu.RLock()
	matches := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if visible(ctx, e) {
			matches = append(matches, e)
		}
	}
	s.mu.RUnlock()

	asc := opts.Ascending()
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.run.CreatedAt != b.run.CreatedAt {
			return (a.run.CreatedAt < b.run.CreatedAt) == asc
		}
		return (a.seq < b.seq) == asc
	})

	if opts.After != "" {
		idx := -1
		for i, e := range matches {
			if e.run.ID == opts.After {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, storage.ErrNotFound
		}
		matches = matches[idx+1:]
	}

	limit := opts.NormalizedLimit()
	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	result := &api.RunList{
		Object:  "list",
		Data:    make([]*api.Run, 0, len(matches)),
		HasMore: hasMore,
	}
	for _, e := range matches {
		cp := *e.run
		result.Data = append(result.Data, &cp)
	}
	if len(result.Data) > 0 {
		result.FirstID = result.Data[0].ID
		result.LastID = result.Data[len(result.Data)-1].ID
	}
	return result, nil
}

// Len returns the number of stored runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func visible(ctx context.Context, e *entry) bool {
	owner := storage.GetOwner(ctx)
	return owner == "" || e.owner == owner
}

// evictOldest removes the oldest entry. Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.order.Remove(back)
	delete(s.entries, id)
}
