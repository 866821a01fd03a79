package persist

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-atoms/internal/clone"
)

// MemoryStore is an in-memory Store keyed by Ref.Identifier. Snapshots are
// deep-copied on the way in and out.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[T]
	now     func() time.Time
}

type memoryRecord[T any] struct {
	ref      Ref
	snapshot T
	meta     Meta
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: map[string]memoryRecord[T]{}, now: time.Now}
}

func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return clone.Of(record.snapshot), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[key]
	if err := checkETag(meta.ETag, current.meta, exists); err != nil {
		return current.meta, err
	}
	stored := stamp(meta, s.now())
	s.records[key] = memoryRecord[T]{ref: ref, snapshot: clone.Of(snapshot), meta: stored}
	return cloneMeta(stored), nil
}

// List implements Lister.
func (s *MemoryStore[T]) List(_ context.Context, namespace string) ([]Ref, error) {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	s.mu.RLock()
	refs := make([]Ref, 0, len(s.records))
	for key, record := range s.records {
		if strings.HasPrefix(key, ns+"/") {
			refs = append(refs, Ref{Namespace: ns, Path: record.ref.Path})
		}
	}
	s.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}
