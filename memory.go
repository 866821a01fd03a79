package atoms

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/goliatone/go-atoms/internal/clone"
)

// MemoryStorage is the flat backend: one slot per key, materialized on first
// access and kept for the lifetime of the storage.
//
// Writes are serialized. Each write mutates the slot, notifies observers,
// emits telemetry and persists before the next write starts. Reads only take
// the slot lock, so observers may read while being notified; writing from an
// observer with the notification context fails with ErrReentrantWrite.
type MemoryStorage struct {
	cfg config

	mu    sync.Mutex
	slots map[Key]*slot

	writeMu sync.Mutex

	// waits maps a key being produced to the pending key its producer is
	// blocked on. Guarded by mu.
	waits map[Key]Key

	// graph is nil for the flat backend.
	graph *Graph
}

// NewMemoryStorage constructs a flat backend.
func NewMemoryStorage(opts ...Option) *MemoryStorage {
	return newMemoryStorage(applyOptions(opts), nil)
}

func newMemoryStorage(cfg config, graph *Graph) *MemoryStorage {
	return &MemoryStorage{
		cfg:   cfg,
		slots: make(map[Key]*slot),
		waits: make(map[Key]Key),
		graph: graph,
	}
}

var _ Storage = (*MemoryStorage)(nil)

// GetValue implements Storage.
func (s *MemoryStorage) GetValue(ctx context.Context, req Request) (any, error) {
	if req.Key.IsZero() {
		return nil, ErrZeroKey
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if registered := req.Key.ValueType(); registered != nil && req.Type != nil && registered != req.Type {
		return nil, &TypeMismatchError{Key: req.Key, Expected: registered, Actual: req.Type}
	}
	if s.graph != nil && !req.Owner.IsZero() {
		if err := s.graph.Add(req.Owner, req.Key); err != nil {
			s.cfg.logger.Debugw("rejected dependency edge", "owner", req.Owner.Path(), "key", req.Key.Path(), "error", err)
			return nil, err
		}
	}
	if err := materializationCycle(ctx, s, req.Key); err != nil {
		return nil, err
	}

	for {
		s.mu.Lock()
		sl := s.slotLocked(req.Key)
		if sl.ready {
			value, valueType := sl.value, sl.valueType
			s.mu.Unlock()
			if req.Type != nil && valueType != nil && req.Type != valueType {
				return nil, &TypeMismatchError{Key: req.Key, Expected: valueType, Actual: req.Type}
			}
			return value, nil
		}
		if pending := sl.pending; pending != nil {
			held := materializingKeys(ctx, s)
			if err := s.waitCycleLocked(held, req.Key); err != nil {
				s.mu.Unlock()
				return nil, err
			}
			for _, key := range held {
				s.waits[key] = req.Key
			}
			s.mu.Unlock()
			select {
			case <-pending:
				s.releaseWaits(held)
				continue
			case <-ctx.Done():
				s.releaseWaits(held)
				return nil, ctx.Err()
			}
		}
		pending := make(chan struct{})
		sl.pending = pending
		s.mu.Unlock()

		value, err := s.materialize(ctx, req, sl)

		sl.pending = nil
		close(pending)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if sl.ready {
			// A write landed while the default was being produced; it wins.
			value = sl.value
		} else if err := sl.assign(value); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if req.Derived {
			derived := req
			derived.Owner = NoOwner
			sl.derived = &derived
		}
		s.mu.Unlock()
		s.cfg.logger.Debugw("materialized state", "key", req.Key.Path(), "derived", req.Derived)
		return value, nil
	}
}

// materialize produces req's value, producing again whenever a dependency was
// written while production ran. It returns with s.mu held.
func (s *MemoryStorage) materialize(ctx context.Context, req Request, sl *slot) (any, error) {
	for {
		value, err := s.produce(ctx, req, true)
		s.mu.Lock()
		retry := err == nil && sl.stale && !sl.ready
		sl.stale = false
		if !retry {
			return value, err
		}
		s.mu.Unlock()
		s.cfg.logger.Debugw("dependency written during materialization", "key", req.Key.Path())
	}
}

// SetValue implements Storage.
func (s *MemoryStorage) SetValue(ctx context.Context, key, owner Key, value any) error {
	if key.IsZero() {
		return ErrZeroKey
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if notifying(ctx, s) {
		return fmt.Errorf("%w: %s", ErrReentrantWrite, key)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx = context.WithValue(ctx, notifyingKey{storage: s}, true)
	if err := s.apply(ctx, key, owner, value); err != nil {
		return err
	}
	if s.graph == nil {
		return nil
	}
	return s.propagate(ctx, key)
}

// Observe implements Storage. Observers run in registration order. The
// returned cancel function is idempotent.
func (s *MemoryStorage) Observe(key Key, observer Observer) func() {
	if key.IsZero() || observer == nil {
		return func() {}
	}
	s.mu.Lock()
	sl := s.slotLocked(key)
	id := sl.addObserver(observer)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			sl.removeObserver(id)
			s.mu.Unlock()
		})
	}
}

// Contains reports whether key has been materialized or written.
func (s *MemoryStorage) Contains(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key]
	return ok && sl.ready
}

// Keys returns the materialized keys in registration order.
func (s *MemoryStorage) Keys() []Key {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.slots))
	for key, sl := range s.slots {
		if sl.ready {
			keys = append(keys, key)
		}
	}
	s.mu.Unlock()
	sortKeys(keys)
	return keys
}

// Snapshot returns deep copies of every materialized value keyed by path.
func (s *MemoryStorage) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.slots))
	for key, sl := range s.slots {
		if !sl.ready {
			continue
		}
		out[key.Path()] = clone.Value(sl.value)
	}
	return out
}

// apply writes value and runs the notification, telemetry and persistence
// steps. The caller holds writeMu.
func (s *MemoryStorage) apply(ctx context.Context, key, owner Key, value any) error {
	s.mu.Lock()
	sl := s.slotLocked(key)
	if err := sl.assign(value); err != nil {
		s.mu.Unlock()
		return err
	}
	observers := sl.observerSnapshot()
	s.mu.Unlock()

	change := Change{Key: key, Owner: owner, Value: value}
	for _, observer := range observers {
		observer.OnChange(ctx, change)
	}

	var errs []error
	event := MutationEvent{
		Category:   MutationCategory,
		Path:       key.Path(),
		Value:      renderValue(value),
		Context:    mutationContext(ctx, owner),
		Key:        key,
		Owner:      owner,
		OccurredAt: s.cfg.now(),
	}
	if err := s.cfg.telemetry.RecordMutation(ctx, event); err != nil {
		errs = append(errs, fmt.Errorf("atoms: telemetry for %s: %w", key, err))
	}
	if key.Persistent() && s.cfg.persister != nil {
		if err := s.cfg.persister.Save(ctx, key, value); err != nil {
			errs = append(errs, fmt.Errorf("atoms: persist %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// propagate recomputes every materialized derived dependent of key in
// dependency order and writes the results. A dependent that fails, and every
// dependent downstream of it, is dropped back to unmaterialized so the next
// read computes it afresh; the remaining dependents are still recomputed.
// Pending dependents are flagged stale. The caller holds writeMu.
func (s *MemoryStorage) propagate(ctx context.Context, key Key) error {
	var errs []error
	failed := make(map[Key]struct{})
	for _, dependent := range s.graph.TransitiveDependents(key) {
		if s.readsAny(dependent, failed) {
			failed[dependent] = struct{}{}
			s.invalidate(dependent)
			continue
		}

		s.mu.Lock()
		var req Request
		sl, ok := s.slots[dependent]
		if ok && !sl.ready && sl.pending != nil {
			sl.stale = true
		}
		recompute := ok && sl.ready && sl.derived != nil
		if recompute {
			req = *sl.derived
		}
		s.mu.Unlock()
		if !recompute {
			continue
		}

		value, err := s.produce(ctx, req, false)
		if err != nil {
			failed[dependent] = struct{}{}
			s.invalidate(dependent)
			errs = append(errs, fmt.Errorf("atoms: recompute %s: %w", dependent, err))
			continue
		}
		s.cfg.logger.Debugw("recomputed derived state", "key", dependent.Path(), "trigger", key.Path())
		if err := s.apply(ctx, dependent, key, value); err != nil {
			if errors.Is(err, ErrTypeMismatch) {
				failed[dependent] = struct{}{}
				s.invalidate(dependent)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *MemoryStorage) readsAny(key Key, keys map[Key]struct{}) bool {
	if len(keys) == 0 {
		return false
	}
	for _, dependency := range s.graph.Dependencies(key) {
		if _, ok := keys[dependency]; ok {
			return true
		}
	}
	return false
}

// invalidate drops a derived value so the next read materializes it again.
func (s *MemoryStorage) invalidate(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key]
	if !ok || !sl.ready {
		return
	}
	sl.ready = false
	sl.value = nil
	sl.derived = nil
	s.cfg.logger.Debugw("invalidated derived state", "key", key.Path())
}

// valueOf returns a copy of key's materialized value.
func (s *MemoryStorage) valueOf(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key]
	if !ok || !sl.ready {
		return nil, false
	}
	return clone.Value(sl.value), true
}

// produce runs the default or derived computation for req. Outgoing edges of
// req.Key are reset first so they only reflect this computation.
func (s *MemoryStorage) produce(ctx context.Context, req Request, usePersister bool) (any, error) {
	ctx = withMaterializing(ctx, s, req.Key)
	if s.graph != nil {
		s.graph.Reset(req.Key)
	}
	if usePersister && req.Key.Persistent() && s.cfg.persister != nil {
		value, ok, err := s.cfg.persister.Load(ctx, req.Key, expectedType(req))
		if err != nil {
			return nil, fmt.Errorf("atoms: load persisted %s: %w", req.Key, err)
		}
		if ok {
			return value, nil
		}
	}
	if req.Default == nil {
		return nil, fmt.Errorf("atoms: no default value for %s", req.Key)
	}
	reader := Reader{storage: s, owner: req.Key}
	return req.Default(ctx, reader)
}

func (s *MemoryStorage) slotLocked(key Key) *slot {
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{key: key}
		s.slots[key] = sl
	}
	return sl
}

func expectedType(req Request) reflect.Type {
	if req.Type != nil {
		return req.Type
	}
	return req.Key.ValueType()
}

type notifyingKey struct {
	storage *MemoryStorage
}

func notifying(ctx context.Context, s *MemoryStorage) bool {
	active, _ := ctx.Value(notifyingKey{storage: s}).(bool)
	return active
}

type materializingKey struct{}

type materialization struct {
	storage *MemoryStorage
	key     Key
	parent  *materialization
}

func withMaterializing(ctx context.Context, s *MemoryStorage, key Key) context.Context {
	parent, _ := ctx.Value(materializingKey{}).(*materialization)
	return context.WithValue(ctx, materializingKey{}, &materialization{storage: s, key: key, parent: parent})
}

// materializingKeys lists the keys ctx is producing on s, outermost first.
func materializingKeys(ctx context.Context, s *MemoryStorage) []Key {
	current, _ := ctx.Value(materializingKey{}).(*materialization)
	var keys []Key
	for node := current; node != nil; node = node.parent {
		if node.storage == s {
			keys = append(keys, node.key)
		}
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// waitCycleLocked reports a *CycleError when blocking on target would wait,
// through other producers, for one of the held keys. The caller holds mu.
func (s *MemoryStorage) waitCycleLocked(held []Key, target Key) error {
	if len(held) == 0 {
		return nil
	}
	index := make(map[Key]int, len(held))
	for i, key := range held {
		index[key] = i
	}
	path := []Key{target}
	seen := map[Key]struct{}{}
	for next := target; ; {
		if i, ok := index[next]; ok {
			cycle := append([]Key(nil), held[i:]...)
			return &CycleError{Path: append(cycle, path...)}
		}
		if _, ok := seen[next]; ok {
			return nil
		}
		seen[next] = struct{}{}
		blocked, ok := s.waits[next]
		if !ok {
			return nil
		}
		path = append(path, blocked)
		next = blocked
	}
}

func (s *MemoryStorage) releaseWaits(held []Key) {
	if len(held) == 0 {
		return
	}
	s.mu.Lock()
	for _, key := range held {
		delete(s.waits, key)
	}
	s.mu.Unlock()
}

// materializationCycle detects a read of a key whose value is being produced
// further up the same call chain.
func materializationCycle(ctx context.Context, s *MemoryStorage, key Key) error {
	current, _ := ctx.Value(materializingKey{}).(*materialization)
	var chain []Key
	for node := current; node != nil; node = node.parent {
		if node.storage != s {
			continue
		}
		chain = append(chain, node.key)
		if node.key == key {
			path := make([]Key, 0, len(chain)+1)
			for i := len(chain) - 1; i >= 0; i-- {
				path = append(path, chain[i])
			}
			path = append(path, key)
			return &CycleError{Path: path}
		}
	}
	return nil
}
