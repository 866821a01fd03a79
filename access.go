package atoms

import (
	"context"
	"fmt"
	"reflect"
)

// Get returns the current value of state, materializing it on first access.
func Get[V any](ctx context.Context, storage Storage, state State[V]) (V, error) {
	return Read(ctx, NewReader(storage), state)
}

// Read returns the current value of state. When r has an owner the read is
// attributed to the owner's computation.
func Read[V any](ctx context.Context, r Reader, state State[V]) (V, error) {
	var zero V
	if r.storage == nil {
		return zero, ErrStorageRequired
	}
	if state == nil {
		return zero, fmt.Errorf("atoms: state is nil")
	}
	key := state.Key()
	_, derived := any(state).(recomputable)
	raw, err := r.storage.GetValue(ctx, Request{
		Key:     key,
		Owner:   r.owner,
		Type:    typeOf[V](),
		Derived: derived,
		Default: func(ctx context.Context, owned Reader) (any, error) {
			value, err := state.DefaultValue(ctx, owned)
			if err != nil {
				return nil, err
			}
			return value, nil
		},
	})
	if err != nil {
		return zero, err
	}
	return cast[V](key, raw)
}

// Set writes value for state.
func Set[V any](ctx context.Context, storage Storage, state State[V], value V) error {
	return SetOnBehalf(ctx, storage, NoOwner, state, value)
}

// SetOnBehalf writes value for state, attributing the write to owner.
func SetOnBehalf[V any](ctx context.Context, storage Storage, owner Key, state State[V], value V) error {
	if storage == nil {
		return ErrStorageRequired
	}
	if state == nil {
		return fmt.Errorf("atoms: state is nil")
	}
	return storage.SetValue(ctx, state.Key(), owner, value)
}

// Update reads state, applies fn and writes the result. The read and the write
// are two separate storage operations; a concurrent writer may land between
// them.
func Update[V any](ctx context.Context, storage Storage, state State[V], fn func(V) V) (V, error) {
	var zero V
	if fn == nil {
		return zero, fmt.Errorf("atoms: update function is nil")
	}
	current, err := Get(ctx, storage, state)
	if err != nil {
		return zero, err
	}
	next := fn(current)
	if err := Set(ctx, storage, state, next); err != nil {
		return zero, err
	}
	return next, nil
}

// Observe registers fn for every write to state. Call the returned function
// to stop observing.
func Observe[V any](storage Storage, state State[V], fn func(ctx context.Context, value V)) func() {
	if storage == nil || state == nil || fn == nil {
		return func() {}
	}
	key := state.Key()
	return storage.Observe(key, ObserverFunc(func(ctx context.Context, change Change) {
		value, err := cast[V](key, change.Value)
		if err != nil {
			return
		}
		fn(ctx, value)
	}))
}

func cast[V any](key Key, raw any) (V, error) {
	var zero V
	if raw == nil {
		return zero, nil
	}
	value, ok := raw.(V)
	if !ok {
		return zero, &TypeMismatchError{Key: key, Expected: reflect.TypeOf(raw), Actual: typeOf[V]()}
	}
	return value, nil
}
