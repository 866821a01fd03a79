package atoms

import (
	"context"
	"reflect"
)

// Storage is the backend contract shared by the flat and dependency-tracking
// implementations. It is type-erased; the generic helpers in this package
// (Get, Set, Observe, Read) recover static types on top of it.
type Storage interface {
	// GetValue returns the current value for req.Key, materializing it from
	// req.Default on first access. A non-zero req.Owner attributes the read to
	// that owner's computation.
	GetValue(ctx context.Context, req Request) (any, error)
	// SetValue replaces the value for key, notifies observers in registration
	// order and emits one telemetry mutation event before returning.
	SetValue(ctx context.Context, key, owner Key, value any) error
	// Observe registers observer for every write targeting key.
	Observe(key Key, observer Observer) (cancel func())
}

// Request describes one read.
type Request struct {
	Key   Key
	Owner Key
	// Type is the static type the caller expects. Nil accepts whatever the
	// slot holds.
	Type reflect.Type
	// Default produces the initial value. It receives a reader owned by Key.
	Default func(ctx context.Context, r Reader) (any, error)
	// Derived marks Default as a computation over other keys that must be
	// re-run when any of them changes.
	Derived bool
}

// Change is delivered to observers after a write.
type Change struct {
	Key   Key
	Owner Key
	Value any
}

// Observer receives changes synchronously, in registration order.
type Observer interface {
	OnChange(ctx context.Context, change Change)
}

// ObserverFunc allows plain functions to satisfy Observer.
type ObserverFunc func(ctx context.Context, change Change)

// OnChange dispatches to the underlying function.
func (fn ObserverFunc) OnChange(ctx context.Context, change Change) {
	if fn == nil {
		return
	}
	fn(ctx, change)
}
