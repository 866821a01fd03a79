package atoms

import (
	"context"
	"fmt"
)

// ComputeFunc derives a value from other states. Every read must go through r
// (using Read) and pass ctx along so the read is attributed to the derived key.
type ComputeFunc[V any] func(ctx context.Context, r Reader) (V, error)

// Derived is a state whose value is computed from other states. On a
// DependencyGraphStorage it is recomputed whenever a state it read changes;
// on a MemoryStorage it is computed once, on first access.
type Derived[V any] struct {
	key     Key
	compute ComputeFunc[V]
}

// DefineDerived registers name in the default registry. It panics on
// registration errors.
func DefineDerived[V any](name string, compute ComputeFunc[V], opts ...KeyOption) *Derived[V] {
	derived, err := DefineDerivedIn(DefaultRegistry(), name, compute, opts...)
	if err != nil {
		panic(err)
	}
	return derived
}

// DefineDerivedIn registers name in registry.
func DefineDerivedIn[V any](registry *Registry, name string, compute ComputeFunc[V], opts ...KeyOption) (*Derived[V], error) {
	if registry == nil {
		return nil, fmt.Errorf("atoms: registry is required")
	}
	if compute == nil {
		return nil, fmt.Errorf("atoms: compute function for %q is nil", name)
	}
	key, err := registry.Register(name, typeOf[V](), opts...)
	if err != nil {
		return nil, err
	}
	return &Derived[V]{key: key, compute: compute}, nil
}

// Key returns the derived state's key.
func (d *Derived[V]) Key() Key {
	return d.key
}

// DefaultValue runs the computation with a reader owned by the derived key.
func (d *Derived[V]) DefaultValue(ctx context.Context, r Reader) (V, error) {
	if r.owner != d.key {
		r = r.ownedBy(d.key)
	}
	return d.compute(ctx, r)
}

func (d *Derived[V]) recomputable() {}
