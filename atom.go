package atoms

import (
	"context"
	"fmt"
	"reflect"
)

// State is the contract every unit of atomic state satisfies: one key and a
// way to produce the value used when the key is read before any write.
type State[V any] interface {
	Key() Key
	DefaultValue(ctx context.Context, r Reader) (V, error)
}

// recomputable marks states whose default value is a computation over other
// states and must be re-run when those states change.
type recomputable interface {
	recomputable()
}

// Atom is a plain state unit with a pure default factory.
type Atom[V any] struct {
	key          Key
	defaultValue func() V
}

// Define registers name in the default registry and returns the atom. It
// panics when the name is empty or already registered; atoms are expected to
// be declared once, at package initialisation.
func Define[V any](name string, defaultValue func() V, opts ...KeyOption) *Atom[V] {
	atom, err := DefineIn(DefaultRegistry(), name, defaultValue, opts...)
	if err != nil {
		panic(err)
	}
	return atom
}

// DefineIn registers name in registry and returns the atom.
func DefineIn[V any](registry *Registry, name string, defaultValue func() V, opts ...KeyOption) (*Atom[V], error) {
	if registry == nil {
		return nil, fmt.Errorf("atoms: registry is required")
	}
	if defaultValue == nil {
		return nil, fmt.Errorf("atoms: default value factory for %q is nil", name)
	}
	key, err := registry.Register(name, typeOf[V](), opts...)
	if err != nil {
		return nil, err
	}
	return &Atom[V]{key: key, defaultValue: defaultValue}, nil
}

// Key returns the atom's storage key.
func (a *Atom[V]) Key() Key {
	return a.key
}

// DefaultValue invokes the default factory.
func (a *Atom[V]) DefaultValue(context.Context, Reader) (V, error) {
	return a.defaultValue(), nil
}

// Family declares a set of atoms sharing one registration and differing by a
// parameter. Members are addressed with Of.
type Family[P comparable, V any] struct {
	key          Key
	defaultValue func(P) V
}

// DefineFamily registers a parameterized atom in the default registry.
func DefineFamily[P comparable, V any](name string, defaultValue func(P) V, opts ...KeyOption) *Family[P, V] {
	family, err := DefineFamilyIn(DefaultRegistry(), name, defaultValue, opts...)
	if err != nil {
		panic(err)
	}
	return family
}

// DefineFamilyIn registers a parameterized atom in registry.
func DefineFamilyIn[P comparable, V any](registry *Registry, name string, defaultValue func(P) V, opts ...KeyOption) (*Family[P, V], error) {
	if registry == nil {
		return nil, fmt.Errorf("atoms: registry is required")
	}
	if defaultValue == nil {
		return nil, fmt.Errorf("atoms: default value factory for %q is nil", name)
	}
	key, err := registry.Register(name, typeOf[V](), opts...)
	if err != nil {
		return nil, err
	}
	return &Family[P, V]{key: key, defaultValue: defaultValue}, nil
}

// Of returns the member atom for param. Repeated calls with equal params
// address the same slot. When P is an interface type the discriminator
// carries the dynamic type too, so 1 and "1" stay distinct.
func (f *Family[P, V]) Of(param P) *Atom[V] {
	return &Atom[V]{
		key: f.key.With(discriminator(param)),
		defaultValue: func() V {
			return f.defaultValue(param)
		},
	}
}

// Reader is the explicit computation token threaded through reads. A reader
// with an owner attributes every read to that owner's computation.
type Reader struct {
	storage Storage
	owner   Key
}

// NewReader returns a reader without an owner.
func NewReader(storage Storage) Reader {
	return Reader{storage: storage}
}

// Owner returns the key whose computation this reader belongs to.
func (r Reader) Owner() Key {
	return r.owner
}

// Storage returns the backend the reader reads from.
func (r Reader) Storage() Storage {
	return r.storage
}

func (r Reader) ownedBy(owner Key) Reader {
	r.owner = owner
	return r
}

func typeOf[V any]() reflect.Type {
	return reflect.TypeOf((*V)(nil)).Elem()
}

func discriminator[P any](param P) string {
	if typeOf[P]().Kind() == reflect.Interface {
		return fmt.Sprintf("%T:%v", param, param)
	}
	return fmt.Sprint(param)
}
