package persist

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	atoms "github.com/goliatone/go-atoms"
	"github.com/goliatone/go-atoms/internal/hydrate"
)

// Persister adapts a Store[any] to atoms.Persister. Each persistent key is
// stored at Ref{Namespace, key.Path()}.
type Persister struct {
	store     Store[any]
	namespace string
	decoder   *hydrate.Decoder
	now       func() time.Time
}

var _ atoms.Persister = (*Persister)(nil)

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithNamespace sets the namespace refs are stored under.
func WithNamespace(namespace string) PersisterOption {
	return func(p *Persister) {
		p.namespace = strings.TrimSpace(namespace)
	}
}

// WithDecoderOptions configures how stored payloads are decoded back into
// the key's value type.
func WithDecoderOptions(opts ...hydrate.Option) PersisterOption {
	return func(p *Persister) {
		p.decoder = hydrate.NewDecoder(opts...)
	}
}

// WithPersisterClock overrides the clock stamped on saved Meta.
func WithPersisterClock(now func() time.Time) PersisterOption {
	return func(p *Persister) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPersister(store Store[any], opts ...PersisterOption) *Persister {
	p := &Persister{
		store:     store,
		namespace: DefaultNamespace,
		decoder:   hydrate.NewDecoder(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.namespace == "" {
		p.namespace = DefaultNamespace
	}
	return p
}

// Ref returns where key is stored.
func (p *Persister) Ref(key atoms.Key) Ref {
	return Ref{Namespace: p.namespace, Path: key.Path()}
}

// Load implements atoms.Persister.
func (p *Persister) Load(ctx context.Context, key atoms.Key, valueType reflect.Type) (any, bool, error) {
	if p.store == nil {
		return nil, false, fmt.Errorf("persist: store is required")
	}
	ref := p.Ref(key)
	snapshot, _, ok, err := p.store.Load(ctx, ref)
	if err != nil || !ok {
		return nil, false, err
	}
	value, err := p.decoder.DecodeType(hydrate.Context{Key: ref.Path, Namespace: ref.Namespace}, snapshot, valueType)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Save implements atoms.Persister.
func (p *Persister) Save(ctx context.Context, key atoms.Key, value any) error {
	if p.store == nil {
		return fmt.Errorf("persist: store is required")
	}
	_, err := p.store.Save(ctx, p.Ref(key), value, Meta{
		UpdatedAt: p.now(),
		Extra:     map[string]string{"type": typeName(key)},
	})
	return err
}

func typeName(key atoms.Key) string {
	if t := key.ValueType(); t != nil {
		return t.String()
	}
	return "unknown"
}
