package atoms

import (
	"context"
	"reflect"
)

// Persister stores values of keys registered with Persisted. Load reports
// ok=false when nothing was stored yet, in which case the default factory is
// used.
type Persister interface {
	Load(ctx context.Context, key Key, valueType reflect.Type) (value any, ok bool, err error)
	Save(ctx context.Context, key Key, value any) error
}
