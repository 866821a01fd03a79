package atoms

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrKeyNameRequired indicates a registration without a name.
	ErrKeyNameRequired = errors.New("atoms: key name must not be empty")
	// ErrDuplicateKey indicates a name was registered twice in the same registry.
	ErrDuplicateKey = errors.New("atoms: key already registered")
	// ErrValueTypeRequired indicates a registration without a value type.
	ErrValueTypeRequired = errors.New("atoms: key value type must not be nil")
)

// Key addresses one state slot. Keys are plain comparable values and can be
// used as map keys; two keys are equal only when they come from the same
// registration (and carry the same discriminator).
type Key struct {
	registry      *Registry
	id            uint32
	discriminator string
}

// NoOwner is the zero Key. Passing it as an owner means the access is not
// performed on behalf of any computation.
var NoOwner = Key{}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool {
	return k.registry == nil && k.id == 0
}

// ID returns the arena index assigned at registration.
func (k Key) ID() uint32 {
	return k.id
}

// Discriminator returns the parameter component of a family key.
func (k Key) Discriminator() string {
	return k.discriminator
}

// With derives the parameterized key for discriminator. The derived key shares
// the registration (name, value type, persistence) of k.
func (k Key) With(discriminator string) Key {
	k.discriminator = discriminator
	return k
}

// Name returns the registered name.
func (k Key) Name() string {
	if entry, ok := k.entry(); ok {
		return entry.name
	}
	return ""
}

// Path renders a human readable identifier, `name` or `name[discriminator]`.
func (k Key) Path() string {
	if k.IsZero() {
		return ""
	}
	name := k.Name()
	if name == "" {
		name = fmt.Sprintf("#%d", k.id)
	}
	if k.discriminator == "" {
		return name
	}
	return name + "[" + k.discriminator + "]"
}

func (k Key) String() string {
	if k.IsZero() {
		return "<none>"
	}
	return k.Path()
}

// ValueType returns the type every value stored under k must have.
func (k Key) ValueType() reflect.Type {
	if entry, ok := k.entry(); ok {
		return entry.valueType
	}
	return nil
}

// Persistent reports whether values for k are written through to a Persister.
func (k Key) Persistent() bool {
	if entry, ok := k.entry(); ok {
		return entry.persistent
	}
	return false
}

func (k Key) entry() (keyEntry, bool) {
	if k.registry == nil || k.id == 0 {
		return keyEntry{}, false
	}
	return k.registry.lookup(k.id)
}

// KeyOption configures a registration.
type KeyOption func(*keyEntry)

// Persisted marks the key as persistent.
func Persisted() KeyOption {
	return func(entry *keyEntry) {
		entry.persistent = true
	}
}

type keyEntry struct {
	name       string
	valueType  reflect.Type
	persistent bool
}

// Registry is an arena of key registrations. Each registration receives the
// next sequential id; ids are never reused.
type Registry struct {
	mu      sync.RWMutex
	entries []keyEntry
	byName  map[string]uint32
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Define and friends.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]uint32),
	}
}

// Register adds name to the registry and returns its key.
func (r *Registry) Register(name string, valueType reflect.Type, opts ...KeyOption) (Key, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Key{}, ErrKeyNameRequired
	}
	if valueType == nil {
		return Key{}, fmt.Errorf("%w: %s", ErrValueTypeRequired, name)
	}
	entry := keyEntry{name: name, valueType: valueType}
	for _, opt := range opts {
		if opt != nil {
			opt(&entry)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName == nil {
		r.byName = make(map[string]uint32)
	}
	if _, exists := r.byName[name]; exists {
		return Key{}, fmt.Errorf("%w: %s", ErrDuplicateKey, name)
	}
	r.entries = append(r.entries, entry)
	id := uint32(len(r.entries))
	r.byName[name] = id
	return Key{registry: r, id: id}, nil
}

// Lookup returns the key registered under name.
func (r *Registry) Lookup(name string) (Key, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return Key{}, false
	}
	return Key{registry: r, id: id}, true
}

// Names returns registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) lookup(id uint32) (keyEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.entries) {
		return keyEntry{}, false
	}
	return r.entries[id-1], true
}
