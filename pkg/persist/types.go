package persist

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrETagMismatch = errors.New("persist: etag mismatch")
	ErrInvalidRef   = errors.New("persist: invalid ref")
)

// DefaultNamespace is used when a Ref has no namespace.
const DefaultNamespace = "default"

// Ref identifies one persisted snapshot.
type Ref struct {
	Namespace string
	// Path is the atom path, e.g. "cart.total" or "profile[42]".
	Path string
}

// Identifier returns the canonical "namespace/path" storage key.
func (r Ref) Identifier() (string, error) {
	ns := strings.TrimSpace(r.Namespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	p := strings.TrimSpace(r.Path)
	if p == "" {
		return "", fmt.Errorf("%w: path is required", ErrInvalidRef)
	}
	for _, segment := range []string{ns, p} {
		if strings.HasPrefix(segment, "/") || path.Clean(segment) != segment || strings.Contains(segment, "..") {
			return "", fmt.Errorf("%w: %q is not a clean relative path", ErrInvalidRef, segment)
		}
	}
	return ns + "/" + p, nil
}

func (r Ref) String() string {
	id, err := r.Identifier()
	if err != nil {
		return r.Namespace + "/" + r.Path
	}
	return id
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Store loads and saves one snapshot per Ref. Save returns the stored Meta,
// which carries a fresh SnapshotID and ETag.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Lister enumerates stored refs in a namespace, sorted by path.
type Lister interface {
	List(ctx context.Context, namespace string) ([]Ref, error)
}

// Mutator edits a snapshot in place.
type Mutator[T any] func(*T) error

// Mutate loads ref, applies fn and saves the result. When meta.ETag is set
// it must match the stored ETag.
func Mutate[T any](ctx context.Context, store Store[T], ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if store == nil {
		return zero, Meta{}, fmt.Errorf("persist: store is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("persist: mutator is required")
	}

	snapshot, loaded, ok, err := store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("persist: load %s: %w", ref, err)
	}
	if !ok {
		snapshot = zero
		loaded = Meta{}
	}
	if meta.ETag != "" && loaded.ETag != meta.ETag {
		return zero, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loaded.ETag)
	}
	if err := fn(&snapshot); err != nil {
		return zero, loaded, err
	}

	saved, err := store.Save(ctx, ref, snapshot, mergeMeta(loaded, meta))
	if err != nil {
		return zero, loaded, fmt.Errorf("persist: save %s: %w", ref, err)
	}
	return snapshot, saved, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

// checkETag enforces optimistic concurrency: a non-empty expected ETag must
// match the current one.
func checkETag(expected string, current Meta, exists bool) error {
	if expected == "" {
		return nil
	}
	if !exists || current.ETag != expected {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, current.ETag)
	}
	return nil
}

// stamp assigns a fresh snapshot id and ETag.
func stamp(meta Meta, now time.Time) Meta {
	out := cloneMeta(meta)
	out.SnapshotID = uuid.NewString()
	out.ETag = uuid.NewString()
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = now
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
