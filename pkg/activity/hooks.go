package activity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Event is an activity occurrence fanned out to hooks. IDs are strings so
// call sites do not depend on a particular UUID type.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Routable reports whether the event carries the fields hooks key on.
func (e Event) Routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	for _, hook := range h {
		if hook != nil {
			return true
		}
	}
	return false
}

// Notify normalizes event and forwards it to every hook in order. Events
// that are not routable are dropped. Hook failures do not stop the fan-out;
// they are joined into the returned error.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	normalized := NormalizeEvent(event)
	if !normalized.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims identifiers, copies metadata and recipients, and
// stamps a missing timestamp.
func NormalizeEvent(event Event) Event {
	out := Event{
		Verb:           strings.TrimSpace(event.Verb),
		ActorID:        strings.TrimSpace(event.ActorID),
		UserID:         strings.TrimSpace(event.UserID),
		TenantID:       strings.TrimSpace(event.TenantID),
		ObjectType:     strings.TrimSpace(event.ObjectType),
		ObjectID:       strings.TrimSpace(event.ObjectID),
		Channel:        strings.TrimSpace(event.Channel),
		DefinitionCode: strings.TrimSpace(event.DefinitionCode),
		Metadata:       cloneMap(event.Metadata),
		OccurredAt:     event.OccurredAt,
	}
	if len(event.Recipients) > 0 {
		out.Recipients = append([]string(nil), event.Recipients...)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
