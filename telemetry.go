package atoms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MutationCategory is the category carried by every mutation event.
const MutationCategory = "state mutation"

// MutationEvent is the record handed to telemetry sinks once per write.
type MutationEvent struct {
	Category string
	// Path is the human readable identifier of the written state.
	Path string
	// Value is the new value rendered for diagnostics.
	Value string
	// Context is the caller supplied mutation context, see WithMutationContext.
	Context    string
	Key        Key
	Owner      Key
	OccurredAt time.Time
}

// Telemetry receives mutation events synchronously, before SetValue returns.
type Telemetry interface {
	RecordMutation(ctx context.Context, event MutationEvent) error
}

// TelemetryFunc allows plain functions to satisfy Telemetry.
type TelemetryFunc func(ctx context.Context, event MutationEvent) error

// RecordMutation dispatches to the underlying function.
func (fn TelemetryFunc) RecordMutation(ctx context.Context, event MutationEvent) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Telemetries fans out events to zero or more sinks.
type Telemetries []Telemetry

// RecordMutation forwards event to every sink, returning a joined error if any
// fail. A failing sink does not stop the others.
func (t Telemetries) RecordMutation(ctx context.Context, event MutationEvent) error {
	if len(t) == 0 {
		return nil
	}
	var errs []error
	for _, sink := range t {
		if sink == nil {
			continue
		}
		if err := sink.RecordMutation(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type mutationContextKey struct{}

// WithMutationContext labels writes performed with ctx. The label is copied
// into MutationEvent.Context.
func WithMutationContext(ctx context.Context, label string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, mutationContextKey{}, strings.TrimSpace(label))
}

// MutationContext returns the label attached by WithMutationContext.
func MutationContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	label, _ := ctx.Value(mutationContextKey{}).(string)
	return label
}

func mutationContext(ctx context.Context, owner Key) string {
	if label := MutationContext(ctx); label != "" {
		return label
	}
	if !owner.IsZero() {
		return owner.Path()
	}
	return ""
}

func renderValue(value any) string {
	if value == nil {
		return "<nil>"
	}
	if stringer, ok := value.(fmt.Stringer); ok {
		return stringer.String()
	}
	return fmt.Sprintf("%+v", value)
}
