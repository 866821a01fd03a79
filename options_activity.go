package atoms

import (
	"context"

	"github.com/goliatone/go-atoms/pkg/activity"
)

// WithActivityHooks bridges mutation events into activity hooks. Hooks are
// cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.activityHooks = normalized
		if !cfg.activity.Enabled && cfg.activity.Channel == "" {
			cfg.activity = activity.Config{Enabled: true, Channel: activity.DefaultChannel}
		}
	}
}

// WithActivityConfig overrides the emitter configuration used by
// WithActivityHooks.
func WithActivityConfig(activityCfg activity.Config) Option {
	return func(cfg *config) {
		cfg.activity = activityCfg
	}
}

type activityTelemetry struct {
	emitter *activity.Emitter
}

func (t activityTelemetry) RecordMutation(ctx context.Context, event MutationEvent) error {
	if !t.emitter.Enabled() {
		return nil
	}
	actor := activity.ActorFromContext(ctx)
	return t.emitter.Emit(ctx, activity.BuildStateMutatedEvent(activity.StateEventInput{
		ActorID:    actor.ActorID,
		UserID:     actor.UserID,
		TenantID:   actor.TenantID,
		Category:   event.Category,
		Path:       event.Path,
		Owner:      event.Owner.Path(),
		Context:    event.Context,
		Value:      event.Value,
		OccurredAt: event.OccurredAt,
	}))
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
