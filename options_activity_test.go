package atoms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-atoms/pkg/activity"
)

func TestWithActivityHooksClonesAndFiltersNil(t *testing.T) {
	capture := &activity.CaptureHook{}
	hooks := activity.Hooks{nil, capture}
	opt := WithActivityHooks(hooks)

	// Mutating the caller's slice must not affect the configured hooks.
	hooks[1] = nil

	cfg := applyOptions([]Option{opt})
	if len(cfg.activityHooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(cfg.activityHooks))
	}
	if len(cfg.telemetry) != 1 {
		t.Fatalf("expected the activity bridge to be installed as telemetry, got %d sinks", len(cfg.telemetry))
	}
}

func TestActivityHooksDefaultNil(t *testing.T) {
	cfg := applyOptions(nil)
	if cfg.activityHooks != nil || len(cfg.telemetry) != 0 {
		t.Fatalf("expected no hooks by default, got %+v", cfg.activityHooks)
	}
	if cfg := applyOptions([]Option{WithActivityHooks(activity.Hooks{nil})}); len(cfg.telemetry) != 0 {
		t.Fatalf("all-nil hooks should not install a bridge")
	}
}

func TestActivityBridgeEmitsStateMutatedEvents(t *testing.T) {
	registry := NewRegistry()
	price, _ := DefineIn(registry, "price", func() int { return 10 })
	doubled, _ := DefineDerivedIn(registry, "doubled", func(ctx context.Context, r Reader) (int, error) {
		v, err := Read(ctx, r, price)
		return v * 2, err
	})

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	capture := &activity.CaptureHook{}
	storage := NewDependencyGraphStorage(
		WithActivityHooks(activity.Hooks{capture}),
		WithClock(func() time.Time { return at }),
	)

	ctx := activity.WithActor(context.Background(), activity.Actor{ActorID: "actor-1", TenantID: "tenant-9"})
	if _, err := Get(ctx, storage, doubled); err != nil {
		t.Fatalf("get: %v", err)
	}
	capture.Reset()

	if err := Set(WithMutationContext(ctx, "checkout"), storage, price, 12); err != nil {
		t.Fatalf("set: %v", err)
	}

	events := capture.Events()
	if len(events) != 2 {
		t.Fatalf("expected write and recompute events, got %d: %+v", len(events), events)
	}
	write, recompute := events[0], events[1]
	if write.Verb != activity.VerbStateMutated || write.ObjectType != activity.ObjectTypeAtom || write.ObjectID != "price" {
		t.Fatalf("unexpected write event %+v", write)
	}
	if write.Channel != activity.DefaultChannel {
		t.Fatalf("expected default channel, got %q", write.Channel)
	}
	if write.ActorID != "actor-1" || write.TenantID != "tenant-9" {
		t.Fatalf("expected actor from context, got %+v", write)
	}
	if !write.OccurredAt.Equal(at) {
		t.Fatalf("expected clock timestamp, got %v", write.OccurredAt)
	}
	if write.Metadata["context"] != "checkout" || write.Metadata["value"] != "12" {
		t.Fatalf("unexpected write metadata %+v", write.Metadata)
	}
	if _, ok := write.Metadata["owner"]; ok {
		t.Fatalf("a direct write has no owner, got %+v", write.Metadata)
	}

	if recompute.ObjectID != "doubled" || recompute.Metadata["owner"] != "price" || recompute.Metadata["value"] != "24" {
		t.Fatalf("unexpected recompute event %+v", recompute)
	}
}

func TestActivityConfigOverridesChannel(t *testing.T) {
	registry := NewRegistry()
	flag, _ := DefineIn(registry, "flag", func() bool { return false })

	capture := &activity.CaptureHook{}
	storage := NewMemoryStorage(
		WithActivityHooks(activity.Hooks{capture}),
		WithActivityConfig(activity.Config{Enabled: true, Channel: "ui", DefinitionCode: "atoms.flag"}),
	)
	if err := Set(context.Background(), storage, flag, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	events := capture.Events()
	if len(events) != 1 || events[0].Channel != "ui" || events[0].DefinitionCode != "atoms.flag" {
		t.Fatalf("unexpected events %+v", events)
	}

	disabled := &activity.CaptureHook{}
	quiet := NewMemoryStorage(
		WithActivityHooks(activity.Hooks{disabled}),
		WithActivityConfig(activity.Config{Enabled: false}),
	)
	if err := Set(context.Background(), quiet, flag, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(disabled.Events()) != 0 {
		t.Fatalf("disabled emitter should not notify hooks")
	}
}

func TestActivityHookErrorIsReturnedAfterWrite(t *testing.T) {
	registry := NewRegistry()
	count, _ := DefineIn(registry, "count", func() int { return 0 })

	errHook := errors.New("hook down")
	storage := NewMemoryStorage(WithActivityHooks(activity.Hooks{
		activity.HookFunc(func(context.Context, activity.Event) error { return errHook }),
	}))

	ctx := context.Background()
	if err := Set(ctx, storage, count, 5); !errors.Is(err, errHook) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if got, _ := Get(ctx, storage, count); got != 5 {
		t.Fatalf("write should apply despite the hook error, got %d", got)
	}
}
