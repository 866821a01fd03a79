package atoms

import (
	"time"

	"github.com/goliatone/go-atoms/pkg/activity"
	"go.uber.org/zap"
)

// Option configures a storage backend.
type Option func(*config)

type config struct {
	telemetry     Telemetries
	activityHooks activity.Hooks
	activity      activity.Config
	persister     Persister
	logger        *zap.SugaredLogger
	now           func() time.Time
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop().Sugar()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if len(cfg.activityHooks) > 0 {
		emitter := activity.NewEmitter(cfg.activityHooks, cfg.activity)
		cfg.telemetry = append(cfg.telemetry, activityTelemetry{emitter: emitter})
	}
	return cfg
}

// WithTelemetry appends telemetry sinks. Nil sinks are dropped.
func WithTelemetry(sinks ...Telemetry) Option {
	return func(cfg *config) {
		for _, sink := range sinks {
			if sink != nil {
				cfg.telemetry = append(cfg.telemetry, sink)
			}
		}
	}
}

// WithLogger sets the logger used for debug output. A nil logger keeps the
// no-op default.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithPersister write-through persists keys registered with Persisted.
func WithPersister(persister Persister) Option {
	return func(cfg *config) {
		cfg.persister = persister
	}
}

// WithClock overrides the clock used to timestamp mutation events.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}
