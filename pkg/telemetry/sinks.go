// Package telemetry provides ready-made mutation sinks and evaluator loggers
// backed by zap and log/slog.
package telemetry

import (
	"context"
	"log/slog"

	atoms "github.com/goliatone/go-atoms"
	"go.uber.org/zap"
)

// ZapSink logs every mutation at info level.
type ZapSink struct {
	logger *zap.SugaredLogger
}

var _ atoms.Telemetry = (*ZapSink)(nil)

// NewZapSink returns a sink writing to logger. A nil logger discards events.
func NewZapSink(logger *zap.SugaredLogger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ZapSink{logger: logger}
}

// RecordMutation implements atoms.Telemetry.
func (s *ZapSink) RecordMutation(_ context.Context, event atoms.MutationEvent) error {
	kv := []any{
		"category", event.Category,
		"path", event.Path,
		"value", event.Value,
		"occurred_at", event.OccurredAt,
	}
	if event.Context != "" {
		kv = append(kv, "context", event.Context)
	}
	if !event.Owner.IsZero() {
		kv = append(kv, "owner", event.Owner.Path())
	}
	s.logger.Infow("state mutated", kv...)
	return nil
}

// SlogSink logs every mutation through log/slog.
type SlogSink struct {
	logger *slog.Logger
	level  slog.Level
}

var _ atoms.Telemetry = (*SlogSink)(nil)

// NewSlogSink returns a sink writing to logger at level. A nil logger uses
// slog.Default.
func NewSlogSink(logger *slog.Logger, level slog.Level) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger, level: level}
}

// RecordMutation implements atoms.Telemetry.
func (s *SlogSink) RecordMutation(ctx context.Context, event atoms.MutationEvent) error {
	attrs := []slog.Attr{
		slog.String("category", event.Category),
		slog.String("path", event.Path),
		slog.String("value", event.Value),
		slog.Time("occurred_at", event.OccurredAt),
	}
	if event.Context != "" {
		attrs = append(attrs, slog.String("context", event.Context))
	}
	if !event.Owner.IsZero() {
		attrs = append(attrs, slog.String("owner", event.Owner.Path()))
	}
	s.logger.LogAttrs(ctx, s.level, "state mutated", attrs...)
	return nil
}

// EvaluatorLogger logs expression evaluations: failures at warn, successes
// at debug.
func EvaluatorLogger(logger *zap.SugaredLogger) atoms.EvaluatorLogger {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return atoms.EvaluatorLoggerFunc(func(event atoms.EvaluatorLogEvent) {
		kv := []any{
			"engine", event.Engine,
			"expr", event.Expr,
			"atom", event.Atom,
			"duration", event.Duration,
		}
		if event.Err != nil {
			logger.Warnw("expression evaluation failed", append(kv, "error", event.Err)...)
			return
		}
		logger.Debugw("expression evaluated", kv...)
	})
}
