package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	atoms "github.com/goliatone/go-atoms"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core).Sugar(), logs
}

func TestZapSinkLogsMutation(t *testing.T) {
	logger, logs := observed(zapcore.InfoLevel)
	registry := atoms.NewRegistry()
	counter, err := atoms.DefineIn(registry, "counter", func() int { return 0 })
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	storage := atoms.NewMemoryStorage(atoms.WithTelemetry(NewZapSink(logger)))

	ctx := atoms.WithMutationContext(context.Background(), "checkout")
	if err := atoms.Set(ctx, storage, counter, 42); err != nil {
		t.Fatalf("set: %v", err)
	}

	entries := logs.FilterMessage("state mutated").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "counter" || fields["value"] != "42" || fields["context"] != "checkout" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if fields["category"] != atoms.MutationCategory {
		t.Fatalf("unexpected category %v", fields["category"])
	}
}

func TestNewZapSinkNilLogger(t *testing.T) {
	if err := NewZapSink(nil).RecordMutation(context.Background(), atoms.MutationEvent{Path: "x"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSlogSinkWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlogSink(logger, slog.LevelInfo)

	err := sink.RecordMutation(context.Background(), atoms.MutationEvent{
		Category:   atoms.MutationCategory,
		Path:       "profile[7]",
		Value:      "{Name:ada}",
		OccurredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`msg="state mutated"`, `path=profile[7]`, `category="state mutation"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "owner=") {
		t.Fatalf("expected no owner attribute for unowned write: %q", out)
	}
}

func TestEvaluatorLoggerLevels(t *testing.T) {
	logger, logs := observed(zapcore.DebugLevel)
	log := EvaluatorLogger(logger)

	log.LogEvaluation(atoms.EvaluatorLogEvent{Engine: "expr", Expr: "a + b", Atom: "sum"})
	log.LogEvaluation(atoms.EvaluatorLogEvent{Engine: "cel", Expr: "a +", Atom: "sum", Err: errors.New("syntax")})

	if n := logs.FilterMessage("expression evaluated").FilterField(zap.String("engine", "expr")).Len(); n != 1 {
		t.Fatalf("expected one debug entry, got %d", n)
	}
	failed := logs.FilterMessage("expression evaluation failed").All()
	if len(failed) != 1 || failed[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn entry, got %+v", failed)
	}
}
