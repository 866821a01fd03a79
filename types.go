package atoms

import (
	"sort"
	"strings"
	"time"
)

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	// Snapshot maps binding names to the values read for this evaluation.
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Atom is the path of the state being computed.
	Atom string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) atomLabel() string {
	if ctx.Atom != "" {
		return ctx.Atom
	}
	return "unknown"
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct {
	variables []string
}

type compileOptionFunc func(*compileConfig)

func (fn compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	fn(cfg)
}

// WithVariables declares the snapshot names an expression may reference in
// addition to now, args, metadata and atom. CEL type-checks against them.
func WithVariables(names ...string) CompileOption {
	return compileOptionFunc(func(cfg *compileConfig) {
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				cfg.variables = append(cfg.variables, name)
			}
		}
	})
}

func applyCompileOptions(opts []CompileOption) compileConfig {
	cfg := compileConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyCompileOption(&cfg)
		}
	}
	sort.Strings(cfg.variables)
	cfg.variables = compactSorted(cfg.variables)
	return cfg
}

// reservedVariables are always present in an evaluation environment.
var reservedVariables = map[string]struct{}{
	"now":      {},
	"args":     {},
	"metadata": {},
	"atom":     {},
}

func snapshotNames(snapshot any) []string {
	values, ok := snapshot.(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func compactSorted(values []string) []string {
	if len(values) < 2 {
		return values
	}
	out := values[:1]
	for _, value := range values[1:] {
		if value != out[len(out)-1] {
			out = append(out, value)
		}
	}
	return out
}
