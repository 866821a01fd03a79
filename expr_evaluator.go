package atoms

import (
	"strings"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes registry functions by name.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.functions = registry.Clone()
	}
}

// exprEvaluator executes expressions with github.com/expr-lang/expr.
type exprEvaluator struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. Snapshot
// entries are top level variables; identifiers missing at run time are nil.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	ctx = ctx.withDefaults()
	rule, err := e.Compile(expression, WithVariables(snapshotNames(ctx.Snapshot)...))
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, ctx.atomLabel(), err)
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, ErrEmptyExpression
	}
	cfg := applyCompileOptions(opts)
	key := programKey("expr", expression, cfg.variables, e.functions.Names())
	program, ok := loadProgram[*exprvm.Program](e.cache, key)
	if !ok {
		var err error
		program, err = exprlang.Compile(expression, e.compileOptions()...)
		if err != nil {
			return nil, wrapEvaluationError("expr", expression, "", err)
		}
		storeProgram(e.cache, key, program)
	}
	return &exprRule{expression: expression, program: program}, nil
}

func (e *exprEvaluator) compileOptions() []exprlang.Option {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{
			"now":      time.Time{},
			"args":     map[string]any(nil),
			"metadata": map[string]any(nil),
			"atom":     "",
		}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.functions.Names() {
		options = append(options, exprlang.Function(name, e.functions.bind(name)))
	}
	return options
}

type exprRule struct {
	expression string
	program    *exprvm.Program
}

func (r *exprRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	env := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"atom":     ctx.Atom,
	}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for name, value := range snapshot {
			env[name] = value
		}
	}
	result, err := exprlang.Run(r.program, env)
	if err != nil {
		return nil, wrapEvaluationError("expr", r.expression, ctx.atomLabel(), err)
	}
	return result, nil
}
