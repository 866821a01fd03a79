package atoms

import (
	"fmt"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes registry functions by name, taking one to
// three dynamically typed arguments.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.functions = registry.Clone()
	}
}

type celEvaluator struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Expressions are
// type-checked against the declared variables, each typed dyn.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	ctx = ctx.withDefaults()
	rule, err := e.Compile(expression, WithVariables(snapshotNames(ctx.Snapshot)...))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.atomLabel(), err)
	}
	return rule.Evaluate(ctx)
}

func (e *celEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, ErrEmptyExpression
	}
	cfg := applyCompileOptions(opts)
	key := programKey("cel", expression, cfg.variables, e.functions.Names())
	program, ok := loadProgram[celgo.Program](e.cache, key)
	if !ok {
		env, err := e.environment(cfg.variables)
		if err != nil {
			return nil, wrapEvaluatorError("cel", err)
		}
		ast, issues := env.Compile(expression)
		if issues != nil && issues.Err() != nil {
			return nil, wrapEvaluationError("cel", expression, "", issues.Err())
		}
		program, err = env.Program(ast)
		if err != nil {
			return nil, wrapEvaluationError("cel", expression, "", err)
		}
		storeProgram(e.cache, key, program)
	}
	return &celRule{expression: expression, program: program}, nil
}

func (e *celEvaluator) environment(variables []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("metadata", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("atom", celgo.StringType),
	}
	for _, name := range variables {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	for _, name := range e.functions.Names() {
		opts = append(opts, celFunction(name, e.functions))
	}
	return celgo.NewEnv(opts...)
}

// celFunction declares name with unary, binary and ternary dyn overloads.
func celFunction(name string, functions *FunctionRegistry) celgo.EnvOption {
	call := func(values ...ref.Val) ref.Val {
		args := make([]any, len(values))
		for i, value := range values {
			args[i] = value.Value()
		}
		result, err := functions.Call(name, args...)
		if err != nil {
			return types.NewErr("%s: %v", name, err)
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
	return celgo.Function(name,
		celgo.Overload(fmt.Sprintf("%s_dyn", name),
			[]*celgo.Type{celgo.DynType}, celgo.DynType,
			celgo.UnaryBinding(func(arg ref.Val) ref.Val { return call(arg) })),
		celgo.Overload(fmt.Sprintf("%s_dyn_dyn", name),
			[]*celgo.Type{celgo.DynType, celgo.DynType}, celgo.DynType,
			celgo.BinaryBinding(func(lhs, rhs ref.Val) ref.Val { return call(lhs, rhs) })),
		celgo.Overload(fmt.Sprintf("%s_dyn_dyn_dyn", name),
			[]*celgo.Type{celgo.DynType, celgo.DynType, celgo.DynType}, celgo.DynType,
			celgo.FunctionBinding(call)),
	)
}

type celRule struct {
	expression string
	program    celgo.Program
}

func (r *celRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	activation := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"atom":     ctx.Atom,
	}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for name, value := range snapshot {
			activation[name] = value
		}
	}
	out, _, err := r.program.Eval(activation)
	if err != nil {
		return nil, wrapEvaluationError("cel", r.expression, ctx.atomLabel(), err)
	}
	return out.Value(), nil
}
