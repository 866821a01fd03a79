//go:build js_eval

package atoms

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	jsEvaluatorConfig
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each evaluation runs
// in a fresh runtime; compiled programs are shared.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return &jsEvaluator{newJSEvaluatorConfig(opts)}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	ctx = ctx.withDefaults()
	rule, err := e.Compile(expression, WithVariables(snapshotNames(ctx.Snapshot)...))
	if err != nil {
		return nil, wrapEvaluationError("js", expression, ctx.atomLabel(), err)
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, ErrEmptyExpression
	}
	cfg := applyCompileOptions(opts)
	key := programKey("js", expression, cfg.variables, e.functions.Names())
	program, ok := loadProgram[*goja.Program](e.cache, key)
	if !ok {
		source := fmt.Sprintf("(function(){ return (%s); })()", expression)
		var err error
		program, err = goja.Compile("", source, true)
		if err != nil {
			return nil, wrapEvaluationError("js", expression, "", err)
		}
		storeProgram(e.cache, key, program)
	}
	return &jsRule{expression: expression, program: program, functions: e.functions}, nil
}

type jsRule struct {
	expression string
	program    *goja.Program
	functions  *FunctionRegistry
}

func (r *jsRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	vm := goja.New()
	globals := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"atom":     ctx.Atom,
	}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for name, value := range snapshot {
			globals[name] = value
		}
	}
	for _, name := range r.functions.Names() {
		globals[name] = r.functions.bind(name)
	}
	for name, value := range globals {
		if err := vm.Set(name, value); err != nil {
			return nil, wrapEvaluationError("js", r.expression, ctx.atomLabel(), err)
		}
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, wrapEvaluationError("js", r.expression, ctx.atomLabel(), err)
	}
	return value.Export(), nil
}

func jsEvaluatorAvailable() bool {
	return true
}
