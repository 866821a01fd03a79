package atoms

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-atoms/internal/hydrate"
)

// Binding exposes one state to an expression under Name.
type Binding struct {
	Name string
	key  Key
	read func(ctx context.Context, r Reader) (any, error)
}

// Bind exposes state to expressions as the variable name.
func Bind[V any](name string, state State[V]) Binding {
	return Binding{
		Name: strings.TrimSpace(name),
		key:  state.Key(),
		read: func(ctx context.Context, r Reader) (any, error) {
			return Read(ctx, r, state)
		},
	}
}

// Key returns the key of the bound state.
func (b Binding) Key() Key {
	return b.key
}

// ExpressionOption configures an expression-derived state.
type ExpressionOption func(*expressionConfig)

type expressionConfig struct {
	evaluator    Evaluator
	evaluatorSet bool
	programCache ProgramCache
	functions    *FunctionRegistry
	logger       EvaluatorLogger
	args         map[string]any
	metadata     map[string]any
	keyOptions   []KeyOption
}

// WithEvaluator selects the engine. The default is expr-lang/expr.
func WithEvaluator(e Evaluator) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.evaluator = e
		cfg.evaluatorSet = true
	}
}

// WithProgramCache shares compiled programs across evaluations. It applies
// to the default evaluator only; custom evaluators carry their own cache.
func WithProgramCache(cache ProgramCache) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes registry functions to the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) ExpressionOption {
	return func(cfg *expressionConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default evaluator.
func WithCustomFunction(name string, fn Function) ExpressionOption {
	return func(cfg *expressionConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithEvaluatorLogger records every evaluation.
func WithEvaluatorLogger(logger EvaluatorLogger) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.logger = logger
	}
}

// WithArgs exposes static arguments as the `args` variable.
func WithArgs(args map[string]any) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.args = copyMap(args)
	}
}

// WithMetadata exposes static metadata as the `metadata` variable.
func WithMetadata(metadata map[string]any) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.metadata = copyMap(metadata)
	}
}

// WithKeyOptions applies registration options, e.g. Persisted.
func WithKeyOptions(opts ...KeyOption) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.keyOptions = append(cfg.keyOptions, opts...)
	}
}

// DefineExpression registers a derived state in the default registry whose
// value is expression evaluated over bindings. It panics on registration or
// compile errors.
func DefineExpression[V any](name, expression string, bindings []Binding, opts ...ExpressionOption) *Derived[V] {
	derived, err := DefineExpressionIn[V](DefaultRegistry(), name, expression, bindings, opts...)
	if err != nil {
		panic(err)
	}
	return derived
}

// DefineExpressionIn registers an expression-derived state in registry. The
// expression is compiled up front against the binding names so syntax errors,
// and with CEL unknown identifiers, surface here. Bindings may not use the
// reserved names now, args, metadata and atom.
func DefineExpressionIn[V any](registry *Registry, name, expression string, bindings []Binding, opts ...ExpressionOption) (*Derived[V], error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyExpression, name)
	}
	variables := make([]string, 0, len(bindings))
	seen := make(map[string]struct{}, len(bindings))
	for _, binding := range bindings {
		if binding.Name == "" || binding.read == nil {
			return nil, fmt.Errorf("atoms: expression %q has an unnamed or unbound binding", name)
		}
		if _, reserved := reservedVariables[binding.Name]; reserved {
			return nil, fmt.Errorf("atoms: expression %q binds reserved name %q", name, binding.Name)
		}
		if _, dup := seen[binding.Name]; dup {
			return nil, fmt.Errorf("atoms: expression %q binds %q twice", name, binding.Name)
		}
		seen[binding.Name] = struct{}{}
		variables = append(variables, binding.Name)
	}

	cfg := expressionConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	evaluator, err := cfg.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	rule, err := evaluator.Compile(expression, WithVariables(variables...))
	if err != nil {
		return nil, wrapEvaluationError(evaluatorEngineName(evaluator), expression, name, err)
	}

	bound := append([]Binding(nil), bindings...)
	compute := func(ctx context.Context, r Reader) (V, error) {
		var zero V
		snapshot := make(map[string]any, len(bound))
		for _, binding := range bound {
			value, err := binding.read(ctx, r)
			if err != nil {
				return zero, err
			}
			snapshot[binding.Name] = value
		}
		result, err := cfg.evaluate(evaluator, rule, expression, RuleContext{
			Snapshot: snapshot,
			Args:     copyMap(cfg.args),
			Metadata: copyMap(cfg.metadata),
			Atom:     r.Owner().Path(),
		})
		if err != nil {
			return zero, err
		}
		return convertResult[V](r.Owner(), result)
	}
	return DefineDerivedIn(registry, name, compute, cfg.keyOptions...)
}

// convertResult adapts an engine result to V. Engines return their own
// numeric widths (int64, float64) so numeric kinds convert freely; anything
// else goes through JSON hydration.
func convertResult[V any](key Key, result any) (V, error) {
	var zero V
	if result == nil {
		return zero, nil
	}
	if value, ok := result.(V); ok {
		return value, nil
	}
	target := typeOf[V]()
	source := reflect.ValueOf(result)
	if scalarConvertible(source.Type(), target) {
		return source.Convert(target).Interface().(V), nil
	}
	var out V
	if err := hydrate.Into(result, &out); err != nil {
		return zero, fmt.Errorf("%w: %v", &TypeMismatchError{Key: key, Expected: target, Actual: source.Type()}, err)
	}
	return out, nil
}

func scalarConvertible(from, to reflect.Type) bool {
	if isNumericKind(from.Kind()) && isNumericKind(to.Kind()) {
		return true
	}
	switch from.Kind() {
	case reflect.String, reflect.Bool:
		return from.Kind() == to.Kind()
	}
	return false
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func copyMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
