package atoms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSEvaluator(opts...)
		},
	},
}

type fakeProgramCache struct {
	store  map[string]any
	hits   int
	misses int
}

func (c *fakeProgramCache) Get(key string) (any, bool) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	value, ok := c.store[key]
	if ok {
		c.hits++
		return value, true
	}
	c.misses++
	return nil, false
}

func (c *fakeProgramCache) Set(key string, value any) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = value
}

func skipUnavailable(t *testing.T, name string) {
	t.Helper()
	if name == "js" && !jsEvaluatorAvailable() {
		t.Skip("js evaluator requires the js_eval build tag")
	}
}

func TestExpressionRecomputesAcrossEvaluators(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			registry := NewRegistry()
			a, _ := DefineIn(registry, "a", func() int { return 2 })
			b, _ := DefineIn(registry, "b", func() int { return 3 })
			sum, err := DefineExpressionIn[int](registry, "sum", "a + b",
				[]Binding{Bind("a", a), Bind("b", b)},
				WithEvaluator(factory.new(nil, nil)),
			)
			if err != nil {
				t.Fatalf("define: %v", err)
			}

			storage := NewDependencyGraphStorage()
			ctx := context.Background()
			if got, err := Get(ctx, storage, sum); err != nil || got != 5 {
				t.Fatalf("expected 5, got %d err=%v", got, err)
			}
			if err := Set(ctx, storage, a, 10); err != nil {
				t.Fatalf("set: %v", err)
			}
			if got, _ := Get(ctx, storage, sum); got != 13 {
				t.Fatalf("expected 13 after recompute, got %d", got)
			}
			if deps := storage.Dependencies(sum.Key()); len(deps) != 2 {
				t.Fatalf("expected both bindings recorded as dependencies, got %v", deps)
			}
		})
	}
}

func TestExpressionCustomFunctionsAcrossEvaluators(t *testing.T) {
	functions := NewFunctionRegistry().MustRegister("double", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("double expects 1 arg")
		}
		switch v := args[0].(type) {
		case int:
			return v * 2, nil
		case int64:
			return v * 2, nil
		case float64:
			return v * 2, nil
		}
		return nil, fmt.Errorf("double: unsupported %T", args[0])
	})

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			registry := NewRegistry()
			n, _ := DefineIn(registry, "n", func() int { return 21 })
			doubled, err := DefineExpressionIn[int](registry, "doubled", "double(n)",
				[]Binding{Bind("n", n)},
				WithEvaluator(factory.new(nil, functions)),
			)
			if err != nil {
				t.Fatalf("define: %v", err)
			}
			if got, err := Get(context.Background(), NewMemoryStorage(), doubled); err != nil || got != 42 {
				t.Fatalf("expected 42, got %d err=%v", got, err)
			}
		})
	}
}

func TestExpressionDefaultEvaluatorOptions(t *testing.T) {
	registry := NewRegistry()
	price, _ := DefineIn(registry, "price", func() float64 { return 10 })
	var events []EvaluatorLogEvent
	total, err := DefineExpressionIn[float64](registry, "total", "clamp(price * args.factor) + metadata.fee",
		[]Binding{Bind("price", price)},
		WithArgs(map[string]any{"factor": 3}),
		WithMetadata(map[string]any{"fee": 0.5}),
		WithCustomFunction("clamp", func(args ...any) (any, error) {
			v, _ := args[0].(float64)
			if v > 25 {
				return 25.0, nil
			}
			return v, nil
		}),
		WithEvaluatorLogger(EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
			events = append(events, event)
		})),
	)
	if err != nil {
		t.Fatalf("define: %v", err)
	}

	got, err := Get(context.Background(), NewMemoryStorage(), total)
	if err != nil || got != 25.5 {
		t.Fatalf("expected 25.5, got %v err=%v", got, err)
	}
	if len(events) != 1 || events[0].Engine != "expr" || events[0].Atom != "total" || events[0].Err != nil {
		t.Fatalf("unexpected evaluator log %+v", events)
	}
}

func TestExpressionResultConversion(t *testing.T) {
	type badge struct {
		Name  string `json:"name"`
		Level int    `json:"level"`
	}
	registry := NewRegistry()
	name, _ := DefineIn(registry, "name", func() string { return "ada" })
	level, _ := DefineIn(registry, "level", func() int { return 6 })
	bindings := []Binding{Bind("name", name), Bind("level", level)}

	half, err := DefineExpressionIn[int](registry, "half", "level / 2", bindings)
	if err != nil {
		t.Fatalf("define half: %v", err)
	}
	card, err := DefineExpressionIn[badge](registry, "card", `{"name": name, "level": level}`, bindings)
	if err != nil {
		t.Fatalf("define card: %v", err)
	}
	wrong, err := DefineExpressionIn[int](registry, "wrong", `name + "!"`, bindings)
	if err != nil {
		t.Fatalf("define wrong: %v", err)
	}

	storage := NewMemoryStorage()
	ctx := context.Background()
	if got, err := Get(ctx, storage, half); err != nil || got != 3 {
		t.Fatalf("expected float result converted to 3, got %d err=%v", got, err)
	}
	if got, err := Get(ctx, storage, card); err != nil || got != (badge{Name: "ada", Level: 6}) {
		t.Fatalf("expected map result hydrated into struct, got %+v err=%v", got, err)
	}
	_, err = Get(ctx, storage, wrong)
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) || mismatch.Key != wrong.Key() {
		t.Fatalf("expected TypeMismatchError for wrong, got %v", err)
	}
}

func TestExpressionDefinitionErrors(t *testing.T) {
	registry := NewRegistry()
	a, _ := DefineIn(registry, "a", func() int { return 1 })

	if _, err := DefineExpressionIn[int](registry, "empty", "  ", nil); !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected error for empty expression")
	}
	if _, err := DefineExpressionIn[int](registry, "dup", "a", []Binding{Bind("a", a), Bind("a", a)}); err == nil || !strings.Contains(err.Error(), "twice") {
		t.Fatalf("expected duplicate binding error, got %v", err)
	}
	if _, err := DefineExpressionIn[int](registry, "unbound", "a", []Binding{{Name: "a"}}); err == nil {
		t.Fatalf("expected error for a binding without a state")
	}
	if _, err := DefineExpressionIn[int](registry, "reserved", "args", []Binding{Bind("args", a)}); err == nil || !strings.Contains(err.Error(), "reserved") {
		t.Fatalf("expected reserved name error, got %v", err)
	}
	if _, err := DefineExpressionIn[int](registry, "none", "a", nil, WithEvaluator(nil)); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}

	_, err := DefineExpressionIn[int](registry, "broken", "a +", []Binding{Bind("a", a)})
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "expr" || evalErr.Atom != "broken" {
		t.Fatalf("expected EvaluationError for compile failure, got %v", err)
	}
	if _, ok := registry.Lookup("broken"); ok {
		t.Fatalf("a failed definition must not register its name")
	}

	_, err = DefineExpressionIn[int](registry, "unknown", "a + b", []Binding{Bind("a", a)}, WithEvaluator(NewCELEvaluator()))
	if !errors.As(err, &evalErr) || evalErr.Engine != "cel" || evalErr.Atom != "unknown" {
		t.Fatalf("expected CEL to reject an undeclared identifier at define time, got %v", err)
	}
}

func TestExpressionEvaluationErrorIsWrapped(t *testing.T) {
	registry := NewRegistry()
	a, _ := DefineIn(registry, "a", func() int { return 1 })
	boom := errors.New("boom")
	var logged error
	failing, err := DefineExpressionIn[int](registry, "failing", "explode(a)", []Binding{Bind("a", a)},
		WithCustomFunction("explode", func(...any) (any, error) { return nil, boom }),
		WithEvaluatorLogger(EvaluatorLoggerFunc(func(event EvaluatorLogEvent) { logged = event.Err })),
	)
	if err != nil {
		t.Fatalf("define: %v", err)
	}

	_, err = Get(context.Background(), NewMemoryStorage(), failing)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Atom != "failing" || evalErr.Expr != "explode(a)" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected the function error in the message, got %v", err)
	}
	if logged == nil {
		t.Fatalf("expected the failure to be logged")
	}
}

func TestExpressionProgramCacheSharing(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			cache := &fakeProgramCache{}
			evaluator := factory.new(cache, nil)
			registry := NewRegistry()
			a, _ := DefineIn(registry, "a", func() int { return 1 })
			storage := NewDependencyGraphStorage()
			ctx := context.Background()

			for _, name := range []string{"first", "second"} {
				derived, err := DefineExpressionIn[int](registry, name, "a + 1", []Binding{Bind("a", a)}, WithEvaluator(evaluator))
				if err != nil {
					t.Fatalf("define %s: %v", name, err)
				}
				if got, err := Get(ctx, storage, derived); err != nil || got != 2 {
					t.Fatalf("expected 2, got %d err=%v", got, err)
				}
			}
			if cache.misses != 1 {
				t.Fatalf("expected a single compilation, got %d misses", cache.misses)
			}
			if cache.hits == 0 {
				t.Fatalf("expected the second definition to reuse the cached program")
			}
		})
	}
}

func TestLRUProgramCacheEvicts(t *testing.T) {
	cache := NewLRUProgramCache(2)
	cache.Set("a", 1)
	cache.Set("b", 2)
	if _, ok := cache.Get("a"); !ok {
		t.Fatalf("expected a to be cached")
	}
	cache.Set("c", 3)
	if _, ok := cache.Get("b"); ok {
		t.Fatalf("expected least recently used b to be evicted")
	}
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a to survive, got %v ok=%v", v, ok)
	}

	shared := NewLRUProgramCache(0)
	registry := NewRegistry()
	a, _ := DefineIn(registry, "a", func() int { return 4 })
	sq, err := DefineExpressionIn[int](registry, "sq", "a * a", []Binding{Bind("a", a)}, WithProgramCache(shared))
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	if got, _ := Get(context.Background(), NewMemoryStorage(), sq); got != 16 {
		t.Fatalf("expected 16, got %d", got)
	}
	if _, ok := shared.Get(programKey("expr", "a * a", []string{"a"}, nil)); !ok {
		t.Fatalf("expected the compiled program in the shared cache")
	}
}
