package atoms

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("atoms: evaluator not configured")

// resolveEvaluator returns the configured evaluator, building the default
// expr evaluator when none was selected.
func (cfg expressionConfig) resolveEvaluator() (Evaluator, error) {
	if cfg.evaluatorSet {
		if cfg.evaluator == nil {
			return nil, ErrNoEvaluator
		}
		return cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
	}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	return NewExprEvaluator(exprOpts...), nil
}

func (cfg expressionConfig) evaluatorLogger() EvaluatorLogger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopEvaluatorLogger{}
}

// evaluate runs rule, timing and logging the attempt.
func (cfg expressionConfig) evaluate(evaluator Evaluator, rule CompiledRule, expression string, ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, err := rule.Evaluate(ctx)
	duration := time.Since(start)
	err = wrapEvaluationError(engine, expression, ctx.atomLabel(), err)
	cfg.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expression,
		Atom:     ctx.atomLabel(),
		Duration: duration,
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// EvaluatorLogEvent describes an evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Atom     string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*atoms.exprEvaluator":
		return "expr"
	case "*atoms.celEvaluator":
		return "cel"
	case "*atoms.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
