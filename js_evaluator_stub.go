//go:build !js_eval

package atoms

// NewJSEvaluator returns nil unless built with the js_eval tag. Passing the
// result to WithEvaluator makes DefineExpression fail with ErrNoEvaluator.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSEvaluatorConfig(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
