//go:build !js_eval

package settings

// NewJSEvaluator returns nil unless the module is built with the js_eval tag.
// A schema given a nil evaluator falls back to expr.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
