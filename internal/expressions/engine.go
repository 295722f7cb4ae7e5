package expressions

import "context"

// Engine evaluates expressions against a run scope snapshot.
// Three implementations: Expr (set node computations), GoJQ (json node
// transforms), CEL (trigger binding filters).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
