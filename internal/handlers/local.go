package handlers

import (
	"context"
	"time"

	"github.com/emarren/vaultflow/internal/engine"
	"github.com/emarren/vaultflow/pkg/schema"
)

// variable declares a variable with an initial value. An existing binding is
// left alone, so declarations act as defaults that triggers and callers can
// pre-seed.
func (h *set) variable(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if vars := mapParam(req.Params, "variables"); vars != nil {
		for name, value := range vars {
			if _, exists := req.Exec.Scope.Get(name); !exists {
				req.Exec.Scope.Set(name, value)
			}
		}
		return &engine.HandlerResult{}, nil
	}

	name, err := requireString(req.Params, req.Node.Type, "name")
	if err != nil {
		return nil, err
	}
	if _, exists := req.Exec.Scope.Get(name); !exists {
		req.Exec.Scope.Set(name, req.Params["value"])
	}
	return &engine.HandlerResult{}, nil
}

// setVar assigns a variable. The value is either the resolved value param or
// the result of an expr expression evaluated against the current scope.
func (h *set) setVar(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	name, err := requireString(req.Params, req.Node.Type, "name")
	if err != nil {
		return nil, err
	}

	var value any
	if exprSrc := stringParam(req.Params, "expr", ""); exprSrc != "" {
		value, err = h.deps.Expr.Evaluate(ctx, exprSrc, req.Exec.Scope.Snapshot())
		if err != nil {
			return nil, err
		}
	} else {
		value = req.Params["value"]
	}

	req.Exec.Scope.Set(name, value)
	return &engine.HandlerResult{}, nil
}

// condition serves both if and while: evaluate the comparison and report the
// outcome. A malformed condition evaluates false and the run continues, with
// the parse failure recorded as a diagnostic.
func (h *set) condition(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	raw := stringParam(req.Params, "condition", "")
	outcome, diags := h.deps.Conditions.Evaluate(raw, req.Exec.Scope.Snapshot())
	return &engine.HandlerResult{Branch: &outcome, Diagnostics: diags}, nil
}

// jsonQuery transforms a value with a jq program, or evaluates an expr
// expression over the whole scope when engine is "expr".
func (h *set) jsonQuery(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	query, err := requireString(req.Params, req.Node.Type, "query")
	if err != nil {
		return nil, err
	}

	var out any
	switch eng := stringParam(req.Params, "engine", "jq"); eng {
	case "jq":
		out, err = h.deps.JQ.EvaluateInput(ctx, query, req.Params["input"])
	case "expr":
		out, err = h.deps.Expr.Evaluate(ctx, query, req.Exec.Scope.Snapshot())
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "json: unknown engine %q", eng)
	}
	if err != nil {
		return nil, err
	}
	return &engine.HandlerResult{Output: out, BindOutput: true}, nil
}

// sleep pauses the run. Duration comes from a Go duration string or a
// numeric millisecond count.
func (h *set) sleep(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	var d time.Duration
	if ds := stringParam(req.Params, "duration", ""); ds != "" {
		parsed, err := time.ParseDuration(ds)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "sleep: invalid duration %q", ds)
		}
		d = parsed
	} else if ms := intParam(req.Params, "ms", 0); ms > 0 {
		d = time.Duration(ms) * time.Millisecond
	} else {
		return nil, schema.NewError(schema.ErrCodeValidation, "sleep: missing duration or ms param")
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return &engine.HandlerResult{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
