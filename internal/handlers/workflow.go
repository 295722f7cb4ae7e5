package handlers

import (
	"context"

	"github.com/emarren/vaultflow/internal/engine"
	"github.com/emarren/vaultflow/pkg/schema"
)

// subworkflow runs a named workflow as a child. The child scope is seeded
// only from the inputs mapping; its final scope comes back either through an
// explicit outputs mapping into parent variables, or bound whole under the
// node's output variable so callers reach results as {{nodeId.var}}.
func (h *set) subworkflow(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if h.deps.Invoker == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no sub-workflow invoker configured", req.Node.Type)
	}
	name := stringParam(req.Params, "name", stringParam(req.Params, "workflow", ""))
	if name == "" {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s: missing required param %q", req.Node.Type, "name")
	}

	childScope, err := h.deps.Invoker.Invoke(ctx, req.Exec, name, mapParam(req.Params, "inputs"))
	if err != nil {
		return nil, err
	}

	if outputs := stringMapParam(req.Params, "outputs"); len(outputs) > 0 {
		var diags []string
		for childVar, parentVar := range outputs {
			value, ok := childScope[childVar]
			if !ok {
				diags = append(diags, schema.DiagTemplateWarning+": sub-workflow variable \""+childVar+"\" is not defined")
				continue
			}
			req.Exec.Scope.Set(parentVar, value)
		}
		return &engine.HandlerResult{Diagnostics: diags}, nil
	}

	return &engine.HandlerResult{Output: childScope, BindOutput: true}, nil
}
