package handlers

import (
	"context"
	"encoding/json"

	"github.com/emarren/vaultflow/internal/engine"
	"github.com/emarren/vaultflow/internal/providers"
	"github.com/emarren/vaultflow/pkg/schema"
)

// command runs a prompt through the host's LLM command runner and binds the
// textual output.
func (h *set) command(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if h.deps.Collab.Runner == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no command runner configured", req.Node.Type)
	}
	prompt, err := requireString(req.Params, req.Node.Type, "prompt")
	if err != nil {
		return nil, err
	}

	res, err := h.deps.Collab.Runner.RunCommand(ctx, providers.CommandRequest{
		Prompt:  prompt,
		Command: stringParam(req.Params, "command", ""),
		Model:   stringParam(req.Params, "model", ""),
	})
	if err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}
	return &engine.HandlerResult{Output: res.Output, BindOutput: true}, nil
}

// httpRequest performs an outbound HTTP call. Error statuses bind into the
// scope unless throwOnError is set, in which case they fail the run.
func (h *set) httpRequest(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if h.deps.Collab.HTTP == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no http gateway configured", req.Node.Type)
	}
	url, err := requireString(req.Params, req.Node.Type, "url")
	if err != nil {
		return nil, err
	}

	body := ""
	if raw, ok := req.Params["body"]; ok && raw != nil {
		if s, isStr := raw.(string); isStr {
			body = s
		} else {
			b, err := json.Marshal(raw)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeValidation, "http: marshal body: %s", err.Error()).WithCause(err)
			}
			body = string(b)
		}
	}

	resp, err := h.deps.Collab.HTTP.Do(ctx, providers.HTTPRequest{
		Method:  stringParam(req.Params, "method", "GET"),
		URL:     url,
		Headers: stringMapParam(req.Params, "headers"),
		Body:    body,
	})
	if err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}

	output := map[string]any{
		"status":  resp.Status,
		"headers": resp.Headers,
		"body":    resp.Body,
	}
	if resp.JSON != nil {
		output["json"] = resp.JSON
	}

	if boolParam(req.Params, "throwOnError", false) && resp.Status >= 400 {
		return nil, schema.NewErrorf(schema.ErrCodeHandler, "http: server returned %d", resp.Status).
			WithDetails(output)
	}
	return &engine.HandlerResult{Output: output, BindOutput: true}, nil
}

// mcpCall invokes a tool on a remote MCP server.
func (h *set) mcpCall(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if h.deps.Collab.Tools == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no tool gateway configured", req.Node.Type)
	}
	serverURL := stringParam(req.Params, "serverUrl", stringParam(req.Params, "url", ""))
	if serverURL == "" {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s: missing required param %q", req.Node.Type, "serverUrl")
	}
	tool, err := requireString(req.Params, req.Node.Type, "tool")
	if err != nil {
		return nil, err
	}

	res, err := h.deps.Collab.Tools.CallTool(ctx, providers.ToolCall{
		ServerURL: serverURL,
		Headers:   stringMapParam(req.Params, "headers"),
		Tool:      tool,
		Arguments: mapParam(req.Params, "args"),
	})
	if err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}

	output := map[string]any{
		"text":    res.Text,
		"isError": res.IsError,
	}
	if res.Structured != nil {
		output["structured"] = res.Structured
	}
	if res.IsError && boolParam(req.Params, "throwOnError", false) {
		return nil, schema.NewErrorf(schema.ErrCodeHandler, "mcp: tool %q reported an error", tool).
			WithDetails(output)
	}
	return &engine.HandlerResult{Output: output, BindOutput: true}, nil
}

// ragSync pushes documents into the host's retrieval index. Explicit paths
// win; otherwise the folder param is expanded through the store.
func (h *set) ragSync(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if h.deps.Collab.Rag == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no rag syncer configured", req.Node.Type)
	}

	paths := stringSliceParam(req.Params, "paths")
	if len(paths) == 0 {
		store, err := h.store(req.Node.Type)
		if err != nil {
			return nil, err
		}
		paths, err = store.List(ctx, stringParam(req.Params, "folder", ""), true)
		if err != nil {
			return nil, err
		}
	}

	synced, err := h.deps.Collab.Rag.Sync(ctx, paths)
	if err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}
	return &engine.HandlerResult{
		Output:     map[string]any{"synced": synced},
		BindOutput: true,
	}, nil
}

// hostCommand executes a host application command by its identifier.
func (h *set) hostCommand(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if h.deps.Collab.Host == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no host commander configured", req.Node.Type)
	}
	id, err := requireString(req.Params, req.Node.Type, "commandId")
	if err != nil {
		return nil, err
	}
	if err := h.deps.Collab.Host.RunHostCommand(ctx, id); err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}
	return &engine.HandlerResult{}, nil
}
