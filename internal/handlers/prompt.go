package handlers

import (
	"context"

	"github.com/emarren/vaultflow/internal/engine"
	"github.com/emarren/vaultflow/internal/providers"
	"github.com/emarren/vaultflow/pkg/schema"
)

func (h *set) prompter(nodeType schema.NodeType) (providers.Prompter, error) {
	if h.deps.Collab.Prompter == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no prompter configured", nodeType)
	}
	return h.deps.Collab.Prompter, nil
}

// promptFile asks the user to pick a document. Event-triggered runs take the
// event's file and hotkey-triggered runs take the editor's active file, both
// without prompting, so the same workflow works interactively and in the
// background. A force:true param always prompts.
func (h *set) promptFile(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if !boolParam(req.Params, "force", false) {
		switch req.Exec.TriggerMode {
		case schema.TriggerModeEvent:
			if path, ok := req.Exec.Scope.Get(schema.VarEventFilePath); ok {
				return &engine.HandlerResult{Output: path, BindOutput: true}, nil
			}
		case schema.TriggerModeHotkey:
			if path, ok := req.Exec.Scope.Get(schema.VarActiveFilePath); ok {
				return &engine.HandlerResult{Output: path, BindOutput: true}, nil
			}
		}
	}

	prompter, err := h.prompter(req.Node.Type)
	if err != nil {
		return nil, err
	}
	answer, err := prompter.Prompt(ctx, providers.PromptSpec{
		Kind:    providers.PromptFilePick,
		Title:   stringParam(req.Params, "title", "Choose a file"),
		Message: stringParam(req.Params, "message", ""),
		Default: stringParam(req.Params, "default", ""),
	})
	if err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}
	if answer.Cancelled {
		return nil, schema.NewErrorf(schema.ErrCodeCancelled, "%s: prompt dismissed", req.Node.Type)
	}
	return &engine.HandlerResult{Output: answer.Value, BindOutput: true}, nil
}

// promptSelection captures the current editor selection. Hotkey-triggered
// runs substitute the selection the host reported; event-triggered runs
// substitute the event file's content, since no editor selection exists in
// the background. A force:true param always prompts.
func (h *set) promptSelection(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if !boolParam(req.Params, "force", false) {
		switch req.Exec.TriggerMode {
		case schema.TriggerModeEvent:
			if content, ok := req.Exec.Scope.Get(schema.VarEventFileContent); ok {
				return &engine.HandlerResult{Output: content, BindOutput: true}, nil
			}
		case schema.TriggerModeHotkey:
			if selection, ok := req.Exec.Scope.Get(schema.VarActiveSelection); ok {
				return &engine.HandlerResult{Output: selection, BindOutput: true}, nil
			}
		}
	}

	prompter, err := h.prompter(req.Node.Type)
	if err != nil {
		return nil, err
	}
	answer, err := prompter.Prompt(ctx, providers.PromptSpec{
		Kind:    providers.PromptSelection,
		Message: stringParam(req.Params, "message", ""),
	})
	if err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}
	if answer.Cancelled {
		return nil, schema.NewErrorf(schema.ErrCodeCancelled, "%s: prompt dismissed", req.Node.Type)
	}
	return &engine.HandlerResult{Output: answer.Value, BindOutput: true}, nil
}

// dialog shows a message with buttons and binds the chosen label. The
// cancelled flag is part of the output so workflows can branch on dismissal
// instead of failing.
func (h *set) dialog(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	prompter, err := h.prompter(req.Node.Type)
	if err != nil {
		return nil, err
	}

	buttons := stringSliceParam(req.Params, "buttons")
	if len(buttons) == 0 {
		buttons = []string{"OK"}
	}

	answer, err := prompter.Prompt(ctx, providers.PromptSpec{
		Kind:    providers.PromptButtons,
		Title:   stringParam(req.Params, "title", ""),
		Message: stringParam(req.Params, "message", ""),
		Options: buttons,
		Default: stringParam(req.Params, "default", ""),
	})
	if err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}
	return &engine.HandlerResult{
		Output: map[string]any{
			"value":     answer.Value,
			"cancelled": answer.Cancelled,
		},
		BindOutput: true,
	}, nil
}

// open reveals a document in the host editor.
func (h *set) open(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if h.deps.Collab.Opener == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no opener configured", req.Node.Type)
	}
	path, err := requireString(req.Params, req.Node.Type, "path")
	if err != nil {
		return nil, err
	}
	if err := h.deps.Collab.Opener.OpenDocument(ctx, path); err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}
	return &engine.HandlerResult{}, nil
}

// fileExplorer reveals a path in the system file explorer.
func (h *set) fileExplorer(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	if h.deps.Collab.Opener == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no opener configured", req.Node.Type)
	}
	path, err := requireString(req.Params, req.Node.Type, "path")
	if err != nil {
		return nil, err
	}
	if err := h.deps.Collab.Opener.RevealInExplorer(ctx, path); err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeProvider)
	}
	return &engine.HandlerResult{}, nil
}
