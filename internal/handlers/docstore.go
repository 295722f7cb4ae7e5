package handlers

import (
	"context"

	"github.com/emarren/vaultflow/internal/engine"
	"github.com/emarren/vaultflow/internal/providers"
	"github.com/emarren/vaultflow/pkg/schema"
)

func (h *set) store(nodeType schema.NodeType) (providers.DocumentStore, error) {
	if h.deps.Collab.Store == nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no document store configured", nodeType)
	}
	return h.deps.Collab.Store, nil
}

// noteWrite writes content to a document. A declined overwrite confirmation
// is an outcome, not a failure; downstream nodes can branch on it.
func (h *set) noteWrite(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	store, err := h.store(req.Node.Type)
	if err != nil {
		return nil, err
	}
	path, err := requireString(req.Params, req.Node.Type, "path")
	if err != nil {
		return nil, err
	}
	content := stringParam(req.Params, "content", "")

	res, err := store.Write(ctx, path, content, providers.WriteOptions{
		Mode:    providers.WriteMode(stringParam(req.Params, "mode", string(providers.WriteOverwrite))),
		Confirm: boolParam(req.Params, "confirm", false),
	})
	if err != nil {
		return nil, err
	}
	return &engine.HandlerResult{
		Output: map[string]any{
			"path":     res.Path,
			"written":  res.Written,
			"declined": res.Declined,
		},
		BindOutput: true,
	}, nil
}

// noteRead loads a document into the scope as {path, content}.
func (h *set) noteRead(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	store, err := h.store(req.Node.Type)
	if err != nil {
		return nil, err
	}
	path, err := requireString(req.Params, req.Node.Type, "path")
	if err != nil {
		return nil, err
	}

	content, err := store.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return &engine.HandlerResult{
		Output:     map[string]any{"path": path, "content": content},
		BindOutput: true,
	}, nil
}

// noteSearch runs a full-text search and binds the hits.
func (h *set) noteSearch(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	store, err := h.store(req.Node.Type)
	if err != nil {
		return nil, err
	}
	query, err := requireString(req.Params, req.Node.Type, "query")
	if err != nil {
		return nil, err
	}

	hits, err := store.Search(ctx, query, intParam(req.Params, "limit", 50))
	if err != nil {
		return nil, err
	}
	out := make([]any, len(hits))
	for i, hit := range hits {
		out[i] = map[string]any{"path": hit.Path, "line": hit.Line, "snippet": hit.Snippet}
	}
	return &engine.HandlerResult{Output: out, BindOutput: true}, nil
}

// noteList binds the document paths under a folder.
func (h *set) noteList(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	store, err := h.store(req.Node.Type)
	if err != nil {
		return nil, err
	}
	paths, err := store.List(ctx,
		stringParam(req.Params, "folder", ""),
		boolParam(req.Params, "recursive", true),
	)
	if err != nil {
		return nil, err
	}
	return &engine.HandlerResult{Output: toAnySlice(paths), BindOutput: true}, nil
}

// folderList binds the subfolder paths under a folder.
func (h *set) folderList(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	store, err := h.store(req.Node.Type)
	if err != nil {
		return nil, err
	}
	folders, err := store.Folders(ctx, stringParam(req.Params, "folder", ""))
	if err != nil {
		return nil, err
	}
	return &engine.HandlerResult{Output: toAnySlice(folders), BindOutput: true}, nil
}

// fileSave writes content to a path the user picks. A path param skips the
// prompt; a cancelled prompt is a declined outcome.
func (h *set) fileSave(ctx context.Context, req *engine.HandlerRequest) (*engine.HandlerResult, error) {
	store, err := h.store(req.Node.Type)
	if err != nil {
		return nil, err
	}

	path := stringParam(req.Params, "path", "")
	if path == "" {
		if h.deps.Collab.Prompter == nil {
			return nil, schema.NewErrorf(schema.ErrCodeProvider, "%s: no prompter configured", req.Node.Type)
		}
		answer, err := h.deps.Collab.Prompter.Prompt(ctx, providers.PromptSpec{
			Kind:    providers.PromptFilePick,
			Title:   stringParam(req.Params, "title", "Save file"),
			Default: stringParam(req.Params, "default", ""),
		})
		if err != nil {
			return nil, err
		}
		if answer.Cancelled || answer.Value == "" {
			return &engine.HandlerResult{
				Output:     map[string]any{"path": "", "written": false, "declined": true},
				BindOutput: true,
			}, nil
		}
		path = answer.Value
	}

	res, err := store.Write(ctx, path, stringParam(req.Params, "content", ""), providers.WriteOptions{
		Mode:    providers.WriteOverwrite,
		Confirm: boolParam(req.Params, "confirm", true),
	})
	if err != nil {
		return nil, err
	}
	return &engine.HandlerResult{
		Output: map[string]any{
			"path":     res.Path,
			"written":  res.Written,
			"declined": res.Declined,
		},
		BindOutput: true,
	}, nil
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
