// Package handlers implements one handler per node type. Handlers receive
// template-resolved parameters from the scheduler and talk to the outside
// world only through the provider interfaces.
package handlers

import (
	"encoding/json"

	"github.com/emarren/vaultflow/internal/engine"
	"github.com/emarren/vaultflow/internal/expressions"
	"github.com/emarren/vaultflow/internal/providers"
	"github.com/emarren/vaultflow/pkg/schema"
)

// Deps carries everything the handler set needs.
type Deps struct {
	Collab     providers.Collaborators
	Expr       *expressions.ExprEngine
	JQ         *expressions.GoJQEngine
	Conditions *expressions.ConditionEvaluator
	Invoker    engine.SubworkflowInvoker
}

// Register wires every node type into the registry. The set is exhaustive:
// a definition using any known node type can run against it.
func Register(reg *engine.Registry, d Deps) {
	h := &set{deps: d}

	// Local computation and control flow.
	reg.Register(schema.NodeTypeVariable, engine.Handler{Fn: h.variable})
	reg.Register(schema.NodeTypeSet, engine.Handler{Fn: h.setVar, RawParamKeys: []string{"expr"}})
	reg.Register(schema.NodeTypeIf, engine.Handler{Fn: h.condition, RawParamKeys: []string{"condition"}})
	reg.Register(schema.NodeTypeWhile, engine.Handler{Fn: h.condition, RawParamKeys: []string{"condition"}})
	reg.Register(schema.NodeTypeJSON, engine.Handler{Fn: h.jsonQuery, RawParamKeys: []string{"query"}})
	reg.Register(schema.NodeTypeSleep, engine.Handler{Fn: h.sleep})

	// Document store.
	reg.Register(schema.NodeTypeNote, engine.Handler{Fn: h.noteWrite})
	reg.Register(schema.NodeTypeNoteRead, engine.Handler{Fn: h.noteRead})
	reg.Register(schema.NodeTypeNoteSearch, engine.Handler{Fn: h.noteSearch})
	reg.Register(schema.NodeTypeNoteList, engine.Handler{Fn: h.noteList})
	reg.Register(schema.NodeTypeFolderList, engine.Handler{Fn: h.folderList})
	reg.Register(schema.NodeTypeFileSave, engine.Handler{Fn: h.fileSave, Interactive: true})

	// External capabilities.
	reg.Register(schema.NodeTypeCommand, engine.Handler{Fn: h.command})
	reg.Register(schema.NodeTypeHTTP, engine.Handler{Fn: h.httpRequest})
	reg.Register(schema.NodeTypeMCP, engine.Handler{Fn: h.mcpCall})
	reg.Register(schema.NodeTypeRagSync, engine.Handler{Fn: h.ragSync})
	reg.Register(schema.NodeTypeHostCommand, engine.Handler{Fn: h.hostCommand})

	// Host UI.
	reg.Register(schema.NodeTypeOpen, engine.Handler{Fn: h.open})
	reg.Register(schema.NodeTypeFileExplorer, engine.Handler{Fn: h.fileExplorer})
	reg.Register(schema.NodeTypePromptFile, engine.Handler{Fn: h.promptFile, Interactive: true})
	reg.Register(schema.NodeTypePromptSelection, engine.Handler{Fn: h.promptSelection, Interactive: true})
	reg.Register(schema.NodeTypeDialog, engine.Handler{Fn: h.dialog, Interactive: true})

	// Composition.
	reg.Register(schema.NodeTypeWorkflow, engine.Handler{Fn: h.subworkflow})
}

// set holds the dependency bundle for all handler methods.
type set struct {
	deps Deps
}

// --- Param helpers ---

func stringParam(m map[string]any, key, defaultVal string) string {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func boolParam(m map[string]any, key string, defaultVal bool) bool {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

func intParam(m map[string]any, key string, defaultVal int) int {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return defaultVal
		}
		return int(i)
	default:
		return defaultVal
	}
}

func mapParam(m map[string]any, key string) map[string]any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	out, _ := v.(map[string]any)
	return out
}

func stringMapParam(m map[string]any, key string) map[string]string {
	raw := mapParam(m, key)
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func stringSliceParam(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func requireString(m map[string]any, nodeType schema.NodeType, key string) (string, error) {
	s := stringParam(m, key, "")
	if s == "" {
		return "", schema.NewErrorf(schema.ErrCodeValidation,
			"%s: missing required param %q", nodeType, key)
	}
	return s, nil
}
