package schema

import (
	"encoding/json"
	"fmt"
)

// WorkflowDefinition is the decoded form of a workflow embedded in a document:
// an ordered list of typed nodes plus an optional name. The name is required
// for hotkey and event bindings (triggers address workflows by name).
type WorkflowDefinition struct {
	Name  string `json:"name,omitempty"`
	Nodes []Node `json:"nodes"`
}

// NodeType enumerates the closed set of node variants.
type NodeType string

const (
	NodeTypeVariable        NodeType = "variable"
	NodeTypeSet             NodeType = "set"
	NodeTypeIf              NodeType = "if"
	NodeTypeWhile           NodeType = "while"
	NodeTypeCommand         NodeType = "command"
	NodeTypeHTTP            NodeType = "http"
	NodeTypeJSON            NodeType = "json"
	NodeTypeNote            NodeType = "note"
	NodeTypeNoteRead        NodeType = "note-read"
	NodeTypeNoteSearch      NodeType = "note-search"
	NodeTypeNoteList        NodeType = "note-list"
	NodeTypeFolderList      NodeType = "folder-list"
	NodeTypeOpen            NodeType = "open"
	NodeTypeFileExplorer    NodeType = "file-explorer"
	NodeTypeFileSave        NodeType = "file-save"
	NodeTypePromptFile      NodeType = "prompt-file"
	NodeTypePromptSelection NodeType = "prompt-selection"
	NodeTypeDialog          NodeType = "dialog"
	NodeTypeWorkflow        NodeType = "workflow"
	NodeTypeRagSync         NodeType = "rag-sync"
	NodeTypeMCP             NodeType = "mcp"
	NodeTypeHostCommand     NodeType = "obsidian-command"
	NodeTypeSleep           NodeType = "sleep"
)

// KnownNodeTypes is the closed set of recognized node types.
// The graph builder rejects anything outside this set at build time.
var KnownNodeTypes = map[NodeType]bool{
	NodeTypeVariable:        true,
	NodeTypeSet:             true,
	NodeTypeIf:              true,
	NodeTypeWhile:           true,
	NodeTypeCommand:         true,
	NodeTypeHTTP:            true,
	NodeTypeJSON:            true,
	NodeTypeNote:            true,
	NodeTypeNoteRead:        true,
	NodeTypeNoteSearch:      true,
	NodeTypeNoteList:        true,
	NodeTypeFolderList:      true,
	NodeTypeOpen:            true,
	NodeTypeFileExplorer:    true,
	NodeTypeFileSave:        true,
	NodeTypePromptFile:      true,
	NodeTypePromptSelection: true,
	NodeTypeDialog:          true,
	NodeTypeWorkflow:        true,
	NodeTypeRagSync:         true,
	NodeTypeMCP:             true,
	NodeTypeHostCommand:     true,
	NodeTypeSleep:           true,
}

// EndSentinel is the reserved successor value that terminates a run
// immediately, regardless of graph position.
const EndSentinel = "end"

// Node is one typed step in a workflow graph. The wire format carries the
// type-specific parameters inline next to the control fields; decoding
// separates them so handlers can unmarshal Params into their own typed
// structs without knowing about control flow.
type Node struct {
	ID        string   `json:"id"`
	Type      NodeType `json:"type"`
	Next      string   `json:"next,omitempty"`
	TrueNext  string   `json:"trueNext,omitempty"`
	FalseNext string   `json:"falseNext,omitempty"`

	// Params holds the remaining (type-specific) fields of the node record.
	Params json.RawMessage `json:"-"`
}

// controlFields are stripped from the record before Params is assembled.
var controlFields = map[string]bool{
	"id":        true,
	"type":      true,
	"next":      true,
	"trueNext":  true,
	"falseNext": true,
}

// UnmarshalJSON decodes a node record, splitting control fields from
// type-specific parameters.
func (n *Node) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode node record: %w", err)
	}

	strField := func(key string) (string, error) {
		raw, ok := fields[key]
		if !ok {
			return "", nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("node field %q must be a string: %w", key, err)
		}
		return s, nil
	}

	var err error
	if n.ID, err = strField("id"); err != nil {
		return err
	}
	var typ string
	if typ, err = strField("type"); err != nil {
		return err
	}
	n.Type = NodeType(typ)
	if n.Next, err = strField("next"); err != nil {
		return err
	}
	if n.TrueNext, err = strField("trueNext"); err != nil {
		return err
	}
	if n.FalseNext, err = strField("falseNext"); err != nil {
		return err
	}

	params := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if controlFields[k] {
			continue
		}
		params[k] = v
	}
	if len(params) == 0 {
		n.Params = nil
		return nil
	}
	n.Params, err = json.Marshal(params)
	if err != nil {
		return fmt.Errorf("reassemble node params: %w", err)
	}
	return nil
}

// MarshalJSON re-inlines Params next to the control fields.
func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if len(n.Params) > 0 {
		if err := json.Unmarshal(n.Params, &out); err != nil {
			return nil, fmt.Errorf("inline node params: %w", err)
		}
	}
	out["id"] = n.ID
	out["type"] = string(n.Type)
	if n.Next != "" {
		out["next"] = n.Next
	}
	if n.TrueNext != "" {
		out["trueNext"] = n.TrueNext
	}
	if n.FalseNext != "" {
		out["falseNext"] = n.FalseNext
	}
	return json.Marshal(out)
}

// IsBranch reports whether the node type carries trueNext/falseNext targets.
func (n *Node) IsBranch() bool {
	return n.Type == NodeTypeIf || n.Type == NodeTypeWhile
}
