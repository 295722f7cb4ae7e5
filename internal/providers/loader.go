package providers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/emarren/vaultflow/pkg/schema"
)

// fence tags recognized as embedded workflow definitions.
var workflowFenceTags = map[string]bool{
	"vaultflow": true,
	"workflow":  true,
}

// FoundWorkflow pairs a decoded definition with the document it lives in.
type FoundWorkflow struct {
	Definition *schema.WorkflowDefinition
	Path       string
}

// DocStoreLoader finds workflow definitions embedded in documents as fenced
// code blocks tagged "vaultflow" (or "workflow") whose body is the JSON node
// list. Lookups scan the store so edited documents take effect without a
// reload step.
type DocStoreLoader struct {
	store DocumentStore
}

// NewDocStoreLoader creates a loader over the given store.
func NewDocStoreLoader(store DocumentStore) *DocStoreLoader {
	return &DocStoreLoader{store: store}
}

// LoadWorkflow finds the named workflow. Duplicate names across documents
// are a validation error: triggers address workflows by name, so the name
// must be unambiguous.
func (l *DocStoreLoader) LoadWorkflow(ctx context.Context, name string) (*schema.WorkflowDefinition, error) {
	if name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty workflow name")
	}

	found, err := l.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}

	var match *FoundWorkflow
	for _, fw := range found {
		if fw.Definition.Name != name {
			continue
		}
		if match != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"workflow %q defined in both %q and %q", name, match.Path, fw.Path)
		}
		match = fw
	}
	if match == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", name)
	}
	return match.Definition, nil
}

// ListWorkflows scans every document and returns all embedded definitions,
// named or not.
func (l *DocStoreLoader) ListWorkflows(ctx context.Context) ([]*FoundWorkflow, error) {
	paths, err := l.store.List(ctx, "", true)
	if err != nil {
		return nil, err
	}

	var out []*FoundWorkflow
	for _, path := range paths {
		if !strings.HasSuffix(path, ".md") {
			continue
		}
		content, err := l.store.Read(ctx, path)
		if err != nil {
			return nil, err
		}
		defs, err := ExtractDefinitions(content)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"document %q: %s", path, err.Error()).WithCause(err)
		}
		for _, def := range defs {
			out = append(out, &FoundWorkflow{Definition: def, Path: path})
		}
	}
	return out, nil
}

// ExtractDefinitions parses every tagged fenced block in a document body.
func ExtractDefinitions(content string) ([]*schema.WorkflowDefinition, error) {
	var defs []*schema.WorkflowDefinition

	lines := strings.Split(content, "\n")
	inBlock := false
	var body []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inBlock {
			if tag, ok := fenceTag(trimmed); ok && workflowFenceTags[tag] {
				inBlock = true
				body = body[:0]
			}
			continue
		}
		if trimmed == "```" {
			inBlock = false
			def := &schema.WorkflowDefinition{}
			raw := strings.Join(body, "\n")
			if err := json.Unmarshal([]byte(raw), def); err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"invalid workflow block: %s", err.Error()).WithCause(err)
			}
			defs = append(defs, def)
			continue
		}
		body = append(body, line)
	}
	return defs, nil
}

func fenceTag(line string) (string, bool) {
	if !strings.HasPrefix(line, "```") {
		return "", false
	}
	tag := strings.TrimSpace(strings.TrimPrefix(line, "```"))
	if tag == "" {
		return "", false
	}
	return strings.ToLower(tag), true
}
