package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emarren/vaultflow/pkg/schema"
)

const docWithWorkflow = `# Daily automation

Some prose around the definition.

` + "```vaultflow" + `
{
  "name": "daily-summary",
  "nodes": [
    {"id": "load", "type": "note-read", "path": "inbox/today.md"},
    {"id": "run", "type": "command", "prompt": "Summarize: {{load.content}}"}
  ]
}
` + "```" + `

More prose after.
`

func TestExtractDefinitions(t *testing.T) {
	defs, err := ExtractDefinitions(docWithWorkflow)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "daily-summary", defs[0].Name)
	require.Len(t, defs[0].Nodes, 2)
	assert.Equal(t, schema.NodeTypeNoteRead, defs[0].Nodes[0].Type)
}

func TestExtractDefinitions_IgnoresOtherFences(t *testing.T) {
	doc := "```go\nfunc main() {}\n```\n```vaultflow\n{\"name\":\"x\",\"nodes\":[]}\n```\n"
	defs, err := ExtractDefinitions(doc)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "x", defs[0].Name)
}

func TestExtractDefinitions_InvalidJSON(t *testing.T) {
	doc := "```workflow\nnot json\n```\n"
	_, err := ExtractDefinitions(doc)
	require.Error(t, err)
}

func TestDocStoreLoader_LoadWorkflow(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	seed(t, dir, "automations/daily.md", docWithWorkflow)
	seed(t, dir, "plain.md", "no workflows here")

	loader := NewDocStoreLoader(s)

	def, err := loader.LoadWorkflow(ctx, "daily-summary")
	require.NoError(t, err)
	assert.Len(t, def.Nodes, 2)

	_, err = loader.LoadWorkflow(ctx, "missing")
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)
}

func TestDocStoreLoader_DuplicateNameRejected(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	seed(t, dir, "a.md", docWithWorkflow)
	seed(t, dir, "b.md", docWithWorkflow)

	loader := NewDocStoreLoader(s)
	_, err := loader.LoadWorkflow(ctx, "daily-summary")
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
}
