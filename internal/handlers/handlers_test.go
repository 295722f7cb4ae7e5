package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emarren/vaultflow/internal/engine"
	"github.com/emarren/vaultflow/internal/expressions"
	"github.com/emarren/vaultflow/internal/providers"
	"github.com/emarren/vaultflow/pkg/schema"
)

// --- Fakes ---

type fakeStore struct {
	docs    map[string]string
	folders []string
	hits    []providers.SearchHit
	writes  []string
	decline bool
}

func (f *fakeStore) Read(_ context.Context, path string) (string, error) {
	content, ok := f.docs[path]
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeNotFound, "document %q not found", path)
	}
	return content, nil
}

func (f *fakeStore) Write(_ context.Context, path, content string, opts providers.WriteOptions) (providers.WriteResult, error) {
	if opts.Confirm && f.decline {
		return providers.WriteResult{Path: path, Declined: true}, nil
	}
	if f.docs == nil {
		f.docs = map[string]string{}
	}
	f.docs[path] = content
	f.writes = append(f.writes, path)
	return providers.WriteResult{Path: path, Written: true}, nil
}

func (f *fakeStore) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.docs[path]
	return ok, nil
}

func (f *fakeStore) List(context.Context, string, bool) ([]string, error) {
	paths := make([]string, 0, len(f.docs))
	for p := range f.docs {
		paths = append(paths, p)
	}
	return paths, nil
}

func (f *fakeStore) Folders(context.Context, string) ([]string, error) { return f.folders, nil }

func (f *fakeStore) Search(context.Context, string, int) ([]providers.SearchHit, error) {
	return f.hits, nil
}

func (f *fakeStore) Rename(_ context.Context, oldPath, newPath string) error {
	f.docs[newPath] = f.docs[oldPath]
	delete(f.docs, oldPath)
	return nil
}

type fakeRunner struct {
	lastReq providers.CommandRequest
	output  string
}

func (f *fakeRunner) RunCommand(_ context.Context, req providers.CommandRequest) (providers.CommandResult, error) {
	f.lastReq = req
	return providers.CommandResult{Output: f.output}, nil
}

type fakeHTTP struct {
	lastReq providers.HTTPRequest
	resp    providers.HTTPResponse
}

func (f *fakeHTTP) Do(_ context.Context, req providers.HTTPRequest) (*providers.HTTPResponse, error) {
	f.lastReq = req
	resp := f.resp
	return &resp, nil
}

type fakeTools struct {
	lastCall providers.ToolCall
	result   providers.ToolResult
}

func (f *fakeTools) CallTool(_ context.Context, call providers.ToolCall) (*providers.ToolResult, error) {
	f.lastCall = call
	res := f.result
	return &res, nil
}

func (f *fakeTools) Close() error { return nil }

type fakePrompter struct {
	lastSpec providers.PromptSpec
	answer   providers.PromptAnswer
}

func (f *fakePrompter) Prompt(_ context.Context, spec providers.PromptSpec) (providers.PromptAnswer, error) {
	f.lastSpec = spec
	return f.answer, nil
}

type fakeHost struct {
	ran []string
}

func (f *fakeHost) RunHostCommand(_ context.Context, id string) error {
	f.ran = append(f.ran, id)
	return nil
}

type fakeRag struct {
	synced []string
}

func (f *fakeRag) Sync(_ context.Context, paths []string) (int, error) {
	f.synced = append(f.synced, paths...)
	return len(paths), nil
}

type fakeOpener struct {
	opened   []string
	revealed []string
}

func (f *fakeOpener) OpenDocument(_ context.Context, path string) error {
	f.opened = append(f.opened, path)
	return nil
}

func (f *fakeOpener) RevealInExplorer(_ context.Context, path string) error {
	f.revealed = append(f.revealed, path)
	return nil
}

type fakeInvoker struct {
	lastName   string
	lastInputs map[string]any
	scope      map[string]any
	err        error
}

func (f *fakeInvoker) Invoke(_ context.Context, _ *engine.ExecutionContext, name string, inputs map[string]any) (map[string]any, error) {
	f.lastName = name
	f.lastInputs = inputs
	if f.err != nil {
		return nil, f.err
	}
	return f.scope, nil
}

// --- Helpers ---

func newSet(collab providers.Collaborators, inv engine.SubworkflowInvoker) *set {
	templates := expressions.NewTemplateEngine()
	return &set{deps: Deps{
		Collab:     collab,
		Expr:       expressions.NewExprEngine(),
		JQ:         expressions.NewGoJQEngine(),
		Conditions: expressions.NewConditionEvaluator(templates),
		Invoker:    inv,
	}}
}

func runReq(nodeType schema.NodeType, params map[string]any, seed map[string]any) *engine.HandlerRequest {
	return &engine.HandlerRequest{
		Node:   &schema.Node{ID: "n1", Type: nodeType},
		Params: params,
		Exec:   engine.NewExecutionContext("run-1", "wf", schema.TriggerModePanel, seed),
	}
}

// --- Local handlers ---

func TestVariable_DeclareAndPreserveExisting(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypeVariable,
		map[string]any{"name": "greeting", "value": "hello"}, nil)
	_, err := h.variable(context.Background(), req)
	require.NoError(t, err)
	v, _ := req.Exec.Scope.Get("greeting")
	assert.Equal(t, "hello", v)

	// Existing bindings win over declarations.
	req2 := runReq(schema.NodeTypeVariable,
		map[string]any{"name": "greeting", "value": "default"},
		map[string]any{"greeting": "preseeded"})
	_, err = h.variable(context.Background(), req2)
	require.NoError(t, err)
	v, _ = req2.Exec.Scope.Get("greeting")
	assert.Equal(t, "preseeded", v)
}

func TestVariable_MapForm(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)
	req := runReq(schema.NodeTypeVariable, map[string]any{
		"variables": map[string]any{"a": 1, "b": "two"},
	}, map[string]any{"a": 99})

	_, err := h.variable(context.Background(), req)
	require.NoError(t, err)
	a, _ := req.Exec.Scope.Get("a")
	b, _ := req.Exec.Scope.Get("b")
	assert.Equal(t, 99, a)
	assert.Equal(t, "two", b)
}

func TestSetVar_ValueAndExpr(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypeSet, map[string]any{"name": "x", "value": 42}, nil)
	_, err := h.setVar(context.Background(), req)
	require.NoError(t, err)
	x, _ := req.Exec.Scope.Get("x")
	assert.Equal(t, 42, x)

	req2 := runReq(schema.NodeTypeSet,
		map[string]any{"name": "total", "expr": "count * 2"},
		map[string]any{"count": 5})
	_, err = h.setVar(context.Background(), req2)
	require.NoError(t, err)
	total, _ := req2.Exec.Scope.Get("total")
	assert.EqualValues(t, 10, total)
}

func TestCondition_BranchOutcome(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypeIf,
		map[string]any{"condition": "{{count}} > 3"},
		map[string]any{"count": 5})
	res, err := h.condition(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.Branch)
	assert.True(t, *res.Branch)
	assert.Empty(t, res.Diagnostics)
}

func TestCondition_ParseFailureIsFalseWithDiagnostic(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypeIf,
		map[string]any{"condition": "no operator here"}, nil)
	res, err := h.condition(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.Branch)
	assert.False(t, *res.Branch)
	assert.Len(t, res.Diagnostics, 1)
}

func TestJSONQuery_JQ(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypeJSON, map[string]any{
		"query": ".items | length",
		"input": map[string]any{"items": []any{"a", "b", "c"}},
	}, nil)
	res, err := h.jsonQuery(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.BindOutput)
	assert.EqualValues(t, 3, res.Output)
}

func TestJSONQuery_ExprEngine(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypeJSON, map[string]any{
		"query":  "upper(word)",
		"engine": "expr",
	}, map[string]any{"word": "hi"})
	res, err := h.jsonQuery(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "HI", res.Output)
}

func TestJSONQuery_UnknownEngine(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypeJSON, map[string]any{
		"query": ".", "engine": "xpath",
	}, nil)
	_, err := h.jsonQuery(context.Background(), req)
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
}

func TestSleep_CancelledContext(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := runReq(schema.NodeTypeSleep, map[string]any{"duration": "10s"}, nil)
	_, err := h.sleep(ctx, req)
	require.ErrorIs(t, err, context.Canceled)
}

// --- Document store handlers ---

func TestNoteWrite_And_Read(t *testing.T) {
	store := &fakeStore{}
	h := newSet(providers.Collaborators{Store: store}, nil)

	res, err := h.noteWrite(context.Background(), runReq(schema.NodeTypeNote,
		map[string]any{"path": "out/result.md", "content": "body"}, nil))
	require.NoError(t, err)
	out := res.Output.(map[string]any)
	assert.True(t, out["written"].(bool))
	assert.False(t, out["declined"].(bool))

	read, err := h.noteRead(context.Background(), runReq(schema.NodeTypeNoteRead,
		map[string]any{"path": "out/result.md"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "body", read.Output.(map[string]any)["content"])
}

func TestNoteWrite_DeclinedConfirmation(t *testing.T) {
	store := &fakeStore{decline: true}
	h := newSet(providers.Collaborators{Store: store}, nil)

	res, err := h.noteWrite(context.Background(), runReq(schema.NodeTypeNote,
		map[string]any{"path": "a.md", "content": "x", "confirm": true}, nil))
	require.NoError(t, err)
	out := res.Output.(map[string]any)
	assert.False(t, out["written"].(bool))
	assert.True(t, out["declined"].(bool))
	assert.Empty(t, store.writes)
}

func TestNoteSearch(t *testing.T) {
	store := &fakeStore{hits: []providers.SearchHit{
		{Path: "a.md", Line: 3, Snippet: "match here"},
	}}
	h := newSet(providers.Collaborators{Store: store}, nil)

	res, err := h.noteSearch(context.Background(), runReq(schema.NodeTypeNoteSearch,
		map[string]any{"query": "match"}, nil))
	require.NoError(t, err)
	hits := res.Output.([]any)
	require.Len(t, hits, 1)
	assert.Equal(t, "a.md", hits[0].(map[string]any)["path"])
}

func TestFileSave_PromptCancelledIsDeclined(t *testing.T) {
	store := &fakeStore{}
	prompter := &fakePrompter{answer: providers.PromptAnswer{Cancelled: true}}
	h := newSet(providers.Collaborators{Store: store, Prompter: prompter}, nil)

	res, err := h.fileSave(context.Background(), runReq(schema.NodeTypeFileSave,
		map[string]any{"content": "data"}, nil))
	require.NoError(t, err)
	out := res.Output.(map[string]any)
	assert.True(t, out["declined"].(bool))
	assert.Empty(t, store.writes)
}

func TestFileSave_PromptedPath(t *testing.T) {
	store := &fakeStore{}
	prompter := &fakePrompter{answer: providers.PromptAnswer{Value: "picked.md"}}
	h := newSet(providers.Collaborators{Store: store, Prompter: prompter}, nil)

	res, err := h.fileSave(context.Background(), runReq(schema.NodeTypeFileSave,
		map[string]any{"content": "data"}, nil))
	require.NoError(t, err)
	out := res.Output.(map[string]any)
	assert.Equal(t, "picked.md", out["path"])
	assert.True(t, out["written"].(bool))
	assert.Equal(t, "data", store.docs["picked.md"])
}

func TestMissingStoreIsProviderError(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	_, err := h.noteRead(context.Background(), runReq(schema.NodeTypeNoteRead,
		map[string]any{"path": "a.md"}, nil))
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeProvider, fe.Code)
}

// --- External handlers ---

func TestCommand(t *testing.T) {
	runner := &fakeRunner{output: "llm says hi"}
	h := newSet(providers.Collaborators{Runner: runner}, nil)

	res, err := h.command(context.Background(), runReq(schema.NodeTypeCommand,
		map[string]any{"prompt": "summarize this", "model": "fast"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "llm says hi", res.Output)
	assert.Equal(t, "summarize this", runner.lastReq.Prompt)
	assert.Equal(t, "fast", runner.lastReq.Model)
}

func TestHTTPRequest_BindsResponse(t *testing.T) {
	gw := &fakeHTTP{resp: providers.HTTPResponse{
		Status: 200,
		Body:   `{"ok":true}`,
		JSON:   map[string]any{"ok": true},
	}}
	h := newSet(providers.Collaborators{HTTP: gw}, nil)

	res, err := h.httpRequest(context.Background(), runReq(schema.NodeTypeHTTP, map[string]any{
		"url":    "https://api.example.com/v1/ping",
		"method": "POST",
		"body":   map[string]any{"q": 1},
	}, nil))
	require.NoError(t, err)
	out := res.Output.(map[string]any)
	assert.Equal(t, 200, out["status"])
	assert.Equal(t, map[string]any{"ok": true}, out["json"])
	assert.JSONEq(t, `{"q":1}`, gw.lastReq.Body)
}

func TestHTTPRequest_ThrowOnError(t *testing.T) {
	gw := &fakeHTTP{resp: providers.HTTPResponse{Status: 503, Body: "down"}}
	h := newSet(providers.Collaborators{HTTP: gw}, nil)

	_, err := h.httpRequest(context.Background(), runReq(schema.NodeTypeHTTP, map[string]any{
		"url": "https://api.example.com", "throwOnError": true,
	}, nil))
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeHandler, fe.Code)
}

func TestMCPCall(t *testing.T) {
	tools := &fakeTools{result: providers.ToolResult{Text: "tool output"}}
	h := newSet(providers.Collaborators{Tools: tools}, nil)

	res, err := h.mcpCall(context.Background(), runReq(schema.NodeTypeMCP, map[string]any{
		"serverUrl": "https://mcp.example.com",
		"tool":      "search",
		"args":      map[string]any{"q": "go"},
	}, nil))
	require.NoError(t, err)
	out := res.Output.(map[string]any)
	assert.Equal(t, "tool output", out["text"])
	assert.Equal(t, "search", tools.lastCall.Tool)
	assert.Equal(t, map[string]any{"q": "go"}, tools.lastCall.Arguments)
}

func TestMCPCall_ToolErrorThrows(t *testing.T) {
	tools := &fakeTools{result: providers.ToolResult{Text: "boom", IsError: true}}
	h := newSet(providers.Collaborators{Tools: tools}, nil)

	_, err := h.mcpCall(context.Background(), runReq(schema.NodeTypeMCP, map[string]any{
		"serverUrl": "https://mcp.example.com", "tool": "search", "throwOnError": true,
	}, nil))
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeHandler, fe.Code)
}

func TestRagSync_ExplicitPaths(t *testing.T) {
	rag := &fakeRag{}
	h := newSet(providers.Collaborators{Rag: rag}, nil)

	res, err := h.ragSync(context.Background(), runReq(schema.NodeTypeRagSync, map[string]any{
		"paths": []any{"a.md", "b.md"},
	}, nil))
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Output.(map[string]any)["synced"])
	assert.Equal(t, []string{"a.md", "b.md"}, rag.synced)
}

func TestRagSync_FolderExpansion(t *testing.T) {
	store := &fakeStore{docs: map[string]string{"notes/a.md": "", "notes/b.md": ""}}
	rag := &fakeRag{}
	h := newSet(providers.Collaborators{Store: store, Rag: rag}, nil)

	res, err := h.ragSync(context.Background(), runReq(schema.NodeTypeRagSync, map[string]any{
		"folder": "notes",
	}, nil))
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Output.(map[string]any)["synced"])
}

func TestHostCommand(t *testing.T) {
	host := &fakeHost{}
	h := newSet(providers.Collaborators{Host: host}, nil)

	_, err := h.hostCommand(context.Background(), runReq(schema.NodeTypeHostCommand,
		map[string]any{"commandId": "editor:toggle-preview"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"editor:toggle-preview"}, host.ran)
}

// --- Prompt handlers ---

func TestPromptFile_EventModeSkipsPrompt(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypePromptFile, nil,
		map[string]any{schema.VarEventFilePath: "inbox/changed.md"})
	req.Exec.TriggerMode = schema.TriggerModeEvent

	res, err := h.promptFile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "inbox/changed.md", res.Output)
}

func TestPromptFile_HotkeyModeUsesActiveFile(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypePromptFile, nil,
		map[string]any{schema.VarActiveFilePath: "daily/today.md"})
	req.Exec.TriggerMode = schema.TriggerModeHotkey

	res, err := h.promptFile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "daily/today.md", res.Output)
}

func TestPromptFile_ForceAlwaysPrompts(t *testing.T) {
	prompter := &fakePrompter{answer: providers.PromptAnswer{Value: "picked.md"}}
	h := newSet(providers.Collaborators{Prompter: prompter}, nil)

	req := runReq(schema.NodeTypePromptFile,
		map[string]any{"force": true},
		map[string]any{schema.VarActiveFilePath: "daily/today.md"})
	req.Exec.TriggerMode = schema.TriggerModeHotkey

	res, err := h.promptFile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "picked.md", res.Output)
	assert.Equal(t, providers.PromptFilePick, prompter.lastSpec.Kind)
}

func TestPromptFile_CancelledFailsRun(t *testing.T) {
	prompter := &fakePrompter{answer: providers.PromptAnswer{Cancelled: true}}
	h := newSet(providers.Collaborators{Prompter: prompter}, nil)

	_, err := h.promptFile(context.Background(), runReq(schema.NodeTypePromptFile, nil, nil))
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeCancelled, fe.Code)
}

func TestPromptSelection_EventModeUsesFileContent(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypePromptSelection, nil,
		map[string]any{schema.VarEventFileContent: "file body"})
	req.Exec.TriggerMode = schema.TriggerModeEvent

	res, err := h.promptSelection(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "file body", res.Output)
}

func TestPromptSelection_HotkeyModeUsesActiveSelection(t *testing.T) {
	h := newSet(providers.Collaborators{}, nil)

	req := runReq(schema.NodeTypePromptSelection, nil,
		map[string]any{schema.VarActiveSelection: "highlighted words"})
	req.Exec.TriggerMode = schema.TriggerModeHotkey

	res, err := h.promptSelection(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "highlighted words", res.Output)
}

func TestPromptSelection_ForceAlwaysPrompts(t *testing.T) {
	prompter := &fakePrompter{answer: providers.PromptAnswer{Value: "typed instead"}}
	h := newSet(providers.Collaborators{Prompter: prompter}, nil)

	req := runReq(schema.NodeTypePromptSelection,
		map[string]any{"force": true},
		map[string]any{schema.VarEventFileContent: "file body"})
	req.Exec.TriggerMode = schema.TriggerModeEvent

	res, err := h.promptSelection(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "typed instead", res.Output)
	assert.Equal(t, providers.PromptSelection, prompter.lastSpec.Kind)
}

func TestDialog_CancelIsOutcome(t *testing.T) {
	prompter := &fakePrompter{answer: providers.PromptAnswer{Cancelled: true}}
	h := newSet(providers.Collaborators{Prompter: prompter}, nil)

	res, err := h.dialog(context.Background(), runReq(schema.NodeTypeDialog,
		map[string]any{"message": "continue?", "buttons": []any{"Yes", "No"}}, nil))
	require.NoError(t, err)
	out := res.Output.(map[string]any)
	assert.True(t, out["cancelled"].(bool))
	assert.Equal(t, []string{"Yes", "No"}, prompter.lastSpec.Options)
}

func TestOpenAndFileExplorer(t *testing.T) {
	opener := &fakeOpener{}
	h := newSet(providers.Collaborators{Opener: opener}, nil)

	_, err := h.open(context.Background(), runReq(schema.NodeTypeOpen,
		map[string]any{"path": "a.md"}, nil))
	require.NoError(t, err)
	_, err = h.fileExplorer(context.Background(), runReq(schema.NodeTypeFileExplorer,
		map[string]any{"path": "folder/b.md"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, opener.opened)
	assert.Equal(t, []string{"folder/b.md"}, opener.revealed)
}

// --- Sub-workflow handler ---

func TestSubworkflow_BindsChildScope(t *testing.T) {
	inv := &fakeInvoker{scope: map[string]any{"result": "done", "count": 3}}
	h := newSet(providers.Collaborators{}, inv)

	req := runReq(schema.NodeTypeWorkflow, map[string]any{
		"name":   "child",
		"inputs": map[string]any{"topic": "go"},
	}, nil)
	res, err := h.subworkflow(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.BindOutput)
	assert.Equal(t, "child", inv.lastName)
	assert.Equal(t, map[string]any{"topic": "go"}, inv.lastInputs)
	assert.Equal(t, inv.scope, res.Output)
}

func TestSubworkflow_ExplicitOutputs(t *testing.T) {
	inv := &fakeInvoker{scope: map[string]any{"summary": "short text"}}
	h := newSet(providers.Collaborators{}, inv)

	req := runReq(schema.NodeTypeWorkflow, map[string]any{
		"name":    "child",
		"outputs": map[string]any{"summary": "childSummary", "missing": "gone"},
	}, nil)
	res, err := h.subworkflow(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.BindOutput)
	got, ok := req.Exec.Scope.Get("childSummary")
	require.True(t, ok)
	assert.Equal(t, "short text", got)
	assert.Len(t, res.Diagnostics, 1)
}

func TestSubworkflow_ChildFailurePropagates(t *testing.T) {
	inv := &fakeInvoker{err: schema.NewError(schema.ErrCodeSubworkflow, "child failed")}
	h := newSet(providers.Collaborators{}, inv)

	_, err := h.subworkflow(context.Background(),
		runReq(schema.NodeTypeWorkflow, map[string]any{"name": "child"}, nil))
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeSubworkflow, fe.Code)
}

func TestRegister_CoversEveryKnownNodeType(t *testing.T) {
	reg := engine.NewRegistry()
	Register(reg, Deps{})

	for nodeType := range schema.KnownNodeTypes {
		_, ok := reg.Get(nodeType)
		assert.True(t, ok, "node type %s has no handler", nodeType)
	}
}
