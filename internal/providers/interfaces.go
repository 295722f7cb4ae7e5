package providers

import "context"

// WriteMode selects how document content is applied.
type WriteMode string

const (
	WriteCreate    WriteMode = "create"
	WriteOverwrite WriteMode = "overwrite"
	WriteAppend    WriteMode = "append"
	WritePrepend   WriteMode = "prepend"
)

// WriteOptions controls a document write.
type WriteOptions struct {
	Mode WriteMode
	// Confirm asks the host for confirmation before overwriting an existing
	// document. A declined confirmation is not an error; it surfaces in
	// WriteResult.Declined.
	Confirm bool
}

// WriteResult reports the outcome of a document write.
type WriteResult struct {
	Path     string
	Written  bool
	Declined bool
}

// SearchHit is one match from a document search.
type SearchHit struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// DocumentStore abstracts the host's document vault. Paths are
// forward-slash relative paths within the vault.
type DocumentStore interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string, opts WriteOptions) (WriteResult, error)
	Exists(ctx context.Context, path string) (bool, error)
	// List returns document paths under folder. An empty folder means the
	// vault root; recursive descends into subfolders.
	List(ctx context.Context, folder string, recursive bool) ([]string, error)
	// Folders returns subfolder paths under folder.
	Folders(ctx context.Context, folder string) ([]string, error)
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
	Rename(ctx context.Context, oldPath, newPath string) error
}

// CommandRequest asks the host's LLM command runner to execute a prompt.
type CommandRequest struct {
	Prompt  string
	Command string // named command preset, optional
	Model   string // model override, optional
}

// CommandResult is the runner's textual output.
type CommandResult struct {
	Output string
}

// CommandRunner is the host's LLM command execution surface. The engine
// treats it as an opaque text-in text-out collaborator.
type CommandRunner interface {
	RunCommand(ctx context.Context, req CommandRequest) (CommandResult, error)
}

// HTTPRequest is the http node's outbound request.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// HTTPResponse carries the response back to the workflow scope. JSON holds
// the parsed body when the response declares a JSON content type.
type HTTPResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	JSON    any               `json:"json,omitempty"`
}

// HTTPGateway performs outbound HTTP requests.
type HTTPGateway interface {
	Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

// ToolCall addresses a tool on a remote MCP server.
type ToolCall struct {
	ServerURL string
	Headers   map[string]string
	Tool      string
	Arguments map[string]any
}

// ToolResult is the tool's response. IsError marks a tool-level failure the
// server reported inside a successful protocol exchange.
type ToolResult struct {
	Text       string `json:"text"`
	Structured any    `json:"structured,omitempty"`
	IsError    bool   `json:"isError"`
}

// ToolGateway calls tools on remote MCP servers.
type ToolGateway interface {
	CallTool(ctx context.Context, call ToolCall) (*ToolResult, error)
	Close() error
}

// PromptKind selects the interaction surface for a prompt.
type PromptKind string

const (
	PromptText      PromptKind = "text"      // free-form text input
	PromptFilePick  PromptKind = "file"      // pick a document path
	PromptSelection PromptKind = "selection" // current editor selection
	PromptButtons   PromptKind = "buttons"   // dialog with button options
)

// PromptSpec describes one interactive prompt.
type PromptSpec struct {
	Kind    PromptKind
	Title   string
	Message string
	Options []string // button labels or pick candidates
	Default string
}

// PromptAnswer is the user's response. Cancelled means the user dismissed
// the prompt without answering.
type PromptAnswer struct {
	Value     string
	Cancelled bool
}

// Prompter is the host's interactive dialog surface. Implementations block
// until the user responds or ctx is cancelled.
type Prompter interface {
	Prompt(ctx context.Context, spec PromptSpec) (PromptAnswer, error)
}

// HostCommander executes a host application command by its identifier.
type HostCommander interface {
	RunHostCommand(ctx context.Context, commandID string) error
}

// RagSyncer pushes documents into the host's retrieval index.
type RagSyncer interface {
	Sync(ctx context.Context, paths []string) (int, error)
}

// Opener reveals documents in the host UI or the system file explorer.
type Opener interface {
	OpenDocument(ctx context.Context, path string) error
	RevealInExplorer(ctx context.Context, path string) error
}

// Collaborators bundles every external capability the node handlers use.
// Fields may be nil; handlers fail with a provider error when a capability
// their node needs is not configured.
type Collaborators struct {
	Store    DocumentStore
	Runner   CommandRunner
	HTTP     HTTPGateway
	Tools    ToolGateway
	Prompter Prompter
	Host     HostCommander
	Rag      RagSyncer
	Opener   Opener
}
