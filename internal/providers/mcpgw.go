package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/emarren/vaultflow/pkg/schema"
)

// MCPGateway implements ToolGateway with MCP clients over the streamable
// HTTP transport. Clients are initialized lazily and cached per server URL
// plus header set, so repeated mcp nodes against the same server reuse one
// session.
type MCPGateway struct {
	clientName    string
	clientVersion string

	mu      sync.Mutex
	clients map[string]*client.Client
}

// NewMCPGateway creates an MCP tool gateway. The name and version identify
// this process to remote servers during the initialize handshake.
func NewMCPGateway(name, version string) *MCPGateway {
	return &MCPGateway{
		clientName:    name,
		clientVersion: version,
		clients:       make(map[string]*client.Client),
	}
}

func (g *MCPGateway) CallTool(ctx context.Context, call ToolCall) (*ToolResult, error) {
	if call.ServerURL == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "mcp: missing server url")
	}
	if call.Tool == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "mcp: missing tool name")
	}

	c, err := g.clientFor(ctx, call.ServerURL, call.Headers)
	if err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = call.Tool
	req.Params.Arguments = call.Arguments

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider,
			"mcp: call tool %q on %s: %s", call.Tool, call.ServerURL, err.Error()).WithCause(err)
	}

	out := &ToolResult{IsError: res.IsError}
	var parts []string
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, tc.Text)
		}
	}
	out.Text = strings.Join(parts, "\n")
	out.Structured = res.StructuredContent
	return out, nil
}

// clientFor returns a started, initialized client for the server, creating
// one on first use.
func (g *MCPGateway) clientFor(ctx context.Context, serverURL string, headers map[string]string) (*client.Client, error) {
	key := clientKey(serverURL, headers)

	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[key]; ok {
		return c, nil
	}

	var opts []transport.StreamableHTTPCOption
	if len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	c, err := client.NewStreamableHttpClient(serverURL, opts...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider,
			"mcp: create client for %s: %s", serverURL, err.Error()).WithCause(err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider,
			"mcp: connect to %s: %s", serverURL, err.Error()).WithCause(err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    g.clientName,
		Version: g.clientVersion,
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, schema.NewErrorf(schema.ErrCodeProvider,
			"mcp: initialize %s: %s", serverURL, err.Error()).WithCause(err)
	}

	g.clients[key] = c
	return c, nil
}

// Close shuts down every cached client session.
func (g *MCPGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var firstErr error
	for key, c := range g.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close mcp client %s: %w", key, err)
		}
		delete(g.clients, key)
	}
	return firstErr
}

func clientKey(serverURL string, headers map[string]string) string {
	if len(headers) == 0 {
		return serverURL
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(serverURL)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(headers[k])
	}
	return b.String()
}

var _ ToolGateway = (*MCPGateway)(nil)
