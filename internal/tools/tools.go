// Package tools provides the tool host consulted by the dispatcher when the
// LLM requests a function call.
//
// Two layers cooperate:
//
//   - [Host] is process-wide. It holds globally registered builtin tools and
//     connections to external MCP servers (stdio or streamable-HTTP) made via
//     the official MCP Go SDK.
//   - [SessionTools] is per-session. It layers session-bound builtins
//     (device control, music, exit) over the shared Host; those handlers
//     close over the owning session.
//
// Tool handlers return a [Result] that tells the dispatcher how to proceed:
// speak a canned response, feed the result back into the model, or report
// that the tool does not exist.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voxhive/voxhive/pkg/types"
)

// ActionKind enumerates what the dispatcher does with a tool result.
type ActionKind int

const (
	// ActionNone means the tool completed with nothing to say.
	ActionNone ActionKind = iota

	// ActionResponse speaks Text as a synthetic assistant turn.
	ActionResponse

	// ActionRequestLLM feeds Text back into the model as a tool turn and
	// re-enters generation.
	ActionRequestLLM

	// ActionNotFound surfaces Text to the caller; the transcript is not
	// mutated.
	ActionNotFound
)

// Result is the outcome of one tool execution.
type Result struct {
	Kind ActionKind
	Text string
}

// Handler executes a builtin tool with already-parsed arguments.
type Handler func(ctx context.Context, args map[string]any) (Result, error)

// BuiltinTool pairs a schema with its in-process handler.
type BuiltinTool struct {
	Definition types.ToolDefinition
	Handler    Handler
}

// ServerConfig describes one external MCP server.
type ServerConfig struct {
	// Name labels the server in logs and config.
	Name string `yaml:"name"`

	// Command, when non-empty, launches the server as a child process over
	// stdio. Split on spaces into executable and arguments.
	Command string `yaml:"command"`

	// URL, when non-empty, connects to a streamable-HTTP server instead.
	URL string `yaml:"url"`
}

// toolEntry is one registered tool.
type toolEntry struct {
	def        types.ToolDefinition
	serverName string // empty for builtins

	builtin Handler // non-nil for builtins
}

// Host is the process-wide tool registry. Safe for concurrent use.
type Host struct {
	mu      sync.RWMutex
	tools   map[string]toolEntry
	servers map[string]*mcpsdk.ClientSession

	// client is reused across all server connections; the SDK allows a
	// single Client to manage multiple sessions concurrently.
	client *mcpsdk.Client
}

// NewHost creates an empty Host.
func NewHost() *Host {
	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "voxhive", Version: "1.0.0"},
		nil,
	)
	return &Host{
		tools:   make(map[string]toolEntry),
		servers: make(map[string]*mcpsdk.ClientSession),
		client:  client,
	}
}

// RegisterBuiltin registers an in-process tool. Later registrations under the
// same name win.
func (h *Host) RegisterBuiltin(t BuiltinTool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tools[t.Definition.Name] = toolEntry{def: t.Definition, builtin: t.Handler}
}

// RegisterServer connects to an external MCP server, discovers its tools and
// registers them. Reconnecting under the same name replaces the previous
// connection and its tools.
func (h *Host) RegisterServer(ctx context.Context, cfg ServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("tools: server config requires a name")
	}

	var transport mcpsdk.Transport
	switch {
	case cfg.Command != "":
		parts := strings.Fields(cfg.Command)
		cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
		transport = &mcpsdk.CommandTransport{Command: cmd}
	case cfg.URL != "":
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	default:
		return fmt.Errorf("tools: server %q requires a command or url", cfg.Name)
	}

	session, err := h.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("tools: connect to server %q: %w", cfg.Name, err)
	}

	var discovered []mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("tools: list tools for server %q: %w", cfg.Name, err)
		}
		discovered = append(discovered, *tool)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.servers[cfg.Name]; ok {
		_ = old.Close()
		for name, t := range h.tools {
			if t.serverName == cfg.Name {
				delete(h.tools, name)
			}
		}
	}
	h.servers[cfg.Name] = session

	for _, tool := range discovered {
		h.tools[tool.Name] = toolEntry{
			def: types.ToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaToMap(tool.InputSchema),
			},
			serverName: cfg.Name,
		}
	}
	return nil
}

// Definitions returns all registered tool schemas, sorted by name.
func (h *Host) Definitions() []types.ToolDefinition {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]types.ToolDefinition, 0, len(h.tools))
	for _, t := range h.tools {
		out = append(out, t.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the named tool with JSON-encoded arguments.
func (h *Host) Execute(ctx context.Context, name, args string) (Result, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()
	if !ok {
		return Result{Kind: ActionNotFound, Text: fmt.Sprintf("tool %q not found", name)}, nil
	}

	argsMap, err := parseArgs(args)
	if err != nil {
		return Result{}, fmt.Errorf("tools: invalid args for %q: %w", name, err)
	}

	if entry.builtin != nil {
		return entry.builtin(ctx, argsMap)
	}
	return h.executeRemote(ctx, entry, argsMap)
}

// executeRemote calls an MCP server tool. Remote results always go back
// through the model so it can phrase the answer.
func (h *Host) executeRemote(ctx context.Context, entry toolEntry, args map[string]any) (Result, error) {
	h.mu.RLock()
	session, ok := h.servers[entry.serverName]
	h.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("tools: server %q not connected for tool %q", entry.serverName, entry.def.Name)
	}

	callResult, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      entry.def.Name,
		Arguments: args,
	})
	if err != nil {
		return Result{}, fmt.Errorf("tools: call %q: %w", entry.def.Name, err)
	}

	var sb strings.Builder
	for _, c := range callResult.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if callResult.IsError {
		return Result{}, fmt.Errorf("tools: %q reported an error: %s", entry.def.Name, sb.String())
	}
	return Result{Kind: ActionRequestLLM, Text: sb.String()}, nil
}

// Close shuts down all server connections.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for name, session := range h.servers {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("tools: close server %q: %w", name, err)
		}
		delete(h.servers, name)
	}
	return firstErr
}

// SessionTools layers per-session builtins over the shared Host.
type SessionTools struct {
	host *Host

	mu    sync.RWMutex
	local map[string]toolEntry
}

// NewSessionTools creates an empty per-session layer over host. host may be
// nil when no process-wide tools are configured.
func NewSessionTools(host *Host) *SessionTools {
	return &SessionTools{host: host, local: make(map[string]toolEntry)}
}

// RegisterBuiltin registers a session-bound tool. Session tools shadow host
// tools of the same name.
func (s *SessionTools) RegisterBuiltin(t BuiltinTool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[t.Definition.Name] = toolEntry{def: t.Definition, builtin: t.Handler}
}

// Definitions returns the merged tool schemas, session tools first.
func (s *SessionTools) Definitions() []types.ToolDefinition {
	s.mu.RLock()
	out := make([]types.ToolDefinition, 0, len(s.local))
	seen := make(map[string]bool, len(s.local))
	for _, t := range s.local {
		out = append(out, t.def)
		seen[t.def.Name] = true
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	if s.host != nil {
		for _, def := range s.host.Definitions() {
			if !seen[def.Name] {
				out = append(out, def)
			}
		}
	}
	return out
}

// Execute runs the named tool, preferring session tools over host tools.
func (s *SessionTools) Execute(ctx context.Context, name, args string) (Result, error) {
	s.mu.RLock()
	entry, ok := s.local[name]
	s.mu.RUnlock()

	if ok {
		argsMap, err := parseArgs(args)
		if err != nil {
			return Result{}, fmt.Errorf("tools: invalid args for %q: %w", name, err)
		}
		return entry.builtin(ctx, argsMap)
	}
	if s.host != nil {
		return s.host.Execute(ctx, name, args)
	}
	return Result{Kind: ActionNotFound, Text: fmt.Sprintf("tool %q not found", name)}, nil
}

// parseArgs decodes a JSON arguments string. Empty input is an empty map.
func parseArgs(args string) (map[string]any, error) {
	argsMap := map[string]any{}
	if args == "" || args == "{}" {
		return argsMap, nil
	}
	if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
		return nil, err
	}
	return argsMap, nil
}

// schemaToMap converts an SDK input schema to a plain map via a JSON
// round-trip.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
