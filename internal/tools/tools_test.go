package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/voxhive/voxhive/pkg/types"
)

func echoTool(name string, kind ActionKind) BuiltinTool {
	return BuiltinTool{
		Definition: types.ToolDefinition{
			Name:        name,
			Description: "echoes its text argument",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string"},
				},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (Result, error) {
			text, _ := args["text"].(string)
			return Result{Kind: kind, Text: text}, nil
		},
	}
}

func TestHost_ExecuteBuiltin(t *testing.T) {
	t.Parallel()

	h := NewHost()
	h.RegisterBuiltin(echoTool("echo", ActionResponse))

	res, err := h.Execute(context.Background(), "echo", `{"text":"你好"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ActionResponse || res.Text != "你好" {
		t.Errorf("result = %+v", res)
	}
}

func TestHost_ExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	h := NewHost()
	res, err := h.Execute(context.Background(), "missing", "{}")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ActionNotFound {
		t.Errorf("kind = %v, want ActionNotFound", res.Kind)
	}
}

func TestHost_ExecuteInvalidArgs(t *testing.T) {
	t.Parallel()

	h := NewHost()
	h.RegisterBuiltin(echoTool("echo", ActionResponse))

	if _, err := h.Execute(context.Background(), "echo", "not json"); err == nil {
		t.Error("expected an error for malformed arguments")
	}
}

func TestHost_ExecuteEmptyArgs(t *testing.T) {
	t.Parallel()

	h := NewHost()
	called := false
	h.RegisterBuiltin(BuiltinTool{
		Definition: types.ToolDefinition{Name: "noargs"},
		Handler: func(_ context.Context, args map[string]any) (Result, error) {
			called = true
			if args == nil {
				t.Error("args should be an empty map, not nil")
			}
			return Result{Kind: ActionNone}, nil
		},
	})

	if _, err := h.Execute(context.Background(), "noargs", ""); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Error("handler was not invoked")
	}
}

func TestHost_DefinitionsSorted(t *testing.T) {
	t.Parallel()

	h := NewHost()
	h.RegisterBuiltin(echoTool("zeta", ActionNone))
	h.RegisterBuiltin(echoTool("alpha", ActionNone))

	defs := h.Definitions()
	if len(defs) != 2 || defs[0].Name != "alpha" || defs[1].Name != "zeta" {
		t.Errorf("definitions = %v", defs)
	}
}

func TestSessionTools_ShadowsHost(t *testing.T) {
	t.Parallel()

	h := NewHost()
	h.RegisterBuiltin(echoTool("echo", ActionRequestLLM))

	st := NewSessionTools(h)
	st.RegisterBuiltin(echoTool("echo", ActionResponse))

	res, err := st.Execute(context.Background(), "echo", `{"text":"hi"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ActionResponse {
		t.Errorf("kind = %v, want the session tool's ActionResponse", res.Kind)
	}

	defs := st.Definitions()
	if len(defs) != 1 {
		t.Errorf("definitions = %v, want the shadowed tool once", defs)
	}
}

func TestSessionTools_FallsThroughToHost(t *testing.T) {
	t.Parallel()

	h := NewHost()
	h.RegisterBuiltin(echoTool("shared", ActionRequestLLM))

	st := NewSessionTools(h)
	st.RegisterBuiltin(echoTool("local", ActionResponse))

	res, err := st.Execute(context.Background(), "shared", `{"text":"x"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ActionRequestLLM {
		t.Errorf("kind = %v, want the host tool's ActionRequestLLM", res.Kind)
	}

	if defs := st.Definitions(); len(defs) != 2 {
		t.Errorf("definitions = %v, want session plus host tools", defs)
	}
}

func TestSessionTools_NilHost(t *testing.T) {
	t.Parallel()

	st := NewSessionTools(nil)
	res, err := st.Execute(context.Background(), "anything", "{}")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ActionNotFound {
		t.Errorf("kind = %v, want ActionNotFound", res.Kind)
	}
}

func TestSessionTools_HandlerError(t *testing.T) {
	t.Parallel()

	st := NewSessionTools(nil)
	wantErr := errors.New("device offline")
	st.RegisterBuiltin(BuiltinTool{
		Definition: types.ToolDefinition{Name: "broken"},
		Handler: func(context.Context, map[string]any) (Result, error) {
			return Result{}, wantErr
		},
	})

	if _, err := st.Execute(context.Background(), "broken", "{}"); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want the handler error", err)
	}
}

func TestRegisterServer_RequiresTransport(t *testing.T) {
	t.Parallel()

	h := NewHost()
	if err := h.RegisterServer(context.Background(), ServerConfig{Name: "x"}); err == nil {
		t.Error("expected an error without command or url")
	}
	if err := h.RegisterServer(context.Background(), ServerConfig{Command: "foo"}); err == nil {
		t.Error("expected an error without a name")
	}
}
