package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voxhive/voxhive/internal/config"
	"github.com/voxhive/voxhive/internal/session"
	asrmock "github.com/voxhive/voxhive/pkg/provider/asr/mock"
	"github.com/voxhive/voxhive/pkg/provider/llm"
	llmmock "github.com/voxhive/voxhive/pkg/provider/llm/mock"
	ttsmock "github.com/voxhive/voxhive/pkg/provider/tts/mock"
)

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + wsPath
}

func testProviders() session.Providers {
	return session.Providers{
		ASR: &asrmock.Provider{},
		LLM: &llmmock.Provider{Scripts: [][]llm.Chunk{{{Text: "好的。"}, {FinishReason: "stop"}}}},
		TTS: &ttsmock.Provider{},
	}
}

// startServer mounts the WebSocket handler on an httptest server.
func startServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	if cfg.Providers.ASR == nil {
		cfg.Providers = testProviders()
	}
	s := New(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+wsPath, s.handleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return s, srv
}

// readJSON reads one text frame and decodes it.
func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("frame is not JSON: %q", data)
	}
	return m
}

func TestHandshake_WelcomeIsFirstFrame(t *testing.T) {
	t.Parallel()

	_, srv := startServer(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{
		HTTPHeader: http.Header{"Device-Id": []string{"dev-1"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	welcome := readJSON(t, conn)
	if welcome["type"] != "hello" {
		t.Errorf("first frame type = %v, want hello", welcome["type"])
	}
	if id, _ := welcome["session_id"].(string); len(id) != 36 {
		t.Errorf("session_id = %q, want a UUID", id)
	}
	ap, ok := welcome["audio_params"].(map[string]any)
	if !ok || ap["sample_rate"] != float64(16000) {
		t.Errorf("audio_params = %v", welcome["audio_params"])
	}
}

func TestHandshake_AuthRejectsUnknownDevice(t *testing.T) {
	t.Parallel()

	_, srv := startServer(t, Config{
		Auth: &config.AuthConfig{
			Enabled:        true,
			AllowedDevices: []string{"trusted-1"},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{
		HTTPHeader: http.Header{"Device-Id": []string{"stranger"}},
	})
	if err == nil {
		t.Fatal("dial succeeded, want rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %v, want 401", resp)
	}
}

func TestHandshake_AuthAcceptsToken(t *testing.T) {
	t.Parallel()

	srvObj, srv := startServer(t, Config{
		Auth: &config.AuthConfig{
			Enabled: true,
			Tokens:  []config.TokenEntry{{Token: "T1", Name: "alice"}},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Device-Id":     []string{"dev-9"},
			"Authorization": []string{"Bearer T1"},
		},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	readJSON(t, conn) // welcome

	deadline := time.Now().Add(2 * time.Second)
	for srvObj.SessionCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := srvObj.SessionCount(); got != 1 {
		t.Fatalf("SessionCount = %d, want 1", got)
	}
}

func TestHandshake_AllowedDeviceSkipsToken(t *testing.T) {
	t.Parallel()

	_, srv := startServer(t, Config{
		Auth: &config.AuthConfig{
			Enabled:        true,
			AllowedDevices: []string{"trusted-1"},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{
		HTTPHeader: http.Header{"Device-Id": []string{"trusted-1"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close(websocket.StatusNormalClosure, "done")
}

func TestServer_TextFramesReachSession(t *testing.T) {
	t.Parallel()

	_, srv := startServer(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{
		HTTPHeader: http.Header{"Device-Id": []string{"dev-1"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	readJSON(t, conn) // welcome

	// A hello frame is answered with the welcome again.
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"hello"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readJSON(t, conn)
	if reply["type"] != "hello" {
		t.Errorf("hello reply type = %v", reply["type"])
	}
}

func TestServer_SessionUntrackedOnDisconnect(t *testing.T) {
	t.Parallel()

	srvObj, srv := startServer(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{
		HTTPHeader: http.Header{"Device-Id": []string{"dev-1"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readJSON(t, conn)
	conn.Close(websocket.StatusNormalClosure, "done")

	deadline := time.Now().Add(2 * time.Second)
	for srvObj.SessionCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := srvObj.SessionCount(); got != 0 {
		t.Fatalf("SessionCount = %d, want 0 after disconnect", got)
	}
}

func TestAuthPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      *config.AuthConfig
		deviceID string
		token    string
		wantOK   bool
		wantName string
	}{
		{"nil config accepts", nil, "d1", "", true, "d1"},
		{"disabled accepts anonymous", &config.AuthConfig{}, "", "", true, "anonymous"},
		{
			"allow-listed device",
			&config.AuthConfig{Enabled: true, AllowedDevices: []string{"d1"}},
			"d1", "", true, "d1",
		},
		{
			"known token",
			&config.AuthConfig{Enabled: true, Tokens: []config.TokenEntry{{Token: "T", Name: "bob"}}},
			"d9", "T", true, "bob",
		},
		{
			"unknown device and token",
			&config.AuthConfig{Enabled: true, AllowedDevices: []string{"d1"}},
			"d9", "nope", false, "",
		},
		{
			"empty token not a match",
			&config.AuthConfig{Enabled: true, Tokens: []config.TokenEntry{{Token: "", Name: "x"}}},
			"d9", "", false, "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name, ok := NewAuthPolicy(tt.cfg).Authorize(tt.deviceID, tt.token)
			if ok != tt.wantOK || name != tt.wantName {
				t.Errorf("Authorize = (%q, %v), want (%q, %v)", name, ok, tt.wantName, tt.wantOK)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := bearerToken(r); got != "" {
		t.Errorf("no header: %q", got)
	}
	r.Header.Set("Authorization", "Bearer  tok-1 ")
	if got := bearerToken(r); got != "tok-1" {
		t.Errorf("token = %q, want tok-1", got)
	}
	r.Header.Set("Authorization", "Basic abc")
	if got := bearerToken(r); got != "" {
		t.Errorf("basic auth: %q", got)
	}
}
