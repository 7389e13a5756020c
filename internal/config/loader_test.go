package config

import (
	"errors"
	"os"
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8000"
  log_level: info
providers:
  vad:
    name: silero
    options:
      model_path: models/silero_vad.onnx
  asr:
    name: whisper-native
    options:
      model_path: models/ggml-base.bin
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  tts:
    name: openai
    api_key: sk-test
    options:
      voice: alloy
  intent:
    name: llm
  memory:
    name: local
chat:
  prompt: 你是一个友好的语音助手。
  exit_commands: ["再见", "拜拜"]
music:
  dir: data/music
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.ASR.Name != "whisper-native" {
		t.Errorf("asr.name = %q", cfg.Providers.ASR.Name)
	}
	if got := cfg.Providers.ASR.StringOption("model_path", ""); got != "models/ggml-base.bin" {
		t.Errorf("asr model_path = %q", got)
	}
	if cfg.Chat.IdleTimeoutSeconds != DefaultIdleTimeoutSeconds {
		t.Errorf("idle_timeout default = %d, want %d", cfg.Chat.IdleTimeoutSeconds, DefaultIdleTimeoutSeconds)
	}
	if cfg.Chat.TTSTimeoutSeconds != DefaultTTSTimeoutSeconds {
		t.Errorf("tts_timeout default = %d, want %d", cfg.Chat.TTSTimeoutSeconds, DefaultTTSTimeoutSeconds)
	}
	if len(cfg.Chat.ExitCommands) != 2 {
		t.Errorf("exit_commands = %v", cfg.Chat.ExitCommands)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("server:\n  bogus_field: 1\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestValidate_MissingCoreProviders(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"providers.asr", "providers.llm", "providers.tts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Errorf("listen_addr default = %q", cfg.Server.ListenAddr)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	t.Parallel()

	cfg := &Config{Server: ServerConfig{LogLevel: "loud"}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("err = %v, want log_level complaint", err)
	}
}

func TestValidate_AuthEnabledButEmpty(t *testing.T) {
	t.Parallel()

	cfg := &Config{Server: ServerConfig{Auth: &AuthConfig{Enabled: true}}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "server.auth") {
		t.Errorf("err = %v, want auth complaint", err)
	}
}

func TestValidate_NegativeTimeouts(t *testing.T) {
	t.Parallel()

	cfg := &Config{Chat: ChatConfig{IdleTimeoutSeconds: -1, TTSTimeoutSeconds: -5}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(err.Error(), "idle_timeout_seconds") || !strings.Contains(err.Error(), "tts_timeout_seconds") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate_SpeakerVolume(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	Validate(cfg)
	if cfg.IoT.Speaker.Volume != DefaultSpeakerVolume {
		t.Errorf("speaker volume default = %d, want %d", cfg.IoT.Speaker.Volume, DefaultSpeakerVolume)
	}

	cfg = &Config{IoT: IoTConfig{Speaker: SpeakerConfig{Volume: 150}}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "iot.speaker.volume") {
		t.Errorf("err = %v, want volume complaint", err)
	}
}

func TestValidate_ToolServers(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(validYAML + `
tools:
  servers:
    - name: ""
`))
	if err == nil || !strings.Contains(err.Error(), "tools.servers[0]") {
		t.Errorf("err = %v, want tools.servers complaint", err)
	}

	_, err = LoadFromReader(strings.NewReader(validYAML + `
tools:
  servers:
    - name: both
      command: "srv --stdio"
      url: "https://example.com/mcp"
`))
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("err = %v, want mutual-exclusion complaint", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/voxhive.yaml")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}
