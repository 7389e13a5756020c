// Package config provides the configuration schema, loader, provider
// registry, and hot-reload watcher for the Voxhive voice server.
package config

import "github.com/voxhive/voxhive/internal/tools"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxhive.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Chat      ChatConfig      `yaml:"chat"`
	Music     MusicConfig     `yaml:"music"`
	IoT       IoTConfig       `yaml:"iot"`
	Tools     ToolsConfig     `yaml:"tools"`
}

// ServerConfig holds network, logging, and authentication settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the WebSocket server listens on
	// (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr, when non-empty, starts a second HTTP listener serving
	// /metrics, /healthz, and /readyz.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Auth configures connection authentication. When nil or disabled,
	// every device is accepted.
	Auth *AuthConfig `yaml:"auth"`
}

// AuthConfig gates incoming WebSocket connections.
type AuthConfig struct {
	// Enabled turns authentication on.
	Enabled bool `yaml:"enabled"`

	// AllowedDevices lists device IDs admitted without a token.
	AllowedDevices []string `yaml:"allowed_devices"`

	// Tokens lists static bearer tokens accepted from any device.
	Tokens []TokenEntry `yaml:"tokens"`
}

// TokenEntry is one accepted bearer token with a label for logs.
type TokenEntry struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	VAD    ProviderEntry `yaml:"vad"`
	ASR    ProviderEntry `yaml:"asr"`
	LLM    ProviderEntry `yaml:"llm"`
	TTS    ProviderEntry `yaml:"tts"`
	Intent ProviderEntry `yaml:"intent"`
	Memory ProviderEntry `yaml:"memory"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "openai", "whisper-native", "silero").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o-mini", "tts-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above (model paths, voices, thresholds, DSNs).
	Options map[string]any `yaml:"options"`

	// Fallbacks lists providers tried in order when this one fails. Each
	// entry gets its own circuit breaker. Only honoured for asr, llm, and
	// tts; nested Fallbacks on a fallback entry are ignored.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// StringOption returns Options[key] as a string, or def when absent.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// ChatConfig tunes the conversation loop.
type ChatConfig struct {
	// Prompt is the system prompt seeding every session's transcript.
	Prompt string `yaml:"prompt"`

	// Welcome is sent verbatim (plus session metadata) as the hello reply.
	Welcome map[string]any `yaml:"welcome"`

	// ExitCommands lists spoken phrases that end the session immediately,
	// compared after punctuation stripping.
	ExitCommands []string `yaml:"exit_commands"`

	// IdleTimeoutSeconds closes a session after this long without voice.
	// 0 means the 120 second default.
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`

	// TTSTimeoutSeconds bounds synthesis of one segment. 0 means the
	// 10 second default.
	TTSTimeoutSeconds int `yaml:"tts_timeout_seconds"`
}

// Defaults applied by [Validate] for zero ChatConfig fields.
const (
	DefaultIdleTimeoutSeconds = 120
	DefaultTTSTimeoutSeconds  = 10
	DefaultListenAddr         = ":8000"
)

// MusicConfig locates the local music library.
type MusicConfig struct {
	// Dir is the directory scanned for playable files. Empty disables the
	// play-music intent.
	Dir string `yaml:"dir"`

	// Extensions limits which files are listed. Empty means the package
	// defaults (.mp3, .wav, .p3).
	Extensions []string `yaml:"extensions"`

	// RefreshSeconds is the rescan interval. 0 means 60 seconds.
	RefreshSeconds int `yaml:"refresh_seconds"`
}

// IoTConfig tunes device-capability handling.
type IoTConfig struct {
	Speaker SpeakerConfig `yaml:"speaker"`
}

// SpeakerConfig configures the Speaker capability.
type SpeakerConfig struct {
	// Volume is pushed via SetVolume as soon as a Speaker descriptor
	// registers. 0 means the 100 default.
	Volume int `yaml:"volume"`
}

// DefaultSpeakerVolume is applied by [Validate] when iot.speaker.volume is 0.
const DefaultSpeakerVolume = 100

// ToolsConfig lists external MCP tool servers to connect at startup.
type ToolsConfig struct {
	Servers []tools.ServerConfig `yaml:"servers"`
}
