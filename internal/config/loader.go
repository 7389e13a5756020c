package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"vad":    {"silero"},
	"asr":    {"whisper-native", "openai"},
	"llm":    {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":    {"openai"},
	"intent": {"llm", "none"},
	"memory": {"local", "postgres", "none"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for zero fields. It returns a joined error listing all validation
// failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("intent", cfg.Providers.Intent.Name)
	validateProviderName("memory", cfg.Providers.Memory.Name)

	// The core pipeline cannot run without these three stages.
	if cfg.Providers.ASR.Name == "" {
		errs = append(errs, errors.New("providers.asr is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts is required"))
	}
	if cfg.Providers.VAD.Name == "" {
		slog.Warn("providers.vad is empty; only manual listen mode will detect utterances")
	}
	if cfg.Providers.Memory.Name == "" {
		slog.Warn("providers.memory is empty; conversations will not be remembered across sessions")
	}

	if cfg.Chat.Prompt == "" {
		slog.Warn("chat.prompt is empty; the model runs without a persona")
	}
	if cfg.Chat.IdleTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("chat.idle_timeout_seconds %d must not be negative", cfg.Chat.IdleTimeoutSeconds))
	} else if cfg.Chat.IdleTimeoutSeconds == 0 {
		cfg.Chat.IdleTimeoutSeconds = DefaultIdleTimeoutSeconds
	}
	if cfg.Chat.TTSTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("chat.tts_timeout_seconds %d must not be negative", cfg.Chat.TTSTimeoutSeconds))
	} else if cfg.Chat.TTSTimeoutSeconds == 0 {
		cfg.Chat.TTSTimeoutSeconds = DefaultTTSTimeoutSeconds
	}

	if cfg.IoT.Speaker.Volume < 0 || cfg.IoT.Speaker.Volume > 100 {
		errs = append(errs, fmt.Errorf("iot.speaker.volume %d must be within 0..100", cfg.IoT.Speaker.Volume))
	} else if cfg.IoT.Speaker.Volume == 0 {
		cfg.IoT.Speaker.Volume = DefaultSpeakerVolume
	}

	if cfg.Music.RefreshSeconds < 0 {
		errs = append(errs, fmt.Errorf("music.refresh_seconds %d must not be negative", cfg.Music.RefreshSeconds))
	}
	if cfg.Music.Dir == "" && cfg.Providers.Intent.Name == "llm" {
		slog.Warn("music.dir is empty; the play-music intent will find no tracks")
	}

	if cfg.Server.Auth != nil && cfg.Server.Auth.Enabled &&
		len(cfg.Server.Auth.AllowedDevices) == 0 && len(cfg.Server.Auth.Tokens) == 0 {
		errs = append(errs, errors.New("server.auth is enabled but lists no allowed_devices and no tokens; every connection would be rejected"))
	}

	for i, srv := range cfg.Tools.Servers {
		prefix := fmt.Sprintf("tools.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if srv.Command == "" && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s requires a command or url", prefix))
		}
		if srv.Command != "" && srv.URL != "" {
			errs = append(errs, fmt.Errorf("%s: command and url are mutually exclusive", prefix))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
