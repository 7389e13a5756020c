// Command voxhive is the main entry point for the Voxhive voice server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/voxhive/voxhive/internal/config"
	"github.com/voxhive/voxhive/internal/lockfile"
	"github.com/voxhive/voxhive/internal/music"
	"github.com/voxhive/voxhive/internal/observe"
	"github.com/voxhive/voxhive/internal/resilience"
	"github.com/voxhive/voxhive/internal/server"
	"github.com/voxhive/voxhive/internal/session"
	"github.com/voxhive/voxhive/internal/tools"
	"github.com/voxhive/voxhive/pkg/provider/asr"
	oaasr "github.com/voxhive/voxhive/pkg/provider/asr/openai"
	"github.com/voxhive/voxhive/pkg/provider/asr/whisper"
	"github.com/voxhive/voxhive/pkg/provider/intent"
	"github.com/voxhive/voxhive/pkg/provider/intent/llmintent"
	"github.com/voxhive/voxhive/pkg/provider/intent/nointent"
	"github.com/voxhive/voxhive/pkg/provider/llm"
	"github.com/voxhive/voxhive/pkg/provider/llm/anyllm"
	"github.com/voxhive/voxhive/pkg/provider/memory"
	"github.com/voxhive/voxhive/pkg/provider/memory/localshort"
	"github.com/voxhive/voxhive/pkg/provider/memory/nomem"
	pgmem "github.com/voxhive/voxhive/pkg/provider/memory/postgres"
	"github.com/voxhive/voxhive/pkg/provider/tts"
	oatts "github.com/voxhive/voxhive/pkg/provider/tts/openai"
	"github.com/voxhive/voxhive/pkg/provider/vad"
	"github.com/voxhive/voxhive/pkg/provider/vad/silero"
)

// version is stamped by the build; "dev" for local builds.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxhive: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxhive: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxhive starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxhive",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	locks := lockfile.NewManager()
	providers, err := buildProviders(ctx, cfg, reg, locks)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer closeProviders(providers)

	// ── Tool host ─────────────────────────────────────────────────────────────
	host := tools.NewHost()
	defer host.Close()
	for _, srv := range cfg.Tools.Servers {
		if err := host.RegisterServer(ctx, srv); err != nil {
			slog.Warn("mcp server unavailable, continuing without it",
				"server", srv.Name, "err", err)
			continue
		}
		slog.Info("mcp server connected", "server", srv.Name)
	}

	// ── Music library ─────────────────────────────────────────────────────────
	var library atomic.Pointer[music.Library]
	if lib := newLibrary(cfg.Music); lib != nil {
		library.Store(lib)
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Log level, chat prompt, exit commands, and the music library apply
	// without a restart; provider and listener changes do not.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.MusicChanged {
			library.Store(newLibrary(new.Music))
			slog.Info("music library reconfigured", "dir", new.Music.Dir)
		}
		if d.PromptChanged || d.ExitCommandsChanged {
			slog.Info("chat settings changed; applies to new sessions")
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	sessionConfig := func() session.Config {
		cur := watcher.Current()
		return session.Config{
			Prompt:        cur.Chat.Prompt,
			Welcome:       cur.Chat.Welcome,
			ExitCommands:  cur.Chat.ExitCommands,
			IdleTimeout:   time.Duration(cur.Chat.IdleTimeoutSeconds) * time.Second,
			TTSTimeout:    time.Duration(cur.Chat.TTSTimeoutSeconds) * time.Second,
			SpeakerVolume: cur.IoT.Speaker.Volume,
			Library:       library.Load(),
			Host:          host,
		}
	}

	srv := server.New(server.Config{
		ListenAddr:    cfg.Server.ListenAddr,
		MetricsAddr:   cfg.Server.MetricsAddr,
		Auth:          cfg.Server.Auth,
		Providers:     providers,
		SessionConfig: sessionConfig,
	})

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the provider factories that need no other
// provider to construct. The intent and memory factories are registered later
// in buildProviders because they wrap the LLM.
func registerBuiltinProviders(reg *config.Registry) {
	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("silero", func(entry config.ProviderEntry) (vad.Engine, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		return silero.New(modelPath)
	})

	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("whisper-native", func(entry config.ProviderEntry) (asr.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(modelPath, opts...)
	})

	reg.RegisterASR("openai", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []oaasr.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaasr.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, oaasr.WithLanguage(lang))
		}
		return oaasr.New(entry.APIKey, entry.Model, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oatts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, oatts.WithVoice(voice))
		}
		return oatts.New(entry.APIKey, entry.Model, opts...)
	})
}

// registerModelBackedProviders wires the intent and memory factories, which
// close over the already-built LLM provider.
func registerModelBackedProviders(ctx context.Context, reg *config.Registry, model llm.Provider, locks *lockfile.Manager) {
	reg.RegisterIntent("llm", func(config.ProviderEntry) (intent.Provider, error) {
		return llmintent.New(model)
	})
	reg.RegisterIntent("none", func(config.ProviderEntry) (intent.Provider, error) {
		return nointent.New(), nil
	})

	reg.RegisterMemory("local", func(entry config.ProviderEntry) (memory.Provider, error) {
		path := optString(entry.Options, "path")
		if path == "" {
			path = "memory.yaml"
		}
		return localshort.New(path, model, locks)
	})
	reg.RegisterMemory("postgres", func(entry config.ProviderEntry) (memory.Provider, error) {
		dsn := optString(entry.Options, "dsn")
		if dsn == "" {
			return nil, errors.New("memory provider postgres requires options.dsn")
		}
		return pgmem.New(ctx, dsn, model)
	})
	reg.RegisterMemory("none", func(config.ProviderEntry) (memory.Provider, error) {
		return nomem.New(), nil
	})
}

// buildProviders instantiates every provider named in cfg. ASR, LLM, and TTS
// are wrapped in fallback groups when the config lists fallbacks for them.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry, locks *lockfile.Manager) (session.Providers, error) {
	var ps session.Providers

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered, skipping", "kind", "vad", "name", name)
		} else if err != nil {
			return ps, fmt.Errorf("create vad provider %q: %w", name, err)
		} else {
			ps.VAD = p
			slog.Info("provider created", "kind", "vad", "name", name)
		}
	}

	asrProvider, err := reg.CreateASR(cfg.Providers.ASR)
	if err != nil {
		return ps, fmt.Errorf("create asr provider %q: %w", cfg.Providers.ASR.Name, err)
	}
	ps.ASR = asrProvider
	slog.Info("provider created", "kind", "asr", "name", cfg.Providers.ASR.Name)

	if entries := cfg.Providers.ASR.Fallbacks; len(entries) > 0 {
		group := resilience.NewASRFallback(asrProvider, cfg.Providers.ASR.Name, resilience.FallbackConfig{})
		for _, entry := range entries {
			fb, err := reg.CreateASR(entry)
			if err != nil {
				return ps, fmt.Errorf("create asr fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, fb)
			slog.Info("fallback provider created", "kind", "asr", "name", entry.Name)
		}
		ps.ASR = group
	}

	llmProvider, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return ps, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.LLM = llmProvider
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name,
		"model", cfg.Providers.LLM.Model)

	if entries := cfg.Providers.LLM.Fallbacks; len(entries) > 0 {
		group := resilience.NewLLMFallback(llmProvider, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
		for _, entry := range entries {
			fb, err := reg.CreateLLM(entry)
			if err != nil {
				return ps, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, fb)
			slog.Info("fallback provider created", "kind", "llm", "name", entry.Name)
		}
		ps.LLM = group
	}

	ttsProvider, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return ps, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	ps.TTS = ttsProvider
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if entries := cfg.Providers.TTS.Fallbacks; len(entries) > 0 {
		group := resilience.NewTTSFallback(ttsProvider, cfg.Providers.TTS.Name, resilience.FallbackConfig{})
		for _, entry := range entries {
			fb, err := reg.CreateTTS(entry)
			if err != nil {
				return ps, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, fb)
			slog.Info("fallback provider created", "kind", "tts", "name", entry.Name)
		}
		ps.TTS = group
	}

	// Intent and memory wrap the model built above. The fallback group, when
	// configured, backs them too.
	registerModelBackedProviders(ctx, reg, ps.LLM, locks)

	if name := cfg.Providers.Intent.Name; name != "" {
		p, err := reg.CreateIntent(cfg.Providers.Intent)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered, skipping", "kind", "intent", "name", name)
		} else if err != nil {
			return ps, fmt.Errorf("create intent provider %q: %w", name, err)
		} else {
			ps.Intent = p
			slog.Info("provider created", "kind", "intent", "name", name)
		}
	}

	if name := cfg.Providers.Memory.Name; name != "" {
		p, err := reg.CreateMemory(cfg.Providers.Memory)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered, skipping", "kind", "memory", "name", name)
		} else if err != nil {
			return ps, fmt.Errorf("create memory provider %q: %w", name, err)
		} else {
			ps.Memory = p
			slog.Info("provider created", "kind", "memory", "name", name)
		}
	}

	return ps, nil
}

// closeProviders releases provider resources in reverse dependency order.
func closeProviders(ps session.Providers) {
	if ps.Memory != nil {
		if err := ps.Memory.Close(); err != nil {
			slog.Warn("memory provider close error", "err", err)
		}
	}
	if ps.TTS != nil {
		if err := ps.TTS.Close(); err != nil {
			slog.Warn("tts provider close error", "err", err)
		}
	}
	if ps.ASR != nil {
		if err := ps.ASR.Close(); err != nil {
			slog.Warn("asr provider close error", "err", err)
		}
	}
	if ps.VAD != nil {
		if err := ps.VAD.Close(); err != nil {
			slog.Warn("vad provider close error", "err", err)
		}
	}
}

// ── Music library ─────────────────────────────────────────────────────────────

func newLibrary(cfg config.MusicConfig) *music.Library {
	if cfg.Dir == "" {
		return nil
	}
	refresh := time.Duration(cfg.RefreshSeconds) * time.Second
	return music.NewLibrary(cfg.Dir, cfg.Extensions, refresh)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Voxhive — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("VAD", cfg.Providers.VAD.Name, "")
	printProvider("ASR", cfg.Providers.ASR.Name, cfg.Providers.ASR.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Intent", cfg.Providers.Intent.Name, "")
	printProvider("Memory", cfg.Providers.Memory.Name, "")
	if cfg.Server.Auth != nil && cfg.Server.Auth.Enabled {
		fmt.Printf("║  Auth            : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Auth            : %-19s ║\n", "(disabled)")
	}
	if cfg.Music.Dir != "" {
		fmt.Printf("║  Music dir       : %-19s ║\n", trim19(cfg.Music.Dir))
	} else {
		fmt.Printf("║  Music dir       : %-19s ║\n", "(none)")
	}
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.Tools.Servers))
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	if cfg.Server.MetricsAddr != "" {
		fmt.Printf("║  Metrics addr    : %-19s ║\n", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, trim19(value))
}

func trim19(s string) string {
	if len(s) > 19 {
		return s[:16] + "…"
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar lets the config
// watcher change verbosity at runtime.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := &slog.LevelVar{}
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
