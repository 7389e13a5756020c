package config

import "testing"

func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: LogInfo},
		Chat: ChatConfig{
			Prompt:       "你是一个助手。",
			ExitCommands: []string{"再见"},
		},
		Music: MusicConfig{Dir: "data/music"},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	a, b := baseConfig(), baseConfig()
	if d := Diff(a, b); d.Any() {
		t.Errorf("diff = %+v, want no changes", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()

	a, b := baseConfig(), baseConfig()
	b.Server.LogLevel = LogDebug

	d := Diff(a, b)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("diff = %+v", d)
	}
	if d.PromptChanged || d.ExitCommandsChanged || d.MusicChanged {
		t.Errorf("unexpected extra changes: %+v", d)
	}
}

func TestDiff_Prompt(t *testing.T) {
	t.Parallel()

	a, b := baseConfig(), baseConfig()
	b.Chat.Prompt = "换一个人设。"

	if d := Diff(a, b); !d.PromptChanged {
		t.Errorf("diff = %+v, want PromptChanged", d)
	}
}

func TestDiff_ExitCommands(t *testing.T) {
	t.Parallel()

	a, b := baseConfig(), baseConfig()
	b.Chat.ExitCommands = append(b.Chat.ExitCommands, "拜拜")

	if d := Diff(a, b); !d.ExitCommandsChanged {
		t.Errorf("diff = %+v, want ExitCommandsChanged", d)
	}
}

func TestDiff_Music(t *testing.T) {
	t.Parallel()

	a, b := baseConfig(), baseConfig()
	b.Music.RefreshSeconds = 30

	if d := Diff(a, b); !d.MusicChanged {
		t.Errorf("diff = %+v, want MusicChanged", d)
	}
}
