package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// listener changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PromptChanged applies to sessions opened after the reload; running
	// transcripts keep their original system turn.
	PromptChanged bool

	ExitCommandsChanged bool
	MusicChanged        bool
}

// Any reports whether the diff contains any change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.PromptChanged || d.ExitCommandsChanged || d.MusicChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Chat.Prompt != new.Chat.Prompt {
		d.PromptChanged = true
	}
	if !slices.Equal(old.Chat.ExitCommands, new.Chat.ExitCommands) {
		d.ExitCommandsChanged = true
	}
	if old.Music.Dir != new.Music.Dir ||
		!slices.Equal(old.Music.Extensions, new.Music.Extensions) ||
		old.Music.RefreshSeconds != new.Music.RefreshSeconds {
		d.MusicChanged = true
	}
	return d
}
