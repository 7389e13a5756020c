// Package intent defines the intent-recognition contract that runs between
// speech recognition and LLM generation.
//
// The intent layer decides whether an utterance is a local command (close the
// conversation, play music) or a genuine model query. The no-op provider
// sends everything to the LLM; the classifier provider asks a model to pick
// from a fixed label set first.
package intent

import (
	"context"

	"github.com/voxhive/voxhive/pkg/types"
)

// Action enumerates the dispositions the intent layer can return.
type Action string

const (
	// ActionContinue sends the utterance to the LLM as a normal chat turn.
	ActionContinue Action = "continue_chat"

	// ActionEnd closes the conversation after a farewell reply.
	ActionEnd Action = "end_chat"

	// ActionPlayMusic plays a local music file instead of generating.
	ActionPlayMusic Action = "play_music"
)

// Result is the outcome of intent detection.
type Result struct {
	Action Action

	// MusicName is the requested song title for ActionPlayMusic. May be
	// empty, in which case a random track is chosen.
	MusicName string
}

// Provider classifies one utterance.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Detect classifies text given the most recent transcript turns and the
	// titles of locally available music. On any internal failure providers
	// should return ActionContinue so the utterance still reaches the LLM.
	Detect(ctx context.Context, recent []types.Message, text string, musicNames []string) (Result, error)
}
