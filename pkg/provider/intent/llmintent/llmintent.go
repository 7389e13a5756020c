// Package llmintent provides an intent.Provider backed by an LLM classifier.
//
// The classifier is asked to pick one label from a fixed set given the last
// two transcript turns, the new user text, and the titles of locally
// available music. Its reply is parsed as JSON of shape {"intent": "…"}; on
// parse failure the raw text is matched against the labels directly.
package llmintent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxhive/voxhive/internal/textutil"
	"github.com/voxhive/voxhive/pkg/provider/intent"
	"github.com/voxhive/voxhive/pkg/provider/llm"
	"github.com/voxhive/voxhive/pkg/types"
)

// Classifier labels. The model answers in Chinese regardless of the user's
// language; the prompt pins the label set.
const (
	labelContinue = "继续聊天"
	labelEnd      = "结束聊天"
	labelMusic    = "播放音乐"
)

const systemPrompt = `你是一个意图识别助手。请根据对话判断用户的意图，从以下选项中选择一个：
1. %s：用户希望结束当前对话
2. %s：用户希望播放本地音乐（可选歌曲：%s）。如果用户指定了歌名，输出"%s 歌名"
3. %s：其他情况

只输出 JSON，格式为 {"intent": "选项内容"}，不要输出任何其他文字。`

// recentTurns is how many trailing transcript turns are shown to the
// classifier for context.
const recentTurns = 2

// Compile-time assertion that Provider satisfies intent.Provider.
var _ intent.Provider = (*Provider)(nil)

// Provider implements intent.Provider using a blocking LLM completion.
type Provider struct {
	llm llm.Provider
}

// New creates a classifier backed by the given model.
func New(model llm.Provider) (*Provider, error) {
	if model == nil {
		return nil, fmt.Errorf("llmintent: model must not be nil")
	}
	return &Provider{llm: model}, nil
}

// Detect implements intent.Provider. Classification failures never block the
// conversation: any error path returns ActionContinue.
func (p *Provider) Detect(ctx context.Context, recent []types.Message, text string, musicNames []string) (intent.Result, error) {
	system := fmt.Sprintf(systemPrompt,
		labelEnd, labelMusic, strings.Join(musicNames, "、"), labelMusic, labelContinue)

	messages := []types.Message{{Role: "system", Content: system}}
	if len(recent) > recentTurns {
		recent = recent[len(recent)-recentTurns:]
	}
	messages = append(messages, recent...)
	messages = append(messages, types.Message{Role: "user", Content: text})

	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{Messages: messages})
	if err != nil {
		slog.Warn("intent classifier failed, continuing chat", "error", err)
		return intent.Result{Action: intent.ActionContinue}, nil
	}

	return parseReply(resp.Content), nil
}

// parseReply maps the classifier output to a Result. The reply is expected
// to be {"intent": "…"} but models drift; the raw text is used as fallback.
func parseReply(reply string) intent.Result {
	label := reply
	if raw := textutil.ExtractJSON(reply); raw != "" {
		var parsed struct {
			Intent string `json:"intent"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Intent != "" {
			label = parsed.Intent
		}
	}
	label = strings.TrimSpace(label)

	switch {
	case strings.HasPrefix(label, labelEnd):
		return intent.Result{Action: intent.ActionEnd}
	case strings.HasPrefix(label, labelMusic):
		name := strings.TrimSpace(strings.TrimPrefix(label, labelMusic))
		return intent.Result{Action: intent.ActionPlayMusic, MusicName: name}
	default:
		return intent.Result{Action: intent.ActionContinue}
	}
}
