// Package openai provides an asr.Provider backed by the OpenAI audio
// transcription API (or any compatible endpoint via base URL override).
package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxhive/voxhive/pkg/audio"
	"github.com/voxhive/voxhive/pkg/provider/asr"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Provider implements asr.Provider using the OpenAI API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// Option is a functional option for Provider.
type Option func(*Provider) []option.RequestOption

// WithBaseURL overrides the default API base URL, for self-hosted
// OpenAI-compatible transcription servers.
func WithBaseURL(url string) Option {
	return func(*Provider) []option.RequestOption {
		if url == "" {
			return nil
		}
		return []option.RequestOption{option.WithBaseURL(url)}
	}
}

// WithLanguage sets the expected speech language (ISO 639-1).
func WithLanguage(lang string) Option {
	return func(p *Provider) []option.RequestOption {
		p.language = lang
		return nil
	}
}

// New constructs a Provider. model defaults to whisper-1 when empty.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}

	p := &Provider{model: model}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		reqOpts = append(reqOpts, o(p)...)
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Transcribe implements asr.Provider. The utterance is wrapped in a WAV
// container and uploaded in one request.
func (p *Provider) Transcribe(ctx context.Context, pcm []int16) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	wav := audio.EncodeWAV(pcm, audio.SampleRate)
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Close implements asr.Provider.
func (p *Provider) Close() error { return nil }
