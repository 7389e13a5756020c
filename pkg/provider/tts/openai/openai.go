// Package openai provides a tts.Provider backed by the OpenAI speech API
// (or any compatible endpoint via base URL override).
//
// The API returns raw PCM at 24 kHz; the provider resamples to the pipeline
// rate and re-encodes into 60 ms Opus frames.
package openai

import (
	"context"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxhive/voxhive/pkg/audio"
	"github.com/voxhive/voxhive/pkg/provider/tts"
)

// speechSampleRate is the fixed output rate of the OpenAI PCM response format.
const speechSampleRate = 24000

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
}

// Option is a functional option for Provider.
type Option func(*Provider) []option.RequestOption

// WithBaseURL overrides the default API base URL, for self-hosted
// OpenAI-compatible speech servers.
func WithBaseURL(url string) Option {
	return func(*Provider) []option.RequestOption {
		if url == "" {
			return nil
		}
		return []option.RequestOption{option.WithBaseURL(url)}
	}
}

// WithVoice selects the synthesis voice. Defaults to "alloy".
func WithVoice(voice string) Option {
	return func(p *Provider) []option.RequestOption {
		if voice != "" {
			p.voice = voice
		}
		return nil
	}
}

// New constructs a Provider. model defaults to tts-1 when empty.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.SpeechModelTTS1)
	}

	p := &Provider{model: model, voice: string(oai.AudioSpeechNewParamsVoiceAlloy)}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		reqOpts = append(reqOpts, o(p)...)
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) ([][]byte, error) {
	if text == "" {
		return nil, nil
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: synthesize: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech body: %w", err)
	}

	pcm := audio.ResampleMono16(audio.BytesToInt16(raw), speechSampleRate, audio.SampleRate)

	// Opus encoders are stateful; one per call keeps the provider safe for
	// concurrent segments.
	enc, err := audio.NewEncoder()
	if err != nil {
		return nil, err
	}
	frames, err := enc.EncodeAll(pcm)
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// Close implements tts.Provider.
func (p *Provider) Close() error { return nil }
