package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxhive/voxhive/pkg/provider/asr"
	"github.com/voxhive/voxhive/pkg/provider/intent"
	"github.com/voxhive/voxhive/pkg/provider/llm"
	"github.com/voxhive/voxhive/pkg/provider/memory"
	"github.com/voxhive/voxhive/pkg/provider/tts"
	"github.com/voxhive/voxhive/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	vad    map[string]func(ProviderEntry) (vad.Engine, error)
	asr    map[string]func(ProviderEntry) (asr.Provider, error)
	llm    map[string]func(ProviderEntry) (llm.Provider, error)
	tts    map[string]func(ProviderEntry) (tts.Provider, error)
	intent map[string]func(ProviderEntry) (intent.Provider, error)
	memory map[string]func(ProviderEntry) (memory.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		vad:    make(map[string]func(ProviderEntry) (vad.Engine, error)),
		asr:    make(map[string]func(ProviderEntry) (asr.Provider, error)),
		llm:    make(map[string]func(ProviderEntry) (llm.Provider, error)),
		tts:    make(map[string]func(ProviderEntry) (tts.Provider, error)),
		intent: make(map[string]func(ProviderEntry) (intent.Provider, error)),
		memory: make(map[string]func(ProviderEntry) (memory.Provider, error)),
	}
}

// RegisterVAD registers a VAD engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterASR registers an ASR provider factory under name.
func (r *Registry) RegisterASR(name string, factory func(ProviderEntry) (asr.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterIntent registers an intent classifier factory under name.
func (r *Registry) RegisterIntent(name string, factory func(ProviderEntry) (intent.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intent[name] = factory
}

// RegisterMemory registers a memory store factory under name.
func (r *Registry) RegisterMemory(name string, factory func(ProviderEntry) (memory.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memory[name] = factory
}

// CreateVAD instantiates a VAD engine using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateASR instantiates an ASR provider using the factory registered under entry.Name.
func (r *Registry) CreateASR(entry ProviderEntry) (asr.Provider, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateIntent instantiates an intent classifier using the factory registered under entry.Name.
func (r *Registry) CreateIntent(entry ProviderEntry) (intent.Provider, error) {
	r.mu.RLock()
	factory, ok := r.intent[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: intent/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateMemory instantiates a memory store using the factory registered under entry.Name.
func (r *Registry) CreateMemory(entry ProviderEntry) (memory.Provider, error) {
	r.mu.RLock()
	factory, ok := r.memory[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: memory/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
