package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/protect-ng/crossai/pkg/provider/llm"
	"github.com/protect-ng/crossai/pkg/provider/llm/anyllm"
	llmopenai "github.com/protect-ng/crossai/pkg/provider/llm/openai"
	"github.com/protect-ng/crossai/pkg/provider/stt"
	"github.com/protect-ng/crossai/pkg/provider/stt/whisper"
	"github.com/protect-ng/crossai/pkg/provider/tts"
	"github.com/protect-ng/crossai/pkg/provider/tts/odia"
)

// defaultClassifierModel serves classification when no model is configured.
const defaultClassifierModel = "gpt-4o-mini"

// ErrProviderNotRegistered is returned by Create* methods when no factory is
// registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to constructor functions per provider kind.
// Safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]func(ProviderEntry) (llm.Provider, error)
	stt map[string]func(ProviderEntry) (stt.Provider, error)
	tts map[string]func(ProviderEntry) (tts.Provider, error)
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt: make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Provider, error)),
	}
}

// DefaultRegistry returns a [Registry] with every built-in provider factory
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterLLM("openai", func(e ProviderEntry) (llm.Provider, error) {
		model := e.Model
		if model == "" {
			model = defaultClassifierModel
		}
		var opts []llmopenai.Option
		if e.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(e.BaseURL))
		}
		return llmopenai.New(e.APIKey, model, opts...)
	})
	for _, backend := range []string{"anthropic", "ollama", "groq", "mistral"} {
		name := backend
		r.RegisterLLM(name, func(e ProviderEntry) (llm.Provider, error) {
			if e.Model == "" {
				return nil, fmt.Errorf("config: classifier %q requires a model", name)
			}
			var opts []anyllmlib.Option
			if e.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(name, e.Model, opts...)
		})
	}

	r.RegisterSTT("whisper", func(e ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, whisper.WithBaseURL(e.BaseURL))
		}
		return whisper.New(e.APIKey, opts...)
	})

	r.RegisterTTS("odia", func(e ProviderEntry) (tts.Provider, error) {
		var opts []odia.Option
		if e.BaseURL != "" {
			opts = append(opts, odia.WithBaseURL(e.BaseURL))
		}
		if e.Voice != "" {
			opts = append(opts, odia.WithVoice(e.Voice))
		}
		return odia.New(e.APIKey, opts...)
	})

	return r
}

// RegisterLLM registers a classifier backend factory under name. Later calls
// with the same name overwrite earlier ones.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers a recognition backend factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a synthesis backend factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateLLM instantiates the classifier backend registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: classifier/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates the recognition backend registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates the synthesis backend registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
