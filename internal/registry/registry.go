// Package registry holds the table of selectable LLM models and resolves a
// user's model choice to a provider and upstream model string.
package registry

import (
	"fmt"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quizlens/internal/model"
)

// DefaultModelID is the fallback model when neither settings nor config
// name one.
const DefaultModelID = "claude-3-7-sonnet"

// ConfigurationError reports a setup problem that stops an analysis before
// any network call: an unresolvable model or a missing API key.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// Builtin returns the built-in model table.
func Builtin() []model.ModelDescriptor {
	return []model.ModelDescriptor{
		{ID: "gpt-4", DisplayName: "OpenAI GPT-4", Provider: model.ProviderOpenAI, UpstreamModelID: "gpt-4"},
		{ID: "gpt-3.5-turbo", DisplayName: "OpenAI GPT-3.5 Turbo", Provider: model.ProviderOpenAI, UpstreamModelID: "gpt-3.5-turbo"},
		{ID: "claude-3-opus", DisplayName: "Claude 3 Opus", Provider: model.ProviderClaude, UpstreamModelID: "claude-3-opus-20240229"},
		{ID: "claude-3-5-sonnet", DisplayName: "Claude 3.5 Sonnet", Provider: model.ProviderClaude, UpstreamModelID: "claude-3-5-sonnet-20241022"},
		{ID: "claude-3-7-sonnet", DisplayName: "Claude 3.7 Sonnet", Provider: model.ProviderClaude, UpstreamModelID: "claude-3-7-sonnet-20250219"},
		{ID: "claude-3-haiku", DisplayName: "Claude 3 Haiku", Provider: model.ProviderClaude, UpstreamModelID: "claude-3-haiku-20240307"},
		{ID: "grok-1", DisplayName: "Grok 1", Provider: model.ProviderGrok, UpstreamModelID: "grok-1"},
		{ID: "deepseek-chat", DisplayName: "DeepSeek Chat", Provider: model.ProviderDeepSeek, UpstreamModelID: "deepseek-chat"},
		{ID: "deepseek-reasoner", DisplayName: "DeepSeek Reasoner", Provider: model.ProviderDeepSeek, UpstreamModelID: "deepseek-reasoner"},
	}
}

// Registry is an ordered, id-indexed model table with a mutable default.
type Registry struct {
	mu        sync.RWMutex
	models    []model.ModelDescriptor
	byID      map[string]model.ModelDescriptor
	defaultID string
}

// New builds a registry. With no table given, the built-in table is used.
// Later duplicates of an id are ignored.
func New(defaultID string, models ...[]model.ModelDescriptor) *Registry {
	var table []model.ModelDescriptor
	for _, m := range models {
		table = append(table, m...)
	}
	if len(models) == 0 {
		table = Builtin()
	}

	r := &Registry{
		byID:      make(map[string]model.ModelDescriptor, len(table)),
		defaultID: defaultID,
	}
	for _, m := range table {
		if _, dup := r.byID[m.ID]; dup {
			continue
		}
		r.byID[m.ID] = m
		r.models = append(r.models, m)
	}
	return r
}

// Resolve returns the descriptor for id. Unknown or empty ids resolve to
// the default; only an unknown default is an error.
func (r *Registry) Resolve(id string) (model.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.byID[id]; ok {
		return m, nil
	}
	if m, ok := r.byID[r.defaultID]; ok {
		return m, nil
	}
	return model.ModelDescriptor{}, NewConfigurationError("Invalid model: %s", id)
}

// SetDefault changes the fallback model. An unknown id leaves the previous
// default in place.
func (r *Registry) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return eris.Errorf("registry: unknown model %q", id)
	}
	r.defaultID = id
	return nil
}

// Default returns the current default model id.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// List returns the models in table order.
func (r *Registry) List() []model.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ModelDescriptor, len(r.models))
	copy(out, r.models)
	return out
}
