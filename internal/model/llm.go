package model

// Provider is an upstream LLM API family.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderClaude   Provider = "claude"
	ProviderGrok     Provider = "grok"
	ProviderDeepSeek Provider = "deepseek"
)

// AllProviders returns the closed set of supported providers.
func AllProviders() []Provider {
	return []Provider{ProviderOpenAI, ProviderClaude, ProviderGrok, ProviderDeepSeek}
}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	for _, known := range AllProviders() {
		if p == known {
			return true
		}
	}
	return false
}

// ModelDescriptor maps a user-facing model choice to the provider and the
// exact model string that provider's API expects.
type ModelDescriptor struct {
	ID              string   `json:"id" yaml:"id"`
	DisplayName     string   `json:"display_name" yaml:"display_name"`
	Provider        Provider `json:"provider" yaml:"provider"`
	UpstreamModelID string   `json:"upstream_model_id" yaml:"upstream_model_id"`
}
