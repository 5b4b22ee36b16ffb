// Package gateway sends prompts to LLM providers through a relay and
// returns the reply text, normalizing every failure into a ProviderError.
package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/relay"
)

// Default provider base URLs.
const (
	DefaultOpenAIBaseURL   = relay.OpenAIBaseURL
	DefaultClaudeBaseURL   = relay.ClaudeBaseURL
	DefaultGrokBaseURL     = relay.GrokBaseURL
	DefaultDeepSeekBaseURL = relay.DeepSeekBaseURL
)

// Options configures a Gateway. Empty base URLs use the defaults.
type Options struct {
	BaseURLs map[model.Provider]string
	// RequestsPerSecond paces outbound sends; 0 disables pacing.
	RequestsPerSecond float64
}

// Gateway dispatches sends to the provider named by a model descriptor.
type Gateway struct {
	providers map[model.Provider]Provider
	limiter   *rate.Limiter
}

// New creates a Gateway whose providers all transfer through rl.
func New(rl relay.Relay, opts Options) *Gateway {
	base := func(p model.Provider, def string) string {
		if u := opts.BaseURLs[p]; u != "" {
			return u
		}
		return def
	}

	g := &Gateway{
		providers: map[model.Provider]Provider{
			model.ProviderOpenAI:   newChatProvider(model.ProviderOpenAI, base(model.ProviderOpenAI, DefaultOpenAIBaseURL), rl),
			model.ProviderGrok:     newChatProvider(model.ProviderGrok, base(model.ProviderGrok, DefaultGrokBaseURL), rl),
			model.ProviderDeepSeek: newChatProvider(model.ProviderDeepSeek, base(model.ProviderDeepSeek, DefaultDeepSeekBaseURL), rl),
			model.ProviderClaude:   newClaudeProvider(base(model.ProviderClaude, DefaultClaudeBaseURL), rl),
		},
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return g
}

// Register replaces the provider implementation for p.
func (g *Gateway) Register(p model.Provider, impl Provider) {
	g.providers[p] = impl
}

// Send sends prompt to the model described by desc. Every error returned
// is a *ProviderError.
func (g *Gateway) Send(ctx context.Context, desc model.ModelDescriptor, prompt, apiKey string) (string, error) {
	impl, ok := g.providers[desc.Provider]
	if !ok {
		return "", &ProviderError{Provider: desc.Provider, Message: "Unsupported provider: " + string(desc.Provider)}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", &ProviderError{Provider: desc.Provider, Message: err.Error()}
		}
	}

	start := time.Now()
	text, err := impl.Send(ctx, prompt, desc.UpstreamModelID, apiKey)
	if err != nil {
		pe := asProviderError(desc.Provider, err)
		zap.L().Warn("gateway: provider call failed",
			zap.String("provider", string(desc.Provider)),
			zap.String("model", desc.UpstreamModelID),
			zap.Int("status", pe.StatusCode),
			zap.String("error", pe.Message),
		)
		return "", pe
	}

	zap.L().Debug("gateway: provider call complete",
		zap.String("provider", string(desc.Provider)),
		zap.String("model", desc.UpstreamModelID),
		zap.Int("reply_chars", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}
