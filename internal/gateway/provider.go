package gateway

import (
	"context"
	"fmt"

	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/relay"
	"github.com/sells-group/quizlens/pkg/anthropic"
	"github.com/sells-group/quizlens/pkg/chatcompletion"
)

// Provider sends one prompt to one upstream model and returns the reply
// text.
type Provider interface {
	Send(ctx context.Context, prompt, upstreamModelID, apiKey string) (string, error)
}

// chatProvider serves OpenAI-compatible APIs: OpenAI, Grok and DeepSeek.
type chatProvider struct {
	provider model.Provider
	baseURL  string
	doer     *relayDoer
}

func newChatProvider(p model.Provider, baseURL string, rl relay.Relay) *chatProvider {
	return &chatProvider{provider: p, baseURL: baseURL, doer: &relayDoer{relay: rl, provider: p}}
}

func (c *chatProvider) Send(ctx context.Context, prompt, upstreamModelID, apiKey string) (string, error) {
	client := chatcompletion.NewClient(apiKey,
		chatcompletion.WithBaseURL(c.baseURL),
		chatcompletion.WithHTTPClient(c.doer),
	)

	resp, err := client.ChatCompletion(ctx, chatcompletion.ChatCompletionRequest{
		Model:    upstreamModelID,
		Messages: []chatcompletion.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", asProviderError(c.provider, err)
	}

	text, ok := resp.Text()
	if !ok {
		return "", &ProviderError{Provider: c.provider, Message: fmt.Sprintf("no choices in %s response", c.provider)}
	}
	return text, nil
}

// claudeProvider serves the Anthropic Messages API.
type claudeProvider struct {
	baseURL string
	doer    *relayDoer
}

func newClaudeProvider(baseURL string, rl relay.Relay) *claudeProvider {
	return &claudeProvider{baseURL: baseURL, doer: &relayDoer{relay: rl, provider: model.ProviderClaude}}
}

func (c *claudeProvider) Send(ctx context.Context, prompt, upstreamModelID, apiKey string) (string, error) {
	client := anthropic.NewClient(apiKey,
		anthropic.WithBaseURL(c.baseURL),
		anthropic.WithHTTPClient(c.doer),
		anthropic.WithMaxRetries(0),
	)

	resp, err := client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     upstreamModelID,
		MaxTokens: 1024,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", asProviderError(model.ProviderClaude, err)
	}
	resp.Usage.LogCost(upstreamModelID, "gateway")

	text, ok := resp.Text()
	if !ok {
		return "", &ProviderError{Provider: model.ProviderClaude, Message: "no content in claude response"}
	}
	return text, nil
}
