// Package anthropic is a thin Messages API client over anthropic-sdk-go.
// It sends single-turn prompts and returns the reply blocks with token
// usage; transport is pluggable so calls can go through a relay.
package anthropic

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 1024
)

// Client sends messages to Claude.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// Doer performs a single HTTP round trip. *http.Client satisfies it.
type Doer = option.HTTPClient

// MessageRequest is one Messages API call. MaxTokens defaults to 1024.
type MessageRequest struct {
	Model     string
	MaxTokens int64
	Messages  []Message
}

// Message is one conversational turn. Role is "user" or "assistant";
// anything else is sent as user.
type Message struct {
	Role    string
	Content string
}

// MessageResponse is the decoded reply.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// Text returns the first content block's text, or false when the reply
// carries no content or the first block is not a text block.
func (r *MessageResponse) Text() (string, bool) {
	if r == nil || len(r.Content) == 0 || r.Content[0].Type != "text" {
		return "", false
	}
	return r.Content[0].Text, true
}

// ContentBlock is one block of a reply.
type ContentBlock struct {
	Type string
	Text string
}

// TokenUsage counts the tokens a call consumed.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// rate is USD per million tokens.
type rate struct {
	input, output float64
}

// rates covers the Claude models in the built-in registry.
var rates = map[string]rate{
	"claude-3-opus-20240229":     {input: 15.00, output: 75.00},
	"claude-3-5-sonnet-20241022": {input: 3.00, output: 15.00},
	"claude-3-7-sonnet-20250219": {input: 3.00, output: 15.00},
	"claude-3-haiku-20240307":    {input: 0.25, output: 1.25},
}

// EstimateCost prices u for model in USD. Unknown models cost 0.
func (u TokenUsage) EstimateCost(model string) float64 {
	r, ok := rates[model]
	if !ok {
		return 0
	}
	return (float64(u.InputTokens)*r.input + float64(u.OutputTokens)*r.output) / 1e6
}

// LogCost logs usage and estimated cost at debug level.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Debug("anthropic: token usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// Option configures the client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient Doer
	maxRetries int
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithHTTPClient routes every request through d.
func WithHTTPClient(d Doer) Option {
	return func(o *clientOptions) { o.httpClient = d }
}

// WithMaxRetries sets the SDK retry budget. The default is 0.
func WithMaxRetries(n int) Option {
	return func(o *clientOptions) { o.maxRetries = n }
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a Client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	o := clientOptions{baseURL: defaultBaseURL}
	for _, fn := range opts {
		fn(&o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(o.baseURL),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	return &sdkClient{client: sdk.NewClient(reqOpts...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  toSDKMessages(req.Messages),
	})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}

	resp := &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
	for _, b := range msg.Content {
		resp.Content = append(resp.Content, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return resp, nil
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out[i] = sdk.NewAssistantMessage(block)
			continue
		}
		out[i] = sdk.NewUserMessage(block)
	}
	return out
}
