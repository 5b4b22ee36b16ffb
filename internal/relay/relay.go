// Package relay performs the outbound HTTPS calls to LLM providers on
// behalf of the analysis layer. A relay forwards a request descriptor and
// hands back the raw status and body; it never interprets the status.
package relay

import (
	"context"

	"github.com/sells-group/quizlens/internal/model"
)

// Message types accepted by the relay, one per provider.
const (
	TypeOpenAI   = "openai_api_call"
	TypeClaude   = "claude_api_call"
	TypeGrok     = "grok_api_call"
	TypeDeepSeek = "deepseek_api_call"
)

// TypeForProvider returns the message type used for a provider's calls.
func TypeForProvider(p model.Provider) string {
	switch p {
	case model.ProviderOpenAI:
		return TypeOpenAI
	case model.ProviderClaude:
		return TypeClaude
	case model.ProviderGrok:
		return TypeGrok
	case model.ProviderDeepSeek:
		return TypeDeepSeek
	default:
		return ""
	}
}

// KnownType reports whether t is an accepted message type.
func KnownType(t string) bool {
	switch t {
	case TypeOpenAI, TypeClaude, TypeGrok, TypeDeepSeek:
		return true
	default:
		return false
	}
}

// Request describes one outbound HTTP call.
type Request struct {
	Type    string            `json:"type"`
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// Response is the raw upstream reply.
type Response struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	OK         bool   `json:"ok"`
	Text       string `json:"text"`
}

// Relay performs a Request. Errors are transport failures only; any HTTP
// status, including 4xx and 5xx, comes back as a Response.
type Relay interface {
	Do(ctx context.Context, req Request) (*Response, error)
}
