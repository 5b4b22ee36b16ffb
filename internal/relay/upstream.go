package relay

import (
	"net/url"
	"strings"
)

// Public API bases for each provider.
const (
	OpenAIBaseURL   = "https://api.openai.com/v1"
	ClaudeBaseURL   = "https://api.anthropic.com"
	GrokBaseURL     = "https://api.x.ai/v1"
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
)

// DefaultUpstreams maps every message type to its provider's public API
// base.
func DefaultUpstreams() map[string]string {
	return map[string]string{
		TypeOpenAI:   OpenAIBaseURL,
		TypeClaude:   ClaudeBaseURL,
		TypeGrok:     GrokBaseURL,
		TypeDeepSeek: DeepSeekBaseURL,
	}
}

// AllowedURL reports whether target lies under base: same scheme and host,
// and a path equal to or below base's path. Credentials, ".." segments and
// an empty base are rejected.
func AllowedURL(base, target string) bool {
	if base == "" || target == "" {
		return false
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return false
	}
	t, err := url.Parse(target)
	if err != nil || t.User != nil || t.Host == "" {
		return false
	}
	if !strings.EqualFold(b.Scheme, t.Scheme) || !strings.EqualFold(b.Host, t.Host) {
		return false
	}
	if strings.Contains(t.Path, "..") {
		return false
	}
	prefix := strings.TrimSuffix(b.Path, "/")
	return prefix == "" || t.Path == prefix || strings.HasPrefix(t.Path, prefix+"/")
}
