package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRelay struct {
	mock.Mock
}

func (m *mockRelay) Do(ctx context.Context, req Request) (*Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Response), args.Error(1)
}

func postMessage(t *testing.T, h http.Handler, body, token string) (int, Envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/relay", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestHandlerSuccess(t *testing.T) {
	rl := &mockRelay{}
	rl.On("Do", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Type == TypeClaude && r.URL == "https://api.anthropic.com/v1/messages"
	})).Return(&Response{Status: 200, StatusText: "OK", OK: true, Text: `{"content":[]}`}, nil)

	h := NewRouter(rl, RouterOptions{})
	code, env := postMessage(t, h, `{"type":"claude_api_call","url":"https://api.anthropic.com/v1/messages","method":"POST","headers":{},"body":"{}"}`, "")

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Data)
	assert.Equal(t, 200, env.Data.Status)
	assert.Equal(t, `{"content":[]}`, env.Data.Text)
	rl.AssertExpectations(t)
}

func TestHandlerUnknownType(t *testing.T) {
	rl := &mockRelay{}
	h := NewRouter(rl, RouterOptions{})

	_, env := postMessage(t, h, `{"type":"gemini_api_call","url":"https://x"}`, "")
	assert.False(t, env.Success)
	assert.Equal(t, "Unknown message type", env.Error)
	rl.AssertNotCalled(t, "Do", mock.Anything, mock.Anything)
}

func TestHandlerTransportError(t *testing.T) {
	rl := &mockRelay{}
	rl.On("Do", mock.Anything, mock.Anything).Return(nil, eris.New("dial tcp: connection refused"))

	h := NewRouter(rl, RouterOptions{})
	_, env := postMessage(t, h, `{"type":"openai_api_call","url":"https://api.openai.com/v1/chat/completions"}`, "")
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "connection refused")
}

func TestHandlerRejectsURLOutsideProviderBase(t *testing.T) {
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("secret admin page"))
	}))
	defer internal.Close()

	h := NewRouter(NewHTTPRelay(time.Second, time.Second), RouterOptions{})
	body := `{"type":"openai_api_call","url":"` + internal.URL + `/admin","method":"GET"}`
	code, env := postMessage(t, h, body, "")

	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, env.Success)
	assert.Equal(t, "URL not allowed for message type", env.Error)
	assert.Nil(t, env.Data)
	assert.Zero(t, hits.Load())
}

func TestHandlerConfiguredUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer upstream.Close()

	h := NewRouter(NewHTTPRelay(time.Second, time.Second), RouterOptions{
		Upstreams: map[string]string{TypeOpenAI: upstream.URL + "/v1"},
	})

	_, env := postMessage(t, h, `{"type":"openai_api_call","url":"`+upstream.URL+`/v1/chat/completions","method":"POST","body":"{}"}`, "")
	require.True(t, env.Success, env.Error)
	assert.Equal(t, "/v1/chat/completions", env.Data.Text)

	// Other types are not in the map, so even their public hosts are refused.
	code, env := postMessage(t, h, `{"type":"claude_api_call","url":"https://api.anthropic.com/v1/messages"}`, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, env.Success)
}

func TestAllowedURL(t *testing.T) {
	tests := []struct {
		base, target string
		want         bool
	}{
		{OpenAIBaseURL, "https://api.openai.com/v1/chat/completions", true},
		{OpenAIBaseURL, "https://api.openai.com/v1", true},
		{OpenAIBaseURL + "/", "https://api.openai.com/v1/models", true},
		{ClaudeBaseURL, "https://api.anthropic.com/v1/messages", true},
		{OpenAIBaseURL, "https://api.openai.com/v10/x", false},
		{OpenAIBaseURL, "https://api.openai.com/admin", false},
		{OpenAIBaseURL, "https://api.openai.com/v1/../admin", false},
		{OpenAIBaseURL, "http://api.openai.com/v1/chat/completions", false},
		{OpenAIBaseURL, "https://api.openai.com.evil.test/v1/chat/completions", false},
		{OpenAIBaseURL, "https://user:pw@api.openai.com/v1/chat/completions", false},
		{OpenAIBaseURL, "http://127.0.0.1:8080/admin", false},
		{OpenAIBaseURL, "", false},
		{"", "https://api.openai.com/v1/chat/completions", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AllowedURL(tt.base, tt.target), "%s under %s", tt.target, tt.base)
	}
}

func TestHandlerBadBody(t *testing.T) {
	h := NewRouter(&mockRelay{}, RouterOptions{})
	code, env := postMessage(t, h, `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestHandlerGuard(t *testing.T) {
	const secret = "s3cret"
	rl := &mockRelay{}
	rl.On("Do", mock.Anything, mock.Anything).Return(&Response{Status: 200, OK: true}, nil)
	h := NewRouter(rl, RouterOptions{Secret: secret})

	msg := `{"type":"grok_api_call","url":"https://api.x.ai/v1/chat/completions"}`

	code, env := postMessage(t, h, msg, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = postMessage(t, h, msg, "garbage")
	assert.Equal(t, http.StatusUnauthorized, code)

	wrong, err := IssueToken("other-secret", "cli", time.Hour)
	require.NoError(t, err)
	code, _ = postMessage(t, h, msg, wrong)
	assert.Equal(t, http.StatusUnauthorized, code)

	expired, err := IssueToken(secret, "cli", -time.Minute)
	require.NoError(t, err)
	code, env = postMessage(t, h, msg, expired)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token expired", env.Error)

	good, err := IssueToken(secret, "cli", time.Hour)
	require.NoError(t, err)
	code, env = postMessage(t, h, msg, good)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestHealth(t *testing.T) {
	h := NewRouter(&mockRelay{}, RouterOptions{Secret: "guarded"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(&mockRelay{}, RouterOptions{AllowedOrigins: []string{"https://moodle.example.edu"}})
	req := httptest.NewRequest(http.MethodOptions, "/relay", nil)
	req.Header.Set("Origin", "https://moodle.example.edu")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://moodle.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestVerifyToken(t *testing.T) {
	tok, err := IssueToken("k", "alice", time.Hour)
	require.NoError(t, err)
	claims, err := VerifyToken("k", tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = IssueToken("", "alice", time.Hour)
	assert.Error(t, err)
}
