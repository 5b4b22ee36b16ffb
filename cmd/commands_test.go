//go:build !integration

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quizlens/internal/relay"
)

func TestAnalyzeCommand_EndToEnd(t *testing.T) {
	upstream, calls := fakeUpstream(t)
	dbPath := filepath.Join(t.TempDir(), "quizlens.db")
	setEnv(t, dbPath, upstream.URL)
	t.Setenv("QUIZLENS_PROVIDERS_OPENAI_KEY", "sk-test")

	page := writeFile(t, "attempt.html", quizPage)
	annotated := filepath.Join(t.TempDir(), "annotated.html")

	out, err := execute(t, "analyze", page, "--format", "json", "--out", annotated, "--model", "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var reports []questionReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"Paris"}, reports[0].Answers)
	assert.Equal(t, "Paris is the capital.", reports[0].Analysis.Justification)

	html, err := os.ReadFile(annotated)
	require.NoError(t, err)
	assert.Contains(t, string(html), "quizlens-result")
}

func TestAnalyzeCommand_MissingKey(t *testing.T) {
	upstream, calls := fakeUpstream(t)
	setEnv(t, filepath.Join(t.TempDir(), "quizlens.db"), upstream.URL)

	_, err := execute(t, "analyze", writeFile(t, "attempt.html", quizPage), "--format", "text", "--out", "", "--model", "gpt-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No API key found for OpenAI GPT-4")
	assert.Zero(t, calls.Load())
}

func TestSettingsCommands(t *testing.T) {
	setEnv(t, filepath.Join(t.TempDir(), "quizlens.db"), "http://unused.invalid")

	out, err := execute(t, "settings", "set", "claude_api_key", "sk-ant-0123456789")
	require.NoError(t, err)
	assert.Equal(t, "claude_api_key = …6789\n", out)

	_, err = execute(t, "settings", "set", "selected_model", "not-a-model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")

	_, err = execute(t, "settings", "set", "favourite_colour", "blue")
	require.Error(t, err)

	out, err = execute(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "claude_api_key")
	assert.Contains(t, out, "…6789")
	assert.NotContains(t, out, "sk-ant-0123456789")
	assert.Contains(t, out, "not set")
}

func TestModelsCommands(t *testing.T) {
	setEnv(t, filepath.Join(t.TempDir(), "quizlens.db"), "http://unused.invalid")

	out, err := execute(t, "models", "set-default", "deepseek-chat")
	require.NoError(t, err)
	assert.Equal(t, "default_model = deepseek-chat\n", out)

	_, err = execute(t, "models", "select", "nope")
	require.Error(t, err)

	out, err = execute(t, "models", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Claude 3.7 Sonnet")
	assert.Regexp(t, regexp.MustCompile(`\*\s*│\s*deepseek-chat`), out)
}

func TestContextCommands(t *testing.T) {
	setEnv(t, filepath.Join(t.TempDir(), "quizlens.db"), "http://unused.invalid")

	notes := writeFile(t, "notes.md", "# Week 1\nMitochondria make ATP.")
	out, err := execute(t, "context", "add", notes)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "added notes.md ("), out)
	id := strings.TrimSuffix(strings.SplitN(strings.SplitN(out, "(", 2)[1], ",", 2)[0], ",")

	_, err = execute(t, "context", "add", writeFile(t, "slides.pptx", "PK"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")

	_, err = execute(t, "context", "enable")
	require.NoError(t, err)

	out, err = execute(t, "context", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "notes.md")
	assert.Contains(t, out, "context injection: enabled")

	_, err = execute(t, "context", "remove", id)
	require.NoError(t, err)
	_, err = execute(t, "context", "remove", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not found")
}

func TestChatCommand(t *testing.T) {
	upstream, calls := fakeUpstream(t)
	setEnv(t, filepath.Join(t.TempDir(), "quizlens.db"), upstream.URL)
	t.Setenv("QUIZLENS_PROVIDERS_OPENAI_KEY", "sk-test")

	out, err := execute(t, "chat", "--raw", "--model", "gpt-4", "Capital of France?")
	require.NoError(t, err)
	assert.Equal(t, upstreamReply+"\n", out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRelayTokenCommand(t *testing.T) {
	setEnv(t, filepath.Join(t.TempDir(), "quizlens.db"), "http://unused.invalid")

	t.Setenv("QUIZLENS_RELAY_SECRET", "")
	_, err := execute(t, "relay", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay.secret is required")

	t.Setenv("QUIZLENS_RELAY_SECRET", "s3cret")
	out, err := execute(t, "relay", "token", "--subject", "extension")
	require.NoError(t, err)

	claims, err := relay.VerifyToken("s3cret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "extension", claims.Subject)
}
