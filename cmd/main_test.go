//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quizlens/internal/config"
)

const quizPage = `<html><body>
<form id="responseform" action="/mod/quiz/processattempt.php">
<div id="question-1-1" class="que multichoice">
  <div class="qtext"><p>What is the capital of France?</p></div>
  <div class="ablock"><div class="answer">
    <div class="r0"><input type="radio" name="q1:1_answer" value="0" id="q1:1_answer0"><label for="q1:1_answer0">Paris</label></div>
    <div class="r1"><input type="radio" name="q1:1_answer" value="1" id="q1:1_answer1"><label for="q1:1_answer1">Lyon</label></div>
    <div class="r0"><input type="radio" name="q1:1_answer" value="2" id="q1:1_answer2"><label for="q1:1_answer2">Marseille</label></div>
  </div></div>
</div>
</form>
</body></html>`

const upstreamReply = "ANSWER: Option 1\nCONFIDENCE: HIGH\nJUSTIFICATION: Paris is the capital."

// fakeUpstream serves an OpenAI-compatible chat completions endpoint that
// always returns upstreamReply.
func fakeUpstream(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "c1",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": upstreamReply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// testConfig points the store at a temp SQLite file and OpenAI at baseURL.
func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Store:     config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "quizlens.db")},
		Providers: config.ProvidersConfig{OpenAI: config.ProviderConfig{BaseURL: baseURL}},
		Models:    config.ModelsConfig{Default: "gpt-4"},
		Gateway:   config.GatewayConfig{Concurrency: 2},
		Relay:     config.RelayConfig{DialTimeoutSecs: 5, TLSTimeoutSecs: 5},
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Log:       config.LogConfig{Level: "error", Format: "console"},
	}
}

// useConfig installs c as the global config for the test.
func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

// setEnv mirrors a test config into QUIZLENS_ variables so commands that
// reload config see it.
func setEnv(t *testing.T, dbPath, baseURL string) {
	t.Helper()
	t.Setenv("QUIZLENS_STORE_DRIVER", "sqlite")
	t.Setenv("QUIZLENS_STORE_DATABASE_URL", dbPath)
	t.Setenv("QUIZLENS_PROVIDERS_OPENAI_BASE_URL", baseURL)
	t.Setenv("QUIZLENS_PROVIDERS_OPENAI_KEY", "")
	t.Setenv("QUIZLENS_MODELS_DEFAULT", "gpt-4")
	t.Setenv("QUIZLENS_LOG_LEVEL", "error")
	t.Setenv("QUIZLENS_LOG_FORMAT", "console")
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
