package analysis

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quizlens/internal/gateway"
	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/relay"
)

type fakeSender struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeSender) Send(_ context.Context, _ model.ModelDescriptor, prompt, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

// failingRelay rejects every call as a transport failure would.
type failingRelay struct{ err error }

func (f failingRelay) Do(context.Context, relay.Request) (*relay.Response, error) {
	return nil, f.err
}

var sonnet = model.ModelDescriptor{
	ID:              "claude-3-7-sonnet",
	DisplayName:     "Claude 3.7 Sonnet",
	Provider:        model.ProviderClaude,
	UpstreamModelID: "claude-3-7-sonnet-20250219",
}

func seeded() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func TestAnalyzeQuestion_Success(t *testing.T) {
	s := &fakeSender{reply: "ANSWER: Option 1\nCONFIDENCE: HIGH\nJUSTIFICATION: Capital."}
	a := NewAnalyzer(s)

	rec := a.AnalyzeQuestion(context.Background(), capitalQuestion(), sonnet, "sk-test", model.Settings{})
	require.NotNil(t, rec)
	assert.Equal(t, []int{0}, rec.ProbableAnswers)
	assert.Equal(t, model.ConfidenceHigh, rec.Confidence)
	assert.Equal(t, "Capital.", rec.Justification)
	assert.False(t, rec.IsMockResponse)
	assert.Empty(t, rec.ErrorMessage)

	require.Len(t, s.prompts, 1)
	assert.Contains(t, s.prompts[0], "1. Paris")
}

func TestAnalyzeQuestion_MockOnProviderError(t *testing.T) {
	s := &fakeSender{err: &gateway.ProviderError{Provider: model.ProviderClaude, StatusCode: 401, Message: "Invalid API key"}}
	a := NewAnalyzer(s, WithRand(seeded()))

	rec := a.AnalyzeQuestion(context.Background(), capitalQuestion(), sonnet, "bad", model.Settings{})
	require.NotNil(t, rec)
	assert.True(t, rec.IsMockResponse)
	assert.Equal(t, "Invalid API key", rec.ErrorMessage)
	assert.True(t, strings.HasSuffix(rec.Justification, MockSuffix))
	assert.Contains(t, rec.Justification, MockJustification)
	require.Len(t, rec.ProbableAnswers, 1)
	assert.GreaterOrEqual(t, rec.ProbableAnswers[0], 0)
	assert.Less(t, rec.ProbableAnswers[0], 3)
	assert.Contains(t, model.AllConfidences(), rec.Confidence)
}

func TestAnalyzeQuestion_MockOnTransportErrorThroughGateway(t *testing.T) {
	gw := gateway.New(failingRelay{err: eris.New("dial tcp 10.0.0.1:443: connect: connection refused")}, gateway.Options{})
	a := NewAnalyzer(gw, WithRand(seeded()))

	rec := a.AnalyzeQuestion(context.Background(), capitalQuestion(), sonnet, "sk-test", model.Settings{})
	require.NotNil(t, rec)
	assert.True(t, rec.IsMockResponse)
	assert.Equal(t, "dial tcp 10.0.0.1:443: connect: connection refused", rec.ErrorMessage)
}

func TestAnalyzeQuestion_MockWrittenTypes(t *testing.T) {
	s := &fakeSender{err: eris.New("boom")}
	a := NewAnalyzer(s, WithRand(seeded()))

	tests := []struct {
		name string
		q    model.QuestionRecord
	}{
		{"essay", model.QuestionRecord{ID: "e1", Text: "Discuss.", Type: model.QuestionEssay}},
		{"short answer", model.QuestionRecord{ID: "s1", Text: "Symbol for gold?", Type: model.QuestionShortAnswer}},
		{"matching", model.QuestionRecord{ID: "m1", Text: "Match.", Type: model.QuestionMatching}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.AnalyzeQuestion(context.Background(), tt.q, sonnet, "k", model.Settings{})
			require.NotNil(t, rec)
			assert.True(t, rec.IsMockResponse)
			assert.Equal(t, "boom", rec.ErrorMessage)
			assert.Equal(t, tt.q.ID, rec.QuestionID)
			assert.True(t, strings.HasSuffix(rec.Justification, MockSuffix))
			assert.Empty(t, rec.ProbableAnswers)
		})
	}
}

func TestMockResponse_Deterministic(t *testing.T) {
	q := capitalQuestion()
	assert.Equal(t, MockResponse(q, seeded()), MockResponse(q, seeded()))

	negated := q
	negated.Text = "Which is not a French city?"
	assert.True(t, strings.HasPrefix(MockResponse(negated, seeded()), "INCORRECT ANSWER: Option "))
}
