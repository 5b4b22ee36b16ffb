package analysis

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/gateway"
	"github.com/sells-group/quizlens/internal/model"
)

// Sender sends a prompt to a model and returns the reply text.
type Sender interface {
	Send(ctx context.Context, desc model.ModelDescriptor, prompt, apiKey string) (string, error)
}

// Analyzer runs prompt, send and parse for one question.
type Analyzer struct {
	sender Sender

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRand sets the source used for mock replies.
func WithRand(rng *rand.Rand) Option {
	return func(a *Analyzer) { a.rng = rng }
}

// NewAnalyzer creates an Analyzer that sends through s.
func NewAnalyzer(s Sender, opts ...Option) *Analyzer {
	a := &Analyzer{sender: s}
	for _, o := range opts {
		o(a)
	}
	if a.rng == nil {
		seed := uint64(time.Now().UnixNano())
		a.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return a
}

// AnalyzeQuestion analyzes q with the model desc. It never returns nil:
// when the send fails the result is a mock record carrying the error
// message.
func (a *Analyzer) AnalyzeQuestion(ctx context.Context, q model.QuestionRecord, desc model.ModelDescriptor, apiKey string, s model.Settings) *model.AnalysisRecord {
	log := zap.L().With(zap.String("question_id", q.ID), zap.String("model", desc.ID))

	prompt := BuildPrompt(q, s)
	log.Debug("analysis: sending prompt",
		zap.String("type", string(q.Type)),
		zap.Int("options", len(q.Options)),
		zap.Bool("context", s.ContextActive()),
		zap.Int("prompt_chars", len(prompt)),
	)

	reply, err := a.sender.Send(ctx, desc, prompt, apiKey)
	if err != nil {
		log.Warn("analysis: provider failed, using mock response", zap.Error(err))
		return a.mock(q, err)
	}

	rec := ParseResponse(reply, q)
	log.Info("analysis: question analyzed",
		zap.Ints("answers", rec.ProbableAnswers),
		zap.String("confidence", string(rec.Confidence)),
		zap.Bool("negated", rec.IsNegatedQuestion),
	)
	return &rec
}

func (a *Analyzer) mock(q model.QuestionRecord, cause error) *model.AnalysisRecord {
	a.mu.Lock()
	raw := MockResponse(q, a.rng)
	a.mu.Unlock()

	rec := ParseResponse(raw, q)
	if rec.Justification == "" {
		rec.Justification = MockJustification
	}
	rec.Justification += MockSuffix
	rec.IsMockResponse = true
	rec.ErrorMessage = errorMessage(cause)
	return &rec
}

// errorMessage returns the provider's message when cause carries one.
func errorMessage(cause error) string {
	var pe *gateway.ProviderError
	if errors.As(cause, &pe) {
		return pe.Message
	}
	return cause.Error()
}
