package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/quizlens/internal/extract"
	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const quizPage = `<html><body><form id="responseform">
<div id="q1" class="que multichoice">
  <div class="info"><span class="qno">1</span></div>
  <div class="qtext">What is the capital of France?</div>
  <div class="answer">
    <div><input type="radio" name="a1" value="0" id="a10"><label for="a10">a. Paris</label></div>
    <div><input type="radio" name="a1" value="1" id="a11"><label for="a11">b. Lyon</label></div>
    <div><input type="radio" name="a1" value="2" id="a12"><label for="a12">c. Marseille</label></div>
  </div>
</div>
<div id="q2" class="que truefalse">
  <div class="qtext">The Earth is flat.</div>
  <div class="answer">
    <div><input type="radio" name="a2" value="1" id="a2t"><label for="a2t">True</label></div>
    <div><input type="radio" name="a2" value="0" id="a2f"><label for="a2f">False</label></div>
  </div>
</div>
</form></body></html>`

const brokenQuestion = `<div id="q3" class="que multichoice">
  <div class="qtext">Pick one</div>
  <div class="answer"><input type="radio" name="a3" value="0"></div>
</div>`

// fakeAnalyzer counts calls and optionally blocks until released.
type fakeAnalyzer struct {
	calls   atomic.Int32
	started chan string
	release chan struct{}
}

func (f *fakeAnalyzer) AnalyzeQuestion(_ context.Context, q model.QuestionRecord, _ model.ModelDescriptor, _ string, _ model.Settings) *model.AnalysisRecord {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- q.ID
	}
	if f.release != nil {
		<-f.release
	}
	rec := model.NewAnalysisRecord(q.ID)
	rec.ProbableAnswers = []int{0}
	rec.Confidence = model.ConfidenceHigh
	rec.Justification = "Capital."
	return &rec
}

type staticSettings struct {
	s   model.Settings
	err error
}

func (f staticSettings) GetSettings(context.Context) (model.Settings, error) { return f.s, f.err }

func keyed() staticSettings {
	return staticSettings{s: model.Settings{
		SelectedModel: "claude-3-7-sonnet",
		APIKeys:       map[model.Provider]string{model.ProviderClaude: "sk-ant-test"},
	}}
}

type fixture struct {
	page     *extract.HTMLPage
	analyzer *fakeAnalyzer
	prefs    *MemoryPreferences
	ctl      *Controller
}

func newFixture(t *testing.T, html string, settings SettingsSource) *fixture {
	t.Helper()
	page, err := extract.ParseHTML(html)
	require.NoError(t, err)
	f := &fixture{page: page, analyzer: &fakeAnalyzer{}, prefs: NewMemoryPreferences()}
	f.ctl = NewController(page, f.analyzer, registry.New(registry.DefaultModelID), settings, WithPreferences(f.prefs))
	return f
}

func TestAnalyze_Displays(t *testing.T) {
	f := newFixture(t, quizPage, keyed())

	rec, err := f.ctl.Analyze(context.Background(), "q1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []int{0}, rec.ProbableAnswers)
	assert.Equal(t, Displayed, f.ctl.State("q1"))
	assert.True(t, f.ctl.Visible("q1"))

	stored, ok := f.ctl.Record("q1")
	require.True(t, ok)
	assert.Same(t, rec, stored)

	out, err := f.page.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, `id="quizlens-result-q1"`)
	assert.Contains(t, out, "quizlens-indicator")
	assert.NotContains(t, out, "data-quizlens-state")
}

func TestAnalyze_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings staticSettings
		registry *registry.Registry
		wantMsg  string
	}{
		{
			name:     "missing key",
			settings: staticSettings{s: model.Settings{SelectedModel: "gpt-4"}},
			registry: registry.New(registry.DefaultModelID),
			wantMsg:  "No API key found for OpenAI GPT-4",
		},
		{
			name: "blank key",
			settings: staticSettings{s: model.Settings{
				SelectedModel: "gpt-4",
				APIKeys:       map[model.Provider]string{model.ProviderOpenAI: "   "},
			}},
			registry: registry.New(registry.DefaultModelID),
			wantMsg:  "No API key found",
		},
		{
			name:     "unresolvable model",
			settings: keyed(),
			registry: registry.New("missing", []model.ModelDescriptor{}),
			wantMsg:  "Invalid model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := extract.ParseHTML(quizPage)
			require.NoError(t, err)
			a := &fakeAnalyzer{}
			ctl := NewController(page, a, tt.registry, tt.settings)

			rec, err := ctl.Analyze(context.Background(), "q1")
			assert.Nil(t, rec)
			var cfgErr *registry.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Message, tt.wantMsg)
			assert.Zero(t, a.calls.Load())
			assert.Equal(t, Idle, ctl.State("q1"))
		})
	}
}

func TestAnalyze_SettingsError(t *testing.T) {
	f := newFixture(t, quizPage, staticSettings{err: errors.New("database is locked")})

	_, err := f.ctl.Analyze(context.Background(), "q1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Zero(t, f.analyzer.calls.Load())
}

func TestAnalyze_ExtractionErrors(t *testing.T) {
	f := newFixture(t, `<form id="responseform">`+brokenQuestion+`</form>`, keyed())

	t.Run("no options", func(t *testing.T) {
		_, err := f.ctl.Analyze(context.Background(), "q3")
		var exErr *extract.ExtractionError
		require.ErrorAs(t, err, &exErr)
		assert.Equal(t, "q3", exErr.QuestionID)
		assert.Equal(t, "no answer options found", exErr.Reason)
		assert.Equal(t, Idle, f.ctl.State("q3"))
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := f.ctl.Analyze(context.Background(), "nope")
		var exErr *extract.ExtractionError
		require.ErrorAs(t, err, &exErr)
	})

	assert.Zero(t, f.analyzer.calls.Load())
	out, err := f.page.HTML()
	require.NoError(t, err)
	assert.NotContains(t, out, "data-quizlens-state")
}

func TestAnalyze_InFlightGuard(t *testing.T) {
	f := newFixture(t, quizPage, keyed())
	f.analyzer.started = make(chan string, 1)
	f.analyzer.release = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.ctl.Analyze(context.Background(), "q1")
	}()

	assert.Equal(t, "q1", <-f.analyzer.started)
	assert.Equal(t, Analyzing, f.ctl.State("q1"))

	_, err := f.ctl.Analyze(context.Background(), "q1")
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	close(f.analyzer.release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, int32(1), f.analyzer.calls.Load())
	assert.Equal(t, Displayed, f.ctl.State("q1"))

	// The flag is cleared once the run ends.
	f.analyzer.started = nil
	f.analyzer.release = nil
	_, err = f.ctl.Analyze(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.analyzer.calls.Load())
}

func TestAnalyze_AppliesSavedPreference(t *testing.T) {
	f := newFixture(t, quizPage, keyed())
	ctx := context.Background()
	require.NoError(t, f.prefs.Set(ctx, DisplayKey("q1"), "hidden"))
	require.NoError(t, f.prefs.Set(ctx, AllHiddenKey, "true"))

	_, err := f.ctl.Analyze(ctx, "q1")
	require.NoError(t, err)
	assert.False(t, f.ctl.Visible("q1"))

	require.NoError(t, f.prefs.Set(ctx, DisplayKey("q2"), "visible"))
	_, err = f.ctl.Analyze(ctx, "q2")
	require.NoError(t, err)
	assert.True(t, f.ctl.Visible("q2"))

	out, err := f.page.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, `style="display:none"`)
}

func TestToggle(t *testing.T) {
	f := newFixture(t, quizPage, keyed())
	ctx := context.Background()

	_, err := f.ctl.Toggle(ctx, "nope")
	var exErr *extract.ExtractionError
	require.ErrorAs(t, err, &exErr)

	_, err = f.ctl.Analyze(ctx, "q1")
	require.NoError(t, err)

	visible, err := f.ctl.Toggle(ctx, "q1")
	require.NoError(t, err)
	assert.False(t, visible)
	v, ok, _ := f.prefs.Get(ctx, DisplayKey("q1"))
	assert.True(t, ok)
	assert.Equal(t, "hidden", v)

	visible, err = f.ctl.Toggle(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, visible)
	v, _, _ = f.prefs.Get(ctx, DisplayKey("q1"))
	assert.Equal(t, "visible", v)
}

func TestToggle_BeforeAnalysisSavesPreference(t *testing.T) {
	f := newFixture(t, quizPage, keyed())
	ctx := context.Background()

	visible, err := f.ctl.Toggle(ctx, "q2")
	require.NoError(t, err)
	assert.False(t, visible)
	assert.Equal(t, Idle, f.ctl.State("q2"))
	v, ok, _ := f.prefs.Get(ctx, DisplayKey("q2"))
	require.True(t, ok)
	assert.Equal(t, "hidden", v)

	_, err = f.ctl.Analyze(ctx, "q2")
	require.NoError(t, err)
	assert.False(t, f.ctl.Visible("q2"))

	// A fresh controller over the rendered page flips the saved choice and
	// the panel already in the markup.
	out, err := f.page.HTML()
	require.NoError(t, err)
	page, err := extract.ParseHTML(out)
	require.NoError(t, err)
	analyzer := &fakeAnalyzer{}
	next := NewController(page, analyzer, registry.New(registry.DefaultModelID), keyed(), WithPreferences(f.prefs))

	visible, err = next.Toggle(ctx, "q2")
	require.NoError(t, err)
	assert.True(t, visible)
	v, _, _ = f.prefs.Get(ctx, DisplayKey("q2"))
	assert.Equal(t, "visible", v)

	out, err = page.HTML()
	require.NoError(t, err)
	assert.NotContains(t, out, `style="display:none"`)
	assert.Zero(t, analyzer.calls.Load())
}

func TestToggleAll(t *testing.T) {
	f := newFixture(t, quizPage, keyed())
	ctx := context.Background()

	for _, id := range []string{"q1", "q2"} {
		_, err := f.ctl.Analyze(ctx, id)
		require.NoError(t, err)
	}

	// One visible result is enough to hide everything.
	_, err := f.ctl.Toggle(ctx, "q2")
	require.NoError(t, err)

	visible, err := f.ctl.ToggleAll(ctx)
	require.NoError(t, err)
	assert.False(t, visible)
	assert.False(t, f.ctl.Visible("q1"))
	assert.False(t, f.ctl.Visible("q2"))
	v, _, _ := f.prefs.Get(ctx, AllHiddenKey)
	assert.Equal(t, "true", v)

	visible, err = f.ctl.ToggleAll(ctx)
	require.NoError(t, err)
	assert.True(t, visible)
	assert.True(t, f.ctl.Visible("q1"))
	assert.True(t, f.ctl.Visible("q2"))
	v, _, _ = f.prefs.Get(ctx, AllHiddenKey)
	assert.Equal(t, "false", v)
}

func TestToggleAll_NothingDisplayedFlipsSavedFlag(t *testing.T) {
	f := newFixture(t, quizPage, keyed())
	ctx := context.Background()

	visible, err := f.ctl.ToggleAll(ctx)
	require.NoError(t, err)
	assert.False(t, visible)
	v, ok, _ := f.prefs.Get(ctx, AllHiddenKey)
	require.True(t, ok)
	assert.Equal(t, "true", v)

	// The flag hides the next result.
	_, err = f.ctl.Analyze(ctx, "q1")
	require.NoError(t, err)
	assert.False(t, f.ctl.Visible("q1"))

	require.NoError(t, f.ctl.Clear(ctx))
	visible, err = f.ctl.ToggleAll(ctx)
	require.NoError(t, err)
	assert.True(t, visible)
	v, _, _ = f.prefs.Get(ctx, AllHiddenKey)
	assert.Equal(t, "false", v)
}

func TestClear(t *testing.T) {
	f := newFixture(t, quizPage, keyed())
	ctx := context.Background()

	for _, id := range []string{"q1", "q2"} {
		_, err := f.ctl.Analyze(ctx, id)
		require.NoError(t, err)
		_, err = f.ctl.Toggle(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, f.ctl.Clear(ctx))

	for _, id := range []string{"q1", "q2"} {
		assert.Equal(t, Idle, f.ctl.State(id))
		_, ok := f.ctl.Record(id)
		assert.False(t, ok)
		_, ok, _ = f.prefs.Get(ctx, DisplayKey(id))
		assert.False(t, ok)
	}

	out, err := f.page.HTML()
	require.NoError(t, err)
	assert.NotContains(t, out, "quizlens-result")

	// Questions can be analyzed again after a clear.
	_, err = f.ctl.Analyze(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, Displayed, f.ctl.State("q1"))
}

func TestClear_DuringAnalysisDropsResult(t *testing.T) {
	f := newFixture(t, quizPage, keyed())
	f.analyzer.started = make(chan string, 1)
	f.analyzer.release = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		_, runErr = f.ctl.Analyze(ctx, "q1")
	}()

	assert.Equal(t, "q1", <-f.analyzer.started)
	require.NoError(t, f.ctl.Clear(ctx))
	assert.Equal(t, Analyzing, f.ctl.State("q1"))

	close(f.analyzer.release)
	wg.Wait()

	require.NoError(t, runErr)
	assert.Equal(t, Idle, f.ctl.State("q1"))
	_, ok := f.ctl.Record("q1")
	assert.False(t, ok)

	out, err := f.page.HTML()
	require.NoError(t, err)
	assert.NotContains(t, out, "quizlens-result")
	assert.NotContains(t, out, "data-quizlens-state")

	// The next run after the clear displays normally.
	f.analyzer.started = nil
	f.analyzer.release = nil
	_, err = f.ctl.Analyze(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, Displayed, f.ctl.State("q1"))
}

func TestAnalyzeAll(t *testing.T) {
	html := `<form id="responseform">` + quizPage[len(`<html><body><form id="responseform">`):len(quizPage)-len(`</form></body></html>`)] +
		brokenQuestion + `</form>`
	f := newFixture(t, html, keyed())

	results, err := f.ctl.AnalyzeAll(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "q1", results[0].ID)
	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Record)
	assert.NoError(t, results[1].Err)

	var exErr *extract.ExtractionError
	assert.Equal(t, "q3", results[2].ID)
	assert.ErrorAs(t, results[2].Err, &exErr)

	assert.Equal(t, int32(2), f.analyzer.calls.Load())
}

func TestAnalyzeAll_ConfigurationError(t *testing.T) {
	f := newFixture(t, quizPage, staticSettings{s: model.Settings{}})

	_, err := f.ctl.AnalyzeAll(context.Background(), 4)
	var cfgErr *registry.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, f.analyzer.calls.Load())
}
