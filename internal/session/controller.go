// Package session drives one analysis cycle per question on a page and
// tracks each question's state and result visibility.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/quizlens/internal/extract"
	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/registry"
)

// State is a question's place in the analysis cycle.
type State int

const (
	Idle State = iota
	Analyzing
	Displayed
)

func (s State) String() string {
	switch s {
	case Analyzing:
		return "analyzing"
	case Displayed:
		return "displayed"
	default:
		return "idle"
	}
}

// ErrAnalysisInProgress rejects a second analysis of a question while one
// is running.
var ErrAnalysisInProgress = eris.New("session: analysis already in progress")

// QuestionAnalyzer analyzes one question. It never returns nil.
type QuestionAnalyzer interface {
	AnalyzeQuestion(ctx context.Context, q model.QuestionRecord, desc model.ModelDescriptor, apiKey string, s model.Settings) *model.AnalysisRecord
}

// ModelResolver maps a model id to its descriptor.
type ModelResolver interface {
	Resolve(id string) (model.ModelDescriptor, error)
}

// SettingsSource loads the saved settings.
type SettingsSource interface {
	GetSettings(ctx context.Context) (model.Settings, error)
}

// Controller runs analyses against a page.
type Controller struct {
	page     extract.Page
	analyzer QuestionAnalyzer
	models   ModelResolver
	settings SettingsSource
	prefs    PreferenceStore

	mu       sync.Mutex
	states   map[string]State
	inFlight map[string]bool
	records  map[string]*model.AnalysisRecord
	visible  map[string]bool
	// clears counts Clear calls; an analysis started before a clear
	// discards its result.
	clears uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithPreferences sets the visibility preference store. The default is
// in-memory.
func WithPreferences(p PreferenceStore) Option {
	return func(c *Controller) { c.prefs = p }
}

// NewController creates a Controller for page.
func NewController(page extract.Page, a QuestionAnalyzer, models ModelResolver, settings SettingsSource, opts ...Option) *Controller {
	c := &Controller{
		page:     page,
		analyzer: a,
		models:   models,
		settings: settings,
		states:   map[string]State{},
		inFlight: map[string]bool{},
		records:  map[string]*model.AnalysisRecord{},
		visible:  map[string]bool{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.prefs == nil {
		c.prefs = NewMemoryPreferences()
	}
	return c
}

// Analyze runs one analysis cycle for the question with the given id.
// Configuration problems return a *registry.ConfigurationError before any
// network call; unreadable questions return an *extract.ExtractionError.
// Provider failures do not error: the record is a mock. A Clear while the
// analysis runs drops the result: the record is returned but not displayed.
func (c *Controller) Analyze(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	if c.isInFlight(id) {
		return nil, ErrAnalysisInProgress
	}

	s, err := c.settings.GetSettings(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "session: load settings")
	}
	desc, err := c.models.Resolve(s.SelectedModel)
	if err != nil {
		return nil, err
	}
	apiKey := s.APIKey(desc.Provider)
	if apiKey == "" {
		return nil, registry.NewConfigurationError("No API key found for %s. Add your API key in settings.", desc.DisplayName)
	}

	container := c.container(id)
	if container == nil {
		return nil, &extract.ExtractionError{QuestionID: id, Reason: "question not found on page"}
	}

	gen, ok := c.begin(id)
	if !ok {
		return nil, ErrAnalysisInProgress
	}
	c.page.SetBusy(container, true)
	defer func() {
		c.page.SetBusy(container, false)
		c.finish(id)
	}()

	q := c.page.ReadQuestionFields(container)
	if err := validate(q); err != nil {
		c.setState(id, Idle)
		return nil, err
	}

	log := zap.L().With(zap.String("question_id", id))
	log.Info("session: analyzing question",
		zap.String("type", string(q.Type)),
		zap.String("model", desc.ID),
		zap.Int("options", len(q.Options)),
	)

	rec := c.analyzer.AnalyzeQuestion(ctx, q, desc, apiKey, s)
	visible := c.preferredVisibility(ctx, id)

	c.mu.Lock()
	if c.clears != gen {
		c.mu.Unlock()
		log.Info("session: page cleared during analysis, result dropped")
		return rec, nil
	}
	c.records[id] = rec
	c.visible[id] = visible
	c.states[id] = Displayed
	c.page.Annotate(container, *rec)
	c.page.SetVisible(container, visible)
	c.mu.Unlock()

	if rec.IsMockResponse {
		log.Warn("session: displaying mock result", zap.String("error", rec.ErrorMessage))
	}
	return rec, nil
}

// Result is the outcome of one question in AnalyzeAll.
type Result struct {
	ID     string
	Record *model.AnalysisRecord
	Err    error
}

// AnalyzeAll analyzes every question on the page with at most concurrency
// analyses in flight. Per-question failures are reported in the results;
// a configuration error stops the run and is returned.
func (c *Controller) AnalyzeAll(ctx context.Context, concurrency int) ([]Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	containers := c.page.FindQuestionContainers()
	results := make([]Result, len(containers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, container := range containers {
		id := container.ID()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{ID: id, Err: err}
				return nil
			}
			rec, err := c.Analyze(gctx, id)
			results[i] = Result{ID: id, Record: rec, Err: err}

			var cfgErr *registry.ConfigurationError
			if errors.As(err, &cfgErr) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Toggle flips a question's result visibility and saves the choice. A
// question without a result in this session flips its saved preference,
// which the next analysis applies. It returns the new visibility.
func (c *Controller) Toggle(ctx context.Context, id string) (bool, error) {
	container := c.container(id)
	if container == nil {
		return false, &extract.ExtractionError{QuestionID: id, Reason: "question not found on page"}
	}

	c.mu.Lock()
	displayed := c.states[id] == Displayed
	current := c.visible[id]
	c.mu.Unlock()
	if !displayed {
		current = c.preferredVisibility(ctx, id)
	}
	visible := !current

	c.mu.Lock()
	if c.states[id] == Displayed {
		c.visible[id] = visible
	}
	c.mu.Unlock()
	c.page.SetVisible(container, visible)

	value := "hidden"
	if visible {
		value = "visible"
	}
	if err := c.prefs.Set(ctx, DisplayKey(id), value); err != nil {
		zap.L().Warn("session: unable to store display preference", zap.String("question_id", id), zap.Error(err))
	}
	return visible, nil
}

// ToggleAll hides every result if any is visible, otherwise shows them
// all. With no result displayed in this session it flips the saved
// page-wide flag and applies it to every panel on the page. It returns the
// new visibility.
func (c *Controller) ToggleAll(ctx context.Context) (bool, error) {
	c.mu.Lock()
	var displayed []string
	anyVisible := false
	for id, st := range c.states {
		if st != Displayed {
			continue
		}
		displayed = append(displayed, id)
		if c.visible[id] {
			anyVisible = true
		}
	}
	c.mu.Unlock()

	targets := displayed
	if len(displayed) == 0 {
		anyVisible = true
		if v, ok, err := c.prefs.Get(ctx, AllHiddenKey); err == nil && ok {
			anyVisible = v != "true"
		}
		for _, ct := range c.page.FindQuestionContainers() {
			targets = append(targets, ct.ID())
		}
	}
	visible := !anyVisible

	c.mu.Lock()
	for _, id := range displayed {
		c.visible[id] = visible
	}
	c.mu.Unlock()

	for _, id := range targets {
		if container := c.container(id); container != nil {
			c.page.SetVisible(container, visible)
		}
	}

	value := "false"
	if anyVisible {
		value = "true"
	}
	if err := c.prefs.Set(ctx, AllHiddenKey, value); err != nil {
		zap.L().Warn("session: unable to store display preference", zap.Error(err))
	}
	return visible, nil
}

// Clear removes every annotation, returns all questions to Idle, drops
// their records and deletes the saved per-question preferences.
func (c *Controller) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.clears++
	for id, st := range c.states {
		if st != Analyzing {
			c.states[id] = Idle
		}
	}
	c.records = map[string]*model.AnalysisRecord{}
	c.visible = map[string]bool{}
	c.page.Clear()
	c.mu.Unlock()

	if err := c.prefs.DeletePrefix(ctx, DisplayKeyPrefix); err != nil {
		return eris.Wrap(err, "session: clear preferences")
	}
	return nil
}

// State returns the question's current state.
func (c *Controller) State(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[id]
}

// Record returns the latest analysis for a question.
func (c *Controller) Record(id string) (*model.AnalysisRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Visible reports whether a question's result is shown.
func (c *Controller) Visible(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible[id]
}

func (c *Controller) isInFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[id]
}

// begin sets the in-flight flag and returns the current clear count. It
// reports false if the flag was already set.
func (c *Controller) begin(id string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[id] {
		return 0, false
	}
	c.inFlight[id] = true
	c.states[id] = Analyzing
	return c.clears, true
}

func (c *Controller) finish(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
	if c.states[id] == Analyzing {
		c.states[id] = Idle
	}
}

func (c *Controller) setState(id string, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[id] = s
}

func (c *Controller) container(id string) *extract.Container {
	for _, ct := range c.page.FindQuestionContainers() {
		if ct.ID() == id {
			return ct
		}
	}
	return nil
}

// preferredVisibility applies the saved per-question preference, then the
// page-wide hidden flag. Results are shown by default.
func (c *Controller) preferredVisibility(ctx context.Context, id string) bool {
	if v, ok, err := c.prefs.Get(ctx, DisplayKey(id)); err == nil && ok {
		return v != "hidden"
	}
	if v, ok, err := c.prefs.Get(ctx, AllHiddenKey); err == nil && ok {
		return v != "true"
	}
	return true
}

// validate rejects questions that cannot be analyzed.
func validate(q model.QuestionRecord) error {
	if q.Text == "" {
		return &extract.ExtractionError{QuestionID: q.ID, Reason: "no question text found"}
	}
	if q.Type.IsChoice() && len(q.Options) == 0 {
		return &extract.ExtractionError{QuestionID: q.ID, Reason: "no answer options found"}
	}
	return nil
}
