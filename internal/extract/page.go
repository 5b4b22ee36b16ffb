// Package extract reads quiz questions out of LMS page markup and writes
// analysis results back into it.
package extract

import (
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/quizlens/internal/model"
)

// Page is the narrow adapter the session controller drives. Discovery,
// field reading and annotation all go through it.
type Page interface {
	FindQuestionContainers() []*Container
	ReadQuestionFields(c *Container) model.QuestionRecord
	Annotate(c *Container, rec model.AnalysisRecord)
	SetBusy(c *Container, busy bool)
	SetVisible(c *Container, visible bool)
	Clear()
	HTML() (string, error)
}

// Container is one discovered question element.
type Container struct {
	id  string
	sel *goquery.Selection

	// Option elements from the last ReadQuestionFields, by Option.Index.
	optionEls map[int]*goquery.Selection
	// Options from the last ReadQuestionFields, in prompt order.
	options []model.Option
	typ     model.QuestionType
}

// ID returns the stable question id assigned at discovery.
func (c *Container) ID() string { return c.id }

// HTMLPage implements Page over a parsed HTML document.
type HTMLPage struct {
	mu         sync.Mutex
	doc        *goquery.Document
	containers []*Container
	discovered bool
}

var _ Page = (*HTMLPage)(nil)

// NewHTMLPage parses r as an HTML document.
func NewHTMLPage(r io.Reader) (*HTMLPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	return &HTMLPage{doc: doc}, nil
}

// ParseHTML is NewHTMLPage over a string.
func ParseHTML(s string) (*HTMLPage, error) {
	return NewHTMLPage(strings.NewReader(s))
}

// FindQuestionContainers runs discovery once and returns the same
// containers, with the same ids, on every later call.
func (p *HTMLPage) FindQuestionContainers() []*Container {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.discovered {
		for _, sel := range discover(p.doc) {
			p.containers = append(p.containers, &Container{id: containerID(sel), sel: sel})
		}
		p.discovered = true
	}

	out := make([]*Container, len(p.containers))
	copy(out, p.containers)
	return out
}

// Container looks up a discovered container by id.
func (p *HTMLPage) Container(id string) (*Container, bool) {
	for _, c := range p.FindQuestionContainers() {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

// ReadQuestionFields extracts a QuestionRecord from c's current markup.
func (p *HTMLPage) ReadQuestionFields(c *Container) model.QuestionRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	q := model.QuestionRecord{
		ID:   c.id,
		Text: stemText(c.sel),
		Type: classify(c.sel),
	}

	c.optionEls = map[int]*goquery.Selection{}
	if q.Type.IsChoice() {
		opts, els := readOptions(p.doc, c.sel)
		q.Options = opts
		c.optionEls = els
	}
	if q.Type.IsWritten() {
		q.AnswerHints = answerHints(c.sel)
	}
	q.AdditionalContext = additionalContext(c.sel)

	c.options = q.Options
	c.typ = q.Type
	return q
}

// HTML renders the current document, annotations included.
func (p *HTMLPage) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out, err := p.doc.Html()
	if err != nil {
		return "", eris.Wrap(err, "extract: render html")
	}
	return out, nil
}

// containerID returns the element id, or q_ plus 7 random hex characters.
func containerID(sel *goquery.Selection) string {
	if id, ok := sel.Attr("id"); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return "q_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
}
