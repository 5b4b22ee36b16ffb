package extract

import (
	"fmt"
	"html"
	"strings"

	"github.com/sells-group/quizlens/internal/model"
)

const (
	resultClass    = "quizlens-result"
	indicatorClass = "quizlens-indicator"
	busyAttr       = "data-quizlens-state"
)

// Annotate marks the chosen options (choice types only) and renders the
// result panel for c, replacing any earlier annotation. It uses the
// options from the last ReadQuestionFields on c.
func (p *HTMLPage) Annotate(c *Container, rec model.AnalysisRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.sel.Find("." + indicatorClass).Remove()
	c.sel.Find("." + resultClass).Remove()

	if c.typ.IsChoice() {
		for _, pos := range rec.ProbableAnswers {
			if pos < 0 || pos >= len(c.options) {
				continue
			}
			el, ok := c.optionEls[c.options[pos].Index]
			if !ok {
				continue
			}
			el.AppendHtml(indicatorHTML(rec))
		}
	}

	panel := resultHTML(c, rec)
	if info := find(c.sel, ".info").First(); info.Length() > 0 {
		info.AfterHtml(panel)
	} else {
		c.sel.PrependHtml(panel)
	}
}

// SetBusy marks c as being analysed.
func (p *HTMLPage) SetBusy(c *Container, busy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if busy {
		c.sel.SetAttr(busyAttr, "analyzing")
		return
	}
	c.sel.RemoveAttr(busyAttr)
}

// SetVisible shows or hides c's result panel.
func (p *HTMLPage) SetVisible(c *Container, visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	panel := c.sel.Find("." + resultClass)
	if visible {
		panel.RemoveClass("hidden").SetAttr("style", "display:block")
		return
	}
	panel.AddClass("hidden").SetAttr("style", "display:none")
}

// Clear removes every indicator, result panel and busy marker.
func (p *HTMLPage) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.doc.Find("." + indicatorClass).Remove()
	p.doc.Find("." + resultClass).Remove()
	p.doc.Find("[" + busyAttr + "]").RemoveAttr(busyAttr)
	for _, c := range p.containers {
		c.optionEls = nil
		c.options = nil
	}
}

func confidenceClass(conf model.Confidence) string {
	return "quizlens-" + strings.ToLower(string(conf)) + "-confidence"
}

func indicatorHTML(rec model.AnalysisRecord) string {
	icon := "?"
	switch rec.Confidence {
	case model.ConfidenceHigh:
		icon = "✓"
	case model.ConfidenceMedium:
		icon = "!"
	}
	if rec.IsNegatedQuestion {
		icon = "✗"
	}
	tooltip := fmt.Sprintf("Confidence: %s\n%s", rec.Confidence, rec.Justification)
	return fmt.Sprintf(`<span class="%s %s">%s<span class="quizlens-tooltip">%s</span></span>`,
		indicatorClass, confidenceClass(rec.Confidence), icon, html.EscapeString(tooltip))
}

func resultHTML(c *Container, rec model.AnalysisRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="%s" id="quizlens-result-%s" data-question-id="%s" style="display:block">`,
		resultClass, html.EscapeString(c.id), html.EscapeString(c.id))

	if rec.IsMockResponse {
		fmt.Fprintf(&b, `<span class="quizlens-mock-warning">API connection failed: %s. Using mock data for demonstration.</span>`,
			html.EscapeString(rec.ErrorMessage))
	}

	switch {
	case c.typ.IsChoice():
		heading := "Most Probable Answer:"
		if rec.IsNegatedQuestion {
			heading = "Most Probable Incorrect Answer:"
		}
		answer := "No clear answer identified"
		q := model.QuestionRecord{Options: c.options}
		if texts := rec.AnswerTexts(q); len(texts) > 0 {
			answer = strings.Join(texts, ", ")
		}
		fmt.Fprintf(&b, `<strong class="quizlens-heading">%s</strong>`, heading)
		fmt.Fprintf(&b, `<span class="quizlens-answer %s">%s</span>`, confidenceClass(rec.Confidence), html.EscapeString(answer))
	case c.typ == model.QuestionShortAnswer:
		b.WriteString(`<strong class="quizlens-heading">Suggested Answer:</strong>`)
		fmt.Fprintf(&b, `<span class="quizlens-answer %s">%s</span>`, confidenceClass(rec.Confidence), html.EscapeString(rec.ModelAnswer))
		writeList(&b, "Key Terms", rec.ConceptsToInclude)
	default:
		b.WriteString(`<strong class="quizlens-heading">Answer Outline:</strong>`)
		writeList(&b, "Key Points", rec.KeyPoints)
		writeField(&b, "Structure", rec.Structure)
		writeList(&b, "Important Concepts", rec.ConceptsToInclude)
		writeField(&b, "Approach", rec.Approach)
	}

	fmt.Fprintf(&b, `<span class="quizlens-confidence">Confidence: %s</span>`, rec.Confidence)
	if rec.Justification != "" {
		fmt.Fprintf(&b, `<span class="quizlens-justification">Justification: %s</span>`, html.EscapeString(rec.Justification))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, `<span class="quizlens-field"><strong>%s:</strong> %s</span>`, label, html.EscapeString(value))
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, `<span class="quizlens-field"><strong>%s:</strong><ul class="quizlens-list">`, label)
	for _, it := range items {
		fmt.Fprintf(b, `<li>%s</li>`, html.EscapeString(it))
	}
	b.WriteString(`</ul></span>`)
}
