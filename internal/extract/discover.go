package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	quizFormSelector   = `form#responseform, form[action*="quiz"], form[action*="attempt.php"]`
	choiceInputs       = `input[type="radio"], input[type="checkbox"]`
	stemPresence       = `.qtext, .text, .content p, p, .question-text`
	affordancePresence = `.answer, .ablock, input[type="radio"], input[type="checkbox"], input[type="text"], select, textarea`
)

// fragmentSelectors match parts of a question; discovery climbs from them
// to the enclosing question container.
var fragmentSelectors = []string{
	".questionflagsaveform .qn_buttons",
	".questionflagpostdata",
	".formulation",
	".content .formulation",
	`div[id^="q"][id$="question"]`,
	".que .content",
	".question-text",
	".question-container",
	`[data-region="question"]`,
}

// strategy is one discovery approach. It returns nil when it finds nothing.
type strategy struct {
	name string
	run  func(doc *goquery.Document) []*goquery.Selection
}

var strategies = []strategy{
	{"que", byQueClass},
	{"quiz_form", byQuizForm},
	{"fragment", byFragments},
	{"text_near_inputs", byTextNearInputs},
}

// discover runs the strategies in order and keeps the first non-empty
// result, deduplicated and filtered to real questions. When the filter
// rejects everything the unfiltered set is returned.
func discover(doc *goquery.Document) []*goquery.Selection {
	var found []*goquery.Selection
	for _, s := range strategies {
		found = s.run(doc)
		if len(found) > 0 {
			zap.L().Debug("extract: questions found", zap.String("strategy", s.name), zap.Int("count", len(found)))
			break
		}
	}

	found = dedupe(found)

	var valid []*goquery.Selection
	for _, sel := range found {
		if isQuestion(sel) {
			valid = append(valid, sel)
		}
	}
	if len(valid) == 0 {
		return found
	}
	return valid
}

func byQueClass(doc *goquery.Document) []*goquery.Selection {
	return each(find(doc.Selection, ".que"))
}

func byQuizForm(doc *goquery.Document) []*goquery.Selection {
	form := doc.Find(quizFormSelector).First()
	if form.Length() == 0 {
		return nil
	}
	return each(find(form, `div[id^="question"]`))
}

func byFragments(doc *goquery.Document) []*goquery.Selection {
	for _, selector := range fragmentSelectors {
		els := each(find(doc.Selection, selector))
		if len(els) == 0 {
			continue
		}
		out := make([]*goquery.Selection, 0, len(els))
		for _, el := range els {
			out = append(out, climbToQuestion(el))
		}
		return out
	}
	return nil
}

// climbToQuestion walks up to 5 ancestors looking for a question
// container, falling back to the nearest div.
func climbToQuestion(el *goquery.Selection) *goquery.Selection {
	cur := el
	for i := 0; i < 5; i++ {
		parent := cur.Parent()
		if parent.Length() == 0 || parent.Get(0).Type != html.ElementNode {
			break
		}
		cur = parent
		id, _ := cur.Attr("id")
		class, _ := cur.Attr("class")
		if cur.HasClass("que") || strings.Contains(id, "question") || strings.Contains(class, "question") {
			return cur
		}
	}
	if div := el.Closest("div"); div.Length() > 0 {
		return div
	}
	return el
}

func byTextNearInputs(doc *goquery.Document) []*goquery.Selection {
	var out []*goquery.Selection
	for _, textEl := range each(find(doc.Selection, "p, div.text, .content p")) {
		cur := textEl
		for i := 0; i < 3; i++ {
			parent := cur.Parent()
			if parent.Length() == 0 || parent.Get(0).Type != html.ElementNode {
				break
			}
			cur = parent
			if find(cur, choiceInputs).Length() > 0 {
				out = append(out, cur)
				break
			}
		}
	}
	return out
}

// isQuestion reports whether sel has both stem text and an answer
// affordance.
func isQuestion(sel *goquery.Selection) bool {
	return find(sel, stemPresence).Length() > 0 && find(sel, affordancePresence).Length() > 0
}

func each(s *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, s.Length())
	s.Each(func(_ int, el *goquery.Selection) {
		out = append(out, el)
	})
	return out
}

func dedupe(in []*goquery.Selection) []*goquery.Selection {
	seen := make(map[*html.Node]bool, len(in))
	out := make([]*goquery.Selection, 0, len(in))
	for _, sel := range in {
		n := sel.Get(0)
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, sel)
	}
	return out
}
