package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/sells-group/quizlens/internal/model"
)

var stemSelectors = []string{
	".qtext",
	".question-text",
	".content p",
	"p",
	".text",
	".formulation",
	".stem",
	"h4 + div",
	`[data-region="question-text"]`,
}

var optionSelectors = []string{
	".answer div.r",
	".answer label",
	`.answer div[id^="q"]`,
	".ablock .answer div",
	".answernumber",
	`.answer input[type="radio"]`,
	`.answer input[type="checkbox"]`,
	`input[type="radio"]`,
	`input[type="checkbox"]`,
	".option",
	".choice",
	"label",
	`div > input[type="radio"] + label`,
	`div > input[type="checkbox"] + label`,
}

var (
	letterEnumerator = regexp.MustCompile(`(?i)^\s*[a-z]\.\s+`)
	numberEnumerator = regexp.MustCompile(`^\s*\d+\.\s+`)
)

// stemText finds the question prompt: the first stem selector with text,
// then the container's direct text nodes, then its first 200 characters.
func stemText(c *goquery.Selection) string {
	for _, selector := range stemSelectors {
		if t := text(find(c, selector).First()); t != "" {
			return t
		}
	}

	var parts []string
	for n := c.Get(0).FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.TextNode {
			if t := normalize(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	return truncateRunes(text(c), 200)
}

// classify determines the question type. Class hints are checked first,
// then input signals; the first match wins.
func classify(c *goquery.Selection) model.QuestionType {
	radios := find(c, `input[type="radio"]`)
	checkboxes := find(c, `input[type="checkbox"]`)

	switch {
	case c.HasClass("multichoice"):
		// Moodle multichoice questions allowing several answers use checkboxes.
		if checkboxes.Length() > 0 && radios.Length() == 0 {
			return model.QuestionMultipleChoice
		}
		return model.QuestionSingleChoice
	case c.HasClass("multichoiceset"):
		return model.QuestionMultipleChoice
	case c.HasClass("truefalse"):
		return model.QuestionTrueFalse
	case c.HasClass("match"):
		return model.QuestionMatching
	case c.HasClass("essay"):
		return model.QuestionEssay
	case c.HasClass("shortanswer"):
		return model.QuestionShortAnswer
	}

	boolPair := isBooleanPair(radios)
	switch {
	case radios.Length() > 0 && !boolPair:
		return model.QuestionSingleChoice
	case checkboxes.Length() > 0:
		return model.QuestionMultipleChoice
	case boolPair:
		return model.QuestionTrueFalse
	case find(c, "select").Length() > 0:
		return model.QuestionMatching
	case find(c, "textarea").Length() > 0:
		return model.QuestionEssay
	case find(c, `input[type="text"]`).Length() > 0:
		return model.QuestionShortAnswer
	}
	return model.QuestionUnknown
}

// isBooleanPair reports whether radios are exactly two inputs valued "1"
// and "0".
func isBooleanPair(radios *goquery.Selection) bool {
	if radios.Length() != 2 {
		return false
	}
	a, _ := radios.Eq(0).Attr("value")
	b, _ := radios.Eq(1).Attr("value")
	return (a == "1" && b == "0") || (a == "0" && b == "1")
}

// readOptions takes the first option selector matching at least two
// elements and resolves each to an Option. Options without text are
// dropped; Index keeps the document-order position.
func readOptions(doc *goquery.Document, c *goquery.Selection) ([]model.Option, map[int]*goquery.Selection) {
	var els []*goquery.Selection
	for _, selector := range optionSelectors {
		els = each(find(c, selector))
		if len(els) >= 2 {
			break
		}
	}
	if len(els) < 2 {
		return nil, map[int]*goquery.Selection{}
	}

	opts := make([]model.Option, 0, len(els))
	byIndex := make(map[int]*goquery.Selection, len(els))
	for i, el := range els {
		t := cleanOptionText(optionLabel(doc, el))
		if t == "" {
			continue
		}
		opts = append(opts, model.Option{Index: i, Text: t, Value: optionValue(doc, c, el, i)})
		byIndex[i] = el
	}
	return opts, byIndex
}

// optionLabel resolves an option element's visible text.
func optionLabel(doc *goquery.Document, el *goquery.Selection) string {
	var label *goquery.Selection

	switch goquery.NodeName(el) {
	case "label":
		label = el
	case "input":
		if id, ok := el.Attr("id"); ok && id != "" {
			if l := find(doc.Selection, `label[for="`+cssEscape(id)+`"]`).First(); l.Length() > 0 {
				label = l
			}
		}
		if label == nil {
			if l := el.Closest("label"); l.Length() > 0 {
				label = l
			} else if next := el.Next(); next.Length() > 0 && goquery.NodeName(next) == "label" {
				label = next
			}
		}
	default:
		if l := find(el, "label").First(); l.Length() > 0 {
			label = l
		}
	}

	if label != nil {
		return text(label)
	}
	if content := find(el, ".text, .content, p, div").First(); content.Length() > 0 {
		return text(content)
	}
	return text(el)
}

// optionValue reads the value of the option's input: the element itself,
// an embedded input, the input a label points at, or an input whose id
// ends with the option position.
func optionValue(doc *goquery.Document, c, el *goquery.Selection, index int) string {
	input := el
	if goquery.NodeName(el) != "input" {
		input = find(el, "input").First()
		if input.Length() == 0 && goquery.NodeName(el) == "label" {
			if target := el.AttrOr("for", ""); target != "" {
				input = find(doc.Selection, `input[id="`+cssEscape(target)+`"]`).First()
			}
		}
		if input.Length() == 0 {
			input = find(c, `input[id$="`+strconv.Itoa(index)+`"]`).First()
		}
	}
	v, _ := input.Attr("value")
	return v
}

func cleanOptionText(s string) string {
	s = letterEnumerator.ReplaceAllString(s, "")
	s = numberEnumerator.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

var (
	limitPattern  = regexp.MustCompile(`(?i)\b(?:(?:maximum|minimum|max\.?|min\.?|at least|at most|no more than|up to|between|approximately|about)\s+)?\d+(?:\s*(?:-|–|to|and)\s*\d+)?\s*(?:words?|characters?|chars)\b`)
	formatPattern = regexp.MustCompile(`(?i)\b(?:accepted|allowed|supported|acceptable)\s+(?:answer\s+)?(?:formats?|file types?|units?)\b[^.\n]*`)
)

const hintSelectors = `.hint, .help, .instructions, .qhint, .form-text, .answer-hint, [data-region="hint"], .accepted-formats`

// answerHints gathers word limits, inline hints, the input placeholder and
// accepted-format notices for written questions.
func answerHints(c *goquery.Selection) string {
	var hints []string
	seen := map[string]bool{}
	add := func(s string) {
		s = normalize(s)
		if s == "" || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		hints = append(hints, s)
	}

	all := text(c)
	for _, m := range limitPattern.FindAllString(all, -1) {
		add("Limit: " + m)
	}
	find(c, hintSelectors).Each(func(_ int, el *goquery.Selection) {
		add(text(el))
	})
	if ph, ok := find(c, `textarea[placeholder], input[type="text"][placeholder]`).First().Attr("placeholder"); ok {
		add("Placeholder: " + ph)
	}
	for _, m := range formatPattern.FindAllString(all, -1) {
		add(m)
	}

	return strings.Join(hints, "\n")
}

// additionalContext collects image alt text, tables and preformatted
// blocks from the stem, plus Moodle .prompt text.
func additionalContext(c *goquery.Selection) string {
	scope := find(c, ".qtext, .question-text, .formulation").First()
	if scope.Length() == 0 {
		scope = c
	}

	var parts []string
	find(scope, "img[alt]").Each(func(_ int, img *goquery.Selection) {
		if alt := normalize(img.AttrOr("alt", "")); alt != "" {
			parts = append(parts, "Image: "+alt)
		}
	})
	find(scope, "table").Each(func(_ int, table *goquery.Selection) {
		var rows []string
		find(table, "tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			find(tr, "th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, text(cell))
			})
			if len(cells) > 0 {
				rows = append(rows, strings.Join(cells, " | "))
			}
		})
		if len(rows) > 0 {
			parts = append(parts, "Table:\n"+strings.Join(rows, "\n"))
		}
	})
	find(scope, "pre").Each(func(_ int, pre *goquery.Selection) {
		if t := strings.TrimSpace(rawText(pre)); t != "" {
			parts = append(parts, "Code:\n"+t)
		}
	})
	find(c, ".prompt").Each(func(_ int, p *goquery.Selection) {
		if t := text(p); t != "" {
			parts = append(parts, "Prompt: "+t)
		}
	})

	return strings.Join(parts, "\n")
}

// cssEscape quotes characters that would end an attribute selector value.
func cssEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(s)
}
