package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/quizlens/internal/model"
)

// Section labels the prompts ask the model to use.
const (
	labelIncorrectAnswer = "INCORRECT ANSWER"
	labelAnswer          = "ANSWER"
	labelConfidence      = "CONFIDENCE"
	labelJustification   = "JUSTIFICATION"
	labelKeyPoints       = "KEY POINTS"
	labelStructure       = "STRUCTURE"
	labelConcepts        = "IMPORTANT CONCEPTS"
	labelApproach        = "APPROACH"
	labelKeyTerms        = "KEY TERMS"
)

// sectionPattern matches a label followed by a colon. At the start of a
// line the label may be any case, wrapped in markdown bold or preceded by a
// heading marker. Elsewhere in a line only the upper-case form counts, so
// prose such as "the answer: ..." inside a justification is left alone.
var sectionPattern = regexp.MustCompile(`(?m)(?:` +
	`^[ \t]*(?:#+[ \t]*)?\*{0,2}[ \t]*(?i:(` + labelAlternation + `))` +
	`|\*{0,2}\b(` + labelAlternationUpper + `)\b` +
	`)[ \t]*\*{0,2}[ \t]*:[ \t]*\*{0,2}`)

// The alternations list "incorrect answer" ahead of "answer" so the longer
// label wins at the same position.
const (
	labelAlternation      = `incorrect[ \t]+answer|answer|confidence|justification|key[ \t]+points|structure|important[ \t]+concepts|approach|key[ \t]+terms`
	labelAlternationUpper = `INCORRECT[ \t]+ANSWER|ANSWER|CONFIDENCE|JUSTIFICATION|KEY[ \t]+POINTS|STRUCTURE|IMPORTANT[ \t]+CONCEPTS|APPROACH|KEY[ \t]+TERMS`
)

var (
	integerPattern    = regexp.MustCompile(`\d+`)
	confidencePattern = regexp.MustCompile(`(?i)\b(HIGH|MEDIUM|LOW)\b`)
	bulletPattern     = regexp.MustCompile(`^(?:[-*•+]|\d+[.)])\s*`)
	spacePattern      = regexp.MustCompile(`[ \t]+`)
)

// sections splits raw into labelled sections. Each runs to the next known
// label or the end of the text; the first occurrence of a label wins.
func sections(raw string) map[string]string {
	out := map[string]string{}
	idx := sectionPattern.FindAllStringSubmatchIndex(raw, -1)
	for i, m := range idx {
		lo, hi := m[2], m[3]
		if lo < 0 {
			lo, hi = m[4], m[5]
		}
		label := strings.ToUpper(spacePattern.ReplaceAllString(raw[lo:hi], " "))
		end := len(raw)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		if _, seen := out[label]; seen {
			continue
		}
		out[label] = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw[m[1]:end]), "*"))
	}
	return out
}

// ParseResponse reads a model reply into an AnalysisRecord for q. It never
// fails; fields it cannot read keep their defaults.
func ParseResponse(raw string, q model.QuestionRecord) model.AnalysisRecord {
	rec := model.NewAnalysisRecord(q.ID)
	sec := sections(raw)

	switch {
	case q.Type.IsChoice():
		parseChoice(&rec, sec, q)
	case q.Type == model.QuestionEssay:
		parseEssay(&rec, sec)
	case q.Type == model.QuestionShortAnswer:
		parseShortAnswer(&rec, sec)
	default:
		parseOther(&rec, sec)
	}
	return rec
}

func parseChoice(rec *model.AnalysisRecord, sec map[string]string, q model.QuestionRecord) {
	rec.IsNegatedQuestion = IsNegated(q.Text)

	answer, ok := sec[labelAnswer]
	if rec.IsNegatedQuestion {
		if v, found := sec[labelIncorrectAnswer]; found {
			answer, ok = v, true
		}
	}
	if ok {
		rec.ProbableAnswers = answerPositions(firstLine(answer), len(q.Options))
	}

	rec.Confidence = readConfidence(sec[labelConfidence])
	rec.Justification = joinLines(sec[labelJustification])
}

// answerPositions reads 1-based option numbers from s and returns the
// in-range ones as 0-based positions, in order, duplicates kept.
func answerPositions(s string, n int) []int {
	parts := []string{s}
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	}

	out := []int{}
	for _, part := range parts {
		m := integerPattern.FindString(part)
		if m == "" {
			continue
		}
		v, err := strconv.Atoi(m)
		if err != nil || v < 1 || v > n {
			continue
		}
		out = append(out, v-1)
	}
	return out
}

func parseEssay(rec *model.AnalysisRecord, sec map[string]string) {
	rec.KeyPoints = listLines(sec[labelKeyPoints])
	rec.Structure = joinLines(sec[labelStructure])
	rec.ConceptsToInclude = listItems(sec[labelConcepts])
	rec.Approach = joinLines(sec[labelApproach])
	rec.Confidence = completeness(rec)
}

func parseShortAnswer(rec *model.AnalysisRecord, sec map[string]string) {
	rec.ModelAnswer = joinLines(sec[labelAnswer])
	rec.Confidence = readConfidence(sec[labelConfidence])
	rec.ConceptsToInclude = listItems(sec[labelKeyTerms])
}

func parseOther(rec *model.AnalysisRecord, sec map[string]string) {
	rec.Approach = joinLines(sec[labelApproach])
	rec.KeyPoints = listLines(sec[labelKeyPoints])
	rec.Justification = joinLines(sec[labelJustification])
	if confidencePattern.MatchString(sec[labelConfidence]) {
		rec.Confidence = readConfidence(sec[labelConfidence])
		return
	}
	rec.Confidence = completeness(rec)
}

// completeness scores an outline: HIGH needs 3+ points, a structure and a
// concept; any points give MEDIUM.
func completeness(rec *model.AnalysisRecord) model.Confidence {
	switch {
	case len(rec.KeyPoints) >= 3 && rec.Structure != "" && len(rec.ConceptsToInclude) >= 1:
		return model.ConfidenceHigh
	case len(rec.KeyPoints) > 0:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func readConfidence(s string) model.Confidence {
	return model.ParseConfidence(confidencePattern.FindString(s))
}

// listLines returns the non-empty lines of s with bullet markers removed.
func listLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(bulletPattern.ReplaceAllString(line, ""))
		line = strings.TrimSpace(strings.Trim(line, "*"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// listItems is listLines, except a single line is split on commas.
func listItems(s string) []string {
	lines := listLines(s)
	if len(lines) != 1 || !strings.Contains(lines[0], ",") {
		return lines
	}
	var out []string
	for _, item := range strings.Split(lines[0], ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// joinLines folds a multi-line section into one line.
func joinLines(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
