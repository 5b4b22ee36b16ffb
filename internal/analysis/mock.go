package analysis

import (
	"fmt"
	"math/rand/v2"

	"github.com/sells-group/quizlens/internal/model"
)

// MockJustification is the placeholder justification of a mock reply.
const MockJustification = "This is a mock response generated when the API call failed. " +
	"The analyzer is functioning but couldn't connect to the LLM API."

// MockSuffix marks the justification of a mock record.
const MockSuffix = " (MOCK RESPONSE - API CALL FAILED)"

// MockResponse builds a reply in q's reply format with a random option and
// a random confidence level.
func MockResponse(q model.QuestionRecord, rng *rand.Rand) string {
	conf := model.AllConfidences()[rng.IntN(3)]

	switch {
	case q.Type.IsChoice():
		answer := 1
		if len(q.Options) > 0 {
			answer = rng.IntN(len(q.Options)) + 1
		}
		label := labelAnswer
		if IsNegated(q.Text) {
			label = labelIncorrectAnswer
		}
		return fmt.Sprintf("%s: Option %d\nCONFIDENCE: %s\nJUSTIFICATION: %s", label, answer, conf, MockJustification)
	case q.Type == model.QuestionEssay:
		return "KEY POINTS:\n- Restate the question in your own words\n- Support each claim with evidence\n" +
			"STRUCTURE: Introduction, body, conclusion\n" +
			"IMPORTANT CONCEPTS:\n- Unavailable\n" +
			"APPROACH: Plan the outline before writing."
	case q.Type == model.QuestionShortAnswer:
		return fmt.Sprintf("ANSWER: Unavailable\nCONFIDENCE: %s\nKEY TERMS: unavailable", conf)
	default:
		return fmt.Sprintf("APPROACH: Read the question carefully.\nKEY POINTS:\n- Unavailable\nCONFIDENCE: %s\nJUSTIFICATION: %s",
			conf, MockJustification)
	}
}
