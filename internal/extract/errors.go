package extract

import "fmt"

// ExtractionError reports a question that cannot be analysed: no stem
// text, or a choice question with no readable options.
type ExtractionError struct {
	QuestionID string
	Reason     string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: question %s: %s", e.QuestionID, e.Reason)
}
