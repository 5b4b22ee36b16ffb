package model

// QuestionType classifies how a quiz question is answered.
type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single-choice"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionMatching       QuestionType = "matching"
	QuestionEssay          QuestionType = "essay"
	QuestionShortAnswer    QuestionType = "short-answer"
	QuestionUnknown        QuestionType = "unknown"
)

// IsChoice reports whether answers are picked from a discovered option list.
// Only these types carry options and need them to be analysed.
func (t QuestionType) IsChoice() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultipleChoice, QuestionTrueFalse:
		return true
	default:
		return false
	}
}

// IsWritten reports whether the answer is free text typed by the student.
func (t QuestionType) IsWritten() bool {
	return t == QuestionEssay || t == QuestionShortAnswer
}

// Option is one answer choice. Index is the zero-based document-order
// position and is the option's only identity; it survives dropped siblings.
type Option struct {
	Index int    `json:"index" yaml:"index"`
	Text  string `json:"text" yaml:"text"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// QuestionRecord is the structured form of one question as read from the page.
// It is derived fresh on every analysis and never cached. ID is the element
// handle: the page resolves it back to the live container.
type QuestionRecord struct {
	ID                string       `json:"id" yaml:"id"`
	Text              string       `json:"text" yaml:"text"`
	Type              QuestionType `json:"type" yaml:"type"`
	Options           []Option     `json:"options,omitempty" yaml:"options,omitempty"`
	AdditionalContext string       `json:"additional_context,omitempty" yaml:"additional_context,omitempty"`
	AnswerHints       string       `json:"answer_hints,omitempty" yaml:"answer_hints,omitempty"`
}

// OptionByIndex returns the option with the given document-order index.
func (q QuestionRecord) OptionByIndex(idx int) (Option, bool) {
	for _, o := range q.Options {
		if o.Index == idx {
			return o, true
		}
	}
	return Option{}, false
}
