package model

import (
	"strconv"
	"strings"
)

// Confidence is the model's stated (or derived) certainty.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// AllConfidences lists confidence levels from strongest to weakest.
func AllConfidences() []Confidence {
	return []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}
}

// ParseConfidence maps free text to a Confidence. Unrecognised input is LOW.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToUpper(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// AnalysisRecord is the result of one analysis run for a question.
//
// ProbableAnswers holds option positions in the question's option list
// (zero-based, the prompt numbers them from 1). For negated questions the
// positions denote options judged incorrect.
type AnalysisRecord struct {
	QuestionID        string     `json:"question_id" yaml:"question_id"`
	ProbableAnswers   []int      `json:"probable_answers" yaml:"probable_answers"`
	Confidence        Confidence `json:"confidence" yaml:"confidence"`
	Justification     string     `json:"justification" yaml:"justification"`
	IsNegatedQuestion bool       `json:"is_negated_question" yaml:"is_negated_question"`
	IsMockResponse    bool       `json:"is_mock_response" yaml:"is_mock_response"`
	ErrorMessage      string     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	KeyPoints         []string   `json:"key_points,omitempty" yaml:"key_points,omitempty"`
	Structure         string     `json:"structure,omitempty" yaml:"structure,omitempty"`
	ConceptsToInclude []string   `json:"concepts_to_include,omitempty" yaml:"concepts_to_include,omitempty"`
	Approach          string     `json:"approach,omitempty" yaml:"approach,omitempty"`
	ModelAnswer       string     `json:"model_answer,omitempty" yaml:"model_answer,omitempty"`
}

// NewAnalysisRecord returns a record with defaults applied.
func NewAnalysisRecord(questionID string) AnalysisRecord {
	return AnalysisRecord{
		QuestionID:      questionID,
		ProbableAnswers: []int{},
		Confidence:      ConfidenceLow,
	}
}

// AnswerTexts resolves ProbableAnswers to option text, falling back to
// "Option N" when the position is not in the list.
func (a AnalysisRecord) AnswerTexts(q QuestionRecord) []string {
	out := make([]string, 0, len(a.ProbableAnswers))
	for _, pos := range a.ProbableAnswers {
		if pos >= 0 && pos < len(q.Options) {
			out = append(out, q.Options[pos].Text)
			continue
		}
		out = append(out, "Option "+strconv.Itoa(pos+1))
	}
	return out
}
