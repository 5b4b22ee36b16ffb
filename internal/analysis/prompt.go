// Package analysis turns a QuestionRecord into an LLM prompt and the
// model's free-text reply back into an AnalysisRecord.
package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/quizlens/internal/model"
)

const preamble = "You are an AI that helps students analyze quiz questions."

// singleWordPattern spots questions or hints that demand a one-word answer.
var singleWordPattern = regexp.MustCompile(`(?i)\b(?:one|single|1)[\s-]word\b|\bin a word\b`)

// BuildPrompt renders the prompt for q. The reply format depends on the
// question type and matches what ParseResponse reads back.
func BuildPrompt(q model.QuestionRecord, s model.Settings) string {
	var sb strings.Builder

	ctx := ""
	if s.ContextActive() {
		ctx = s.ContextBlob()
		writeContext(&sb, ctx)
	}

	switch {
	case q.Type.IsChoice():
		writeChoicePrompt(&sb, q)
	case q.Type == model.QuestionEssay:
		writeEssayPrompt(&sb, q)
	case q.Type == model.QuestionShortAnswer:
		writeShortAnswerPrompt(&sb, q, ctx != "")
	default:
		writeOtherPrompt(&sb, q)
	}

	return sb.String()
}

// BuildChatPrompt prefixes a free-form chat message with the active
// context, if any.
func BuildChatPrompt(message string, s model.Settings) string {
	if !s.ContextActive() {
		return message
	}
	var sb strings.Builder
	writeContext(&sb, s.ContextBlob())
	sb.WriteString(message)
	return sb.String()
}

func writeContext(sb *strings.Builder, ctx string) {
	sb.WriteString("IMPORTANT CONTEXT - MANDATORY PRIMARY SOURCE OF TRUTH:\n")
	sb.WriteString("The following material was provided by the student. Treat it as authoritative. ")
	sb.WriteString("Where it conflicts with your own knowledge, the material wins. ")
	sb.WriteString("Base your answer on it first and only fall back to general knowledge when it is silent.\n\n")
	sb.WriteString("--- CONTEXT START ---\n")
	sb.WriteString(ctx)
	sb.WriteString("\n--- CONTEXT END ---\n\n")
}

func writeQuestion(sb *strings.Builder, q model.QuestionRecord) {
	fmt.Fprintf(sb, "Question: %s\n\n", q.Text)
	if q.AdditionalContext != "" {
		fmt.Fprintf(sb, "Additional Context:\n%s\n\n", q.AdditionalContext)
	}
	if q.AnswerHints != "" {
		fmt.Fprintf(sb, "Answer Requirements:\n%s\n\n", q.AnswerHints)
	}
}

func writeChoicePrompt(sb *strings.Builder, q model.QuestionRecord) {
	negated := IsNegated(q.Text)

	sb.WriteString(preamble)
	if negated {
		sb.WriteString(" This question asks for the option(s) that are NOT correct. Identify the incorrect, false or inappropriate option(s) with your confidence level.")
	} else {
		sb.WriteString(" For the following question, identify the most probable correct answer(s) with your confidence level.")
	}
	sb.WriteString(" DO NOT explain the full reasoning process, just provide your answer analysis.\n\n")

	writeQuestion(sb, q)

	sb.WriteString("Options:\n")
	for i, o := range q.Options {
		fmt.Fprintf(sb, "%d. %s\n", i+1, o.Text)
	}
	fmt.Fprintf(sb, "\nQuestion Type: %s\n\n", q.Type)

	sb.WriteString("Your task:\n")
	sb.WriteString("1. Analyze the question and options carefully.\n")
	if negated {
		sb.WriteString("2. Identify which option(s) is/are incorrect, as the question asks.\n")
	} else {
		sb.WriteString("2. Identify which option(s) is/are most likely correct.\n")
	}
	sb.WriteString("3. Assign a confidence level: HIGH, MEDIUM, or LOW.\n")
	sb.WriteString("4. Provide a VERY BRIEF justification (1-2 sentences max).\n\n")

	label := "ANSWER"
	if negated {
		label = "INCORRECT ANSWER"
	}
	sb.WriteString("Format your response as follows:\n")
	fmt.Fprintf(sb, "%s: Option # (for single choice) or Options #,# (for multiple choice)\n", label)
	sb.WriteString("CONFIDENCE: HIGH/MEDIUM/LOW\n")
	sb.WriteString("JUSTIFICATION: Brief justification\n\n")
	sb.WriteString("Response:")
}

func writeEssayPrompt(sb *strings.Builder, q model.QuestionRecord) {
	sb.WriteString(preamble)
	sb.WriteString(" This is an essay question. Do NOT write the essay. Produce an outline the student can write from.\n\n")

	writeQuestion(sb, q)

	sb.WriteString("Format your response as follows:\n")
	sb.WriteString("KEY POINTS:\n- point\n- point\n")
	sb.WriteString("STRUCTURE: Suggested essay structure\n")
	sb.WriteString("IMPORTANT CONCEPTS:\n- concept\n- concept\n")
	sb.WriteString("APPROACH: How to approach the answer\n\n")
	sb.WriteString("Response:")
}

func writeShortAnswerPrompt(sb *strings.Builder, q model.QuestionRecord, hasContext bool) {
	sb.WriteString(preamble)
	sb.WriteString(" This is a short-answer question. Provide a concise model answer.\n\n")

	writeQuestion(sb, q)

	if hasContext && (singleWordPattern.MatchString(q.Text) || singleWordPattern.MatchString(q.AnswerHints)) {
		sb.WriteString("CRITICAL: The answer must be a single word. Find the exact word in the provided context ")
		sb.WriteString("and reproduce it verbatim, with the same spelling and form. Do not paraphrase, translate or add words.\n\n")
	}

	sb.WriteString("Format your response as follows:\n")
	sb.WriteString("ANSWER: The model answer\n")
	sb.WriteString("CONFIDENCE: HIGH/MEDIUM/LOW\n")
	sb.WriteString("KEY TERMS: term, term\n\n")
	sb.WriteString("Response:")
}

func writeOtherPrompt(sb *strings.Builder, q model.QuestionRecord) {
	sb.WriteString(preamble)
	sb.WriteString(" Explain how to approach the following question and what a good answer contains.\n\n")

	writeQuestion(sb, q)

	fmt.Fprintf(sb, "Question Type: %s\n\n", q.Type)
	sb.WriteString("Format your response as follows:\n")
	sb.WriteString("APPROACH: How to answer\n")
	sb.WriteString("KEY POINTS:\n- point\n- point\n")
	sb.WriteString("CONFIDENCE: HIGH/MEDIUM/LOW\n")
	sb.WriteString("JUSTIFICATION: Brief justification\n\n")
	sb.WriteString("Response:")
}
