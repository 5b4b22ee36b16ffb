package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/quizlens/internal/model"
)

// questionReport pairs a question with its analysis for output.
type questionReport struct {
	Question model.QuestionRecord  `json:"question" yaml:"question"`
	Analysis *model.AnalysisRecord `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Answers  []string              `json:"answers,omitempty" yaml:"answers,omitempty"`
	Error    string                `json:"error,omitempty" yaml:"error,omitempty"`
}

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(78)
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true)
	mockStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5A50A")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E01B24"))

	confidenceColors = map[model.Confidence]lipgloss.Color{
		model.ConfidenceHigh:   lipgloss.Color("#2EC27E"),
		model.ConfidenceMedium: lipgloss.Color("#E5A50A"),
		model.ConfidenceLow:    lipgloss.Color("#E01B24"),
	}
)

// writeReports renders reports in the given format: text, json or yaml.
func writeReports(w io.Writer, format string, reports []questionReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(reports), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	case "text", "":
		for _, r := range reports {
			if _, err := fmt.Fprintln(w, renderPanel(r)); err != nil {
				return eris.Wrap(err, "write report")
			}
		}
		return nil
	default:
		return eris.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

// renderPanel draws one question's result, bordered in its confidence colour.
func renderPanel(r questionReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("[%s] %s", r.Question.ID, truncate(r.Question.Text, 200))))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("type: " + string(r.Question.Type)))

	if r.Error != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(r.Error))
		return panelStyle.BorderForeground(confidenceColors[model.ConfidenceLow]).Render(b.String())
	}

	rec := r.Analysis
	if rec == nil {
		return panelStyle.Render(b.String())
	}
	color := confidenceColors[rec.Confidence]

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(label+": ") + value)
	}
	list := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(label + ":"))
		for _, it := range items {
			b.WriteString("\n  - " + it)
		}
	}

	answerLabel := "Answer"
	if rec.IsNegatedQuestion {
		answerLabel = "Incorrect option"
	}
	if r.Question.Type.IsChoice() {
		answer := strings.Join(r.Answers, "; ")
		if answer == "" {
			answer = "no answer identified"
		}
		field(answerLabel, answer)
	}
	field("Model answer", rec.ModelAnswer)
	field("Structure", rec.Structure)
	field("Approach", rec.Approach)
	list("Key points", rec.KeyPoints)
	list("Concepts", rec.ConceptsToInclude)
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Confidence: ") + lipgloss.NewStyle().Foreground(color).Bold(true).Render(string(rec.Confidence)))
	field("Why", rec.Justification)
	if rec.IsMockResponse {
		b.WriteString("\n")
		b.WriteString(mockStyle.Render("Mock result: " + rec.ErrorMessage))
	}
	return panelStyle.BorderForeground(color).Render(b.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
