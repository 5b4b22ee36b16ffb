package ingest

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText writes data to a temp file, runs pdftotext -layout on it and
// returns stdout.
func (p *PdfToText) ExtractText(ctx context.Context, name string, data []byte) (string, error) {
	f, err := os.CreateTemp("", "quizlens-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "ingest: create temp file")
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return "", eris.Wrap(err, "ingest: write temp file")
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrap(err, "ingest: close temp file")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", "-enc", "UTF-8", f.Name(), "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classifyPdfToText(name, stderr.String(), err)
	}
	return stdout.String(), nil
}

// classifyPdfToText maps pdftotext's stderr onto a failure reason.
func classifyPdfToText(name, stderr string, err error) *IngestionError {
	msg := strings.ToLower(stderr)
	reason := ReasonBackend
	switch {
	case strings.Contains(msg, "incorrect password"), strings.Contains(msg, "encrypted"):
		reason = ReasonEncrypted
	case strings.Contains(msg, "syntax error"), strings.Contains(msg, "couldn't read xref"),
		strings.Contains(msg, "may not be a pdf"):
		reason = ReasonCorrupt
	}
	return &IngestionError{
		Name:   name,
		Reason: reason,
		Err:    eris.Wrapf(err, "ingest: pdftotext failed: %s", strings.TrimSpace(stderr)),
	}
}
