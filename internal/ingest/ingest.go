// Package ingest extracts plain text from uploaded context documents.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/config"
)

// Failure reasons.
const (
	ReasonEncrypted   = "encrypted"
	ReasonCorrupt     = "corrupt"
	ReasonEmpty       = "empty"
	ReasonUnsupported = "unsupported"
	ReasonBackend     = "backend"
)

// IngestionError reports why a document could not be read.
type IngestionError struct {
	Name   string
	Reason string
	Err    error
}

func (e *IngestionError) Error() string {
	msg := fmt.Sprintf("ingest: %s: %s", e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Extractor extracts text content from a document's bytes.
type Extractor interface {
	ExtractText(ctx context.Context, name string, data []byte) (string, error)
}

// Router picks a backend by file extension. PDFs go to the configured
// PDF backend; .txt and .md files are decoded directly.
type Router struct {
	pdf      Extractor
	text     Extractor
	maxBytes int64
}

// NewExtractor creates a Router based on config.
func NewExtractor(cfg config.IngestConfig) (*Router, error) {
	var pdf Extractor
	switch cfg.Provider {
	case "local", "":
		pdf = NewPdfToText(cfg.PdfToTextPath)
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ingest: mistral provider requires mistral_api_key")
		}
		pdf = NewMistralOCR(cfg.MistralKey, cfg.MistralModel)
	default:
		return nil, eris.Errorf("ingest: unknown provider %q", cfg.Provider)
	}
	return &Router{pdf: pdf, text: PlainText{}, maxBytes: cfg.MaxBytes}, nil
}

// ExtractText validates the document and dispatches it to a backend.
// Every failure is an *IngestionError.
func (r *Router) ExtractText(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &IngestionError{Name: name, Reason: ReasonEmpty}
	}
	if r.maxBytes > 0 && int64(len(data)) > r.maxBytes {
		return "", &IngestionError{Name: name, Reason: ReasonUnsupported,
			Err: eris.Errorf("document is %d bytes, limit is %d", len(data), r.maxBytes)}
	}

	var (
		backend Extractor
		label   string
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		if err := sniffPDF(data); err != nil {
			err.Name = name
			return "", err
		}
		backend, label = r.pdf, "pdf"
	case ".txt", ".md", ".markdown":
		backend, label = r.text, "text"
	default:
		return "", &IngestionError{Name: name, Reason: ReasonUnsupported,
			Err: eris.New("only .pdf, .txt and .md files are supported")}
	}

	text, err := backend.ExtractText(ctx, name, data)
	if err != nil {
		var ie *IngestionError
		if errors.As(err, &ie) {
			return "", err
		}
		return "", &IngestionError{Name: name, Reason: ReasonBackend, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &IngestionError{Name: name, Reason: ReasonEmpty}
	}
	zap.L().Info("ingest: extracted document text",
		zap.String("name", name),
		zap.String("backend", label),
		zap.Int("bytes", len(data)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

// sniffPDF rejects data without a PDF header and encrypted documents.
func sniffPDF(data []byte) *IngestionError {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return &IngestionError{Reason: ReasonCorrupt, Err: eris.New("missing PDF header")}
	}
	if bytes.Contains(data, []byte("/Encrypt")) {
		return &IngestionError{Reason: ReasonEncrypted}
	}
	return nil
}
