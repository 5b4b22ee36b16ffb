package scrape

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quizlens/internal/extract"
)

// FileLoader reads a saved quiz page from disk.
type FileLoader struct{}

// NewFileLoader creates a FileLoader.
func NewFileLoader() *FileLoader { return &FileLoader{} }

func (f *FileLoader) Name() string { return "file" }

// Supports accepts anything that is not an http(s) URL.
func (f *FileLoader) Supports(target string) bool { return !isHTTP(target) }

// Load parses the file at target. A file:// prefix is allowed.
func (f *FileLoader) Load(_ context.Context, target string) (*extract.HTMLPage, error) {
	path := strings.TrimPrefix(target, "file://")
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "file: open %s", path)
	}
	defer func() { _ = fh.Close() }()

	page, err := extract.NewHTMLPage(fh)
	if err != nil {
		return nil, eris.Wrapf(err, "file: parse %s", path)
	}
	return page, nil
}
