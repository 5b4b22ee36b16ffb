// Package scrape loads LMS quiz pages from disk, over HTTP, or through a
// headless browser.
package scrape

import (
	"context"
	"strings"

	"github.com/sells-group/quizlens/internal/extract"
)

// Loader fetches one page and parses it for extraction.
type Loader interface {
	Load(ctx context.Context, target string) (*extract.HTMLPage, error)
	Name() string
	Supports(target string) bool
}

func isHTTP(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
