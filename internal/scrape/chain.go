package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/extract"
)

// Chain tries loaders in order and returns the first page loaded.
type Chain struct {
	loaders []Loader
}

// NewChain creates a Chain over loaders.
func NewChain(loaders ...Loader) *Chain {
	return &Chain{loaders: loaders}
}

// Load tries each loader that supports target.
func (c *Chain) Load(ctx context.Context, target string) (*extract.HTMLPage, error) {
	var lastErr error
	for _, l := range c.loaders {
		if !l.Supports(target) {
			continue
		}
		page, err := l.Load(ctx, target)
		if err == nil && page != nil {
			zap.L().Debug("scrape: page loaded", zap.String("loader", l.Name()), zap.String("target", target))
			return page, nil
		}
		if err != nil {
			zap.L().Debug("scrape: loader failed, trying next",
				zap.String("loader", l.Name()),
				zap.String("target", target),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all loaders failed")
	}
	return nil, eris.Errorf("scrape: no loader for %s", target)
}
