package scrape

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/extract"
)

// BrowserLoader renders a page in headless Chrome and parses the DOM after
// scripts have run.
type BrowserLoader struct {
	bin     string
	timeout time.Duration
	cookie  string
}

// NewBrowserLoader creates a BrowserLoader. An empty bin lets the launcher
// find or download a browser.
func NewBrowserLoader(bin string, timeout time.Duration, cookie string) *BrowserLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserLoader{bin: bin, timeout: timeout, cookie: cookie}
}

func (b *BrowserLoader) Name() string                { return "browser" }
func (b *BrowserLoader) Supports(target string) bool { return isHTTP(target) }

// Load launches a browser, navigates to target and parses the rendered
// HTML. The browser is closed before returning.
func (b *BrowserLoader) Load(ctx context.Context, target string) (*extract.HTMLPage, error) {
	l := launcher.New().Headless(true)
	if b.bin != "" {
		l = l.Bin(b.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch")
	}
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, eris.Wrap(err, "browser: connect")
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, eris.Wrap(err, "browser: create page")
	}
	if b.cookie != "" {
		if _, err := page.SetExtraHeaders([]string{"Cookie", b.cookie}); err != nil {
			return nil, eris.Wrap(err, "browser: set cookie")
		}
	}

	start := time.Now()
	timed := page.Timeout(b.timeout)
	if err := timed.Navigate(target); err != nil {
		return nil, eris.Wrapf(err, "browser: navigate %s", target)
	}
	if err := timed.WaitLoad(); err != nil {
		return nil, eris.Wrap(err, "browser: wait load")
	}

	html, err := page.HTML()
	if err != nil {
		return nil, eris.Wrap(err, "browser: read html")
	}
	zap.L().Debug("browser: page rendered",
		zap.String("url", target),
		zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(start)),
	)

	out, err := extract.ParseHTML(html)
	if err != nil {
		return nil, eris.Wrap(err, "browser: parse")
	}
	return out, nil
}
