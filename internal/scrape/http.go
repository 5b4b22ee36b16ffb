package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quizlens/internal/extract"
	"github.com/sells-group/quizlens/internal/resilience"
)

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 2 << 20

// HTTPLoader fetches a quiz page with a plain GET. It cannot run scripts,
// so blocked or script-only pages fail and the chain moves on.
type HTTPLoader struct {
	client *http.Client
	cookie string
	retry  resilience.Policy
}

// HTTPOption configures an HTTPLoader.
type HTTPOption func(*HTTPLoader)

// WithCookie sends a Cookie header, e.g. an LMS session cookie.
func WithCookie(cookie string) HTTPOption {
	return func(l *HTTPLoader) { l.cookie = cookie }
}

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) HTTPOption {
	return func(l *HTTPLoader) { l.client = c }
}

// WithRetry replaces the retry policy for 429, 5xx and network failures.
func WithRetry(p resilience.Policy) HTTPOption {
	return func(l *HTTPLoader) { l.retry = p }
}

// NewHTTPLoader creates an HTTPLoader with dial and TLS timeouts.
func NewHTTPLoader(opts ...HTTPOption) *HTTPLoader {
	l := &HTTPLoader{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retry: resilience.DefaultPolicy("http: load page"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *HTTPLoader) Name() string                { return "http" }
func (l *HTTPLoader) Supports(target string) bool { return isHTTP(target) }

// Load fetches target and parses it. Transient failures are retried.
func (l *HTTPLoader) Load(ctx context.Context, target string) (*extract.HTMLPage, error) {
	return resilience.Retry(ctx, l.retry, func(ctx context.Context) (*extract.HTMLPage, error) {
		return l.load(ctx, target)
	})
}

func (l *HTTPLoader) load(ctx context.Context, target string) (*extract.HTMLPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "http: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; quizlens/1.0)")
	req.Header.Set("Accept", "text/html")
	if l.cookie != "" {
		req.Header.Set("Cookie", l.cookie)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "http: read body")
	}

	if bt := DetectBlock(resp, body); bt != BlockNone {
		return nil, eris.Errorf("http: blocked (%s)", bt)
	}
	if resp.StatusCode >= 400 {
		return nil, resilience.MarkTransient(eris.Errorf("http: status %d", resp.StatusCode), resp.StatusCode)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, eris.New("http: empty page")
	}

	page, err := extract.NewHTMLPage(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "http: parse")
	}
	return page, nil
}
