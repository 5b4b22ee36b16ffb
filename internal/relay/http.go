package relay

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// HTTPRelay performs requests in-process with net/http. Only dialing and
// the TLS handshake are bounded; a slow model reply is waited out.
type HTTPRelay struct {
	client *http.Client
}

// NewHTTPRelay creates an HTTPRelay with the given dial and TLS handshake
// timeouts. Zero values fall back to 10s.
func NewHTTPRelay(dialTimeout, tlsTimeout time.Duration) *HTTPRelay {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	if tlsTimeout <= 0 {
		tlsTimeout = 10 * time.Second
	}
	return &HTTPRelay{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: dialTimeout,
				}).DialContext,
				TLSHandshakeTimeout: tlsTimeout,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Do performs the request and returns the raw status and body.
func (h *HTTPRelay) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, eris.Wrap(err, "relay: create request")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "relay: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "relay: read body")
	}

	zap.L().Debug("relay: call complete",
		zap.String("type", req.Type),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		OK:         resp.StatusCode >= 200 && resp.StatusCode <= 299,
		Text:       string(text),
	}, nil
}
