package gateway

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/relay"
	"github.com/sells-group/quizlens/pkg/chatcompletion"
)

// relayDoer satisfies the HTTP client interface of both provider SDKs and
// routes every request through a relay. Non-2xx replies become
// *ProviderError here, so SDK error decoding never runs.
type relayDoer struct {
	relay    relay.Relay
	provider model.Provider
}

func (d *relayDoer) Do(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, eris.Wrap(err, "gateway: read request body")
		}
		body = string(raw)
	}

	headers := make(map[string]string, len(req.Header))
	for k, vs := range req.Header {
		headers[k] = strings.Join(vs, ", ")
	}

	resp, err := d.relay.Do(req.Context(), relay.Request{
		Type:    relay.TypeForProvider(d.provider),
		URL:     req.URL.String(),
		Method:  req.Method,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return nil, &ProviderError{Provider: d.provider, Message: err.Error()}
	}
	if !resp.OK {
		return nil, &ProviderError{
			Provider:   d.provider,
			StatusCode: resp.Status,
			Message:    chatcompletion.ErrorMessage(resp.Status, resp.StatusText, []byte(resp.Text)),
		}
	}

	return &http.Response{
		Status:        http.StatusText(resp.Status),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader([]byte(resp.Text))),
		ContentLength: int64(len(resp.Text)),
		Request:       req,
	}, nil
}
