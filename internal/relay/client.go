package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// Client is a Relay that forwards messages to a remote relay server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Client for the relay at baseURL. token is sent as a
// bearer token when non-empty.
func NewClient(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
	}
}

// Do posts the message to the remote relay and unwraps its envelope.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "relay client: marshal message")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/relay", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "relay client: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "relay client: send")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "relay client: read body")
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, eris.Errorf("relay client: status %d: undecodable reply", resp.StatusCode)
	}
	if !env.Success || env.Data == nil {
		msg := env.Error
		if msg == "" {
			msg = "relay returned no data"
		}
		return nil, eris.New(msg)
	}
	return env.Data, nil
}
