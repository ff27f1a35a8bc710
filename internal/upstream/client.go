package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"pplx-bridge/internal/config"
	"pplx-bridge/internal/models"
	"pplx-bridge/internal/stream"
)

const askPath = "/rest/sse/perplexity_ask"

// Client issues one streaming request per query against the upstream
// search service, impersonating the captured browser session. It performs
// no retries: a failure surfaces to the caller as-is.
type Client struct {
	cfg    config.UpstreamConfig
	client *http.Client
	askURL string
}

// New constructs a client. The required session credentials must be
// present; passing a nil http.Client installs one bounded by the
// configured stream timeout.
func New(cfg config.UpstreamConfig, httpClient *http.Client) (*Client, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("upstream base url must not be empty")
	}
	cfg.BaseURL = baseURL

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.StreamTimeout()}
	}

	return &Client{
		cfg:    cfg,
		client: httpClient,
		askURL: baseURL + askPath,
	}, nil
}

// Ask opens the streaming request for one query. The returned Stream is a
// lazy, single-pass, non-restartable event sequence; the caller must Close
// it on every exit path, including cancellation.
func (c *Client) Ask(ctx context.Context, q models.Query) (*Stream, error) {
	body, err := json.Marshal(buildPayload(q))
	if err != nil {
		return nil, fmt.Errorf("marshal ask payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.askURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct ask request: %w", err)
	}

	browserHeaders(req, c.cfg.BaseURL, uuid.NewString())
	c.addSessionCookies(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, classifyStatus(resp)
	}

	return &Stream{body: resp.Body, dec: stream.NewDecoder(resp.Body)}, nil
}

func (c *Client) addSessionCookies(req *http.Request) {
	cookies := []http.Cookie{
		{Name: "pplx.visitor-id", Value: c.cfg.VisitorID},
		{Name: "__Secure-next-auth.session-token", Value: c.cfg.SessionToken},
		{Name: "cf_clearance", Value: c.cfg.CFClearance},
		{Name: "pplx.session-id", Value: c.cfg.SessionID},
		{Name: "__cf_bm", Value: c.cfg.CFBotManagement},
	}
	for i := range cookies {
		if cookies[i].Value != "" {
			req.AddCookie(&cookies[i])
		}
	}
}

func classifyTransportError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func classifyStatus(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrAuthentication, resp.StatusCode, strings.TrimSpace(string(snippet)))
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Stream is the open upstream response: a forward-only cursor over decoded
// events plus the network connection backing it.
type Stream struct {
	body io.ReadCloser
	dec  *stream.Decoder
}

// Next returns the next decoded event, io.EOF at end of stream.
func (s *Stream) Next() (stream.Event, error) {
	ev, err := s.dec.Next()
	if err != nil && err != io.EOF {
		if isTimeout(err) {
			return stream.Event{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return stream.Event{}, err
	}
	return ev, err
}

// Close releases the underlying connection. Safe to call more than once.
func (s *Stream) Close() error {
	return s.body.Close()
}
