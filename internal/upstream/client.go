package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rotisserie/eris"
)

const (
	MessagePath  = "/api/message"
	SourceHeader = "X-Source"
	// MaxBodyBytes is the largest backend reply relayed; anything bigger
	// fails the call rather than being cut short.
	MaxBodyBytes = 1 << 20
)

// UnavailableError is the only failure the client reports: the backend
// timed out, could not be reached, or answered with a non-2xx status.
type UnavailableError struct {
	StatusCode int // zero when no response was received
	Reason     string
	cause      error
}

func (e *UnavailableError) Error() string { return e.Reason }

func (e *UnavailableError) Unwrap() error { return e.cause }

// Client calls the backend's message endpoint.
type Client struct {
	baseURL string
	source  string
	timeout time.Duration
	http    *http.Client
}

// NewClient returns a client for baseURL. The transport never reuses
// connections, so each call dials the backend afresh.
func NewClient(baseURL, source string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		source:  source,
		timeout: timeout,
		http:    cleanhttp.DefaultClient(),
	}
}

// BaseURL is the backend root the client was built for.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchMessage issues GET {base}/api/message and returns the body as JSON.
// A 2xx body that is not JSON is relayed as a JSON string.
func (c *Client) FetchMessage(ctx context.Context, requestID string) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+MessagePath, nil)
	if err != nil {
		return nil, &UnavailableError{Reason: err.Error(), cause: eris.Wrap(err, "building backend request")}
	}
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set(SourceHeader, c.source)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, c.transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UnavailableError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("request failed with status code %d", resp.StatusCode),
			cause:      eris.Errorf("backend answered %s", resp.Status),
		}
	}

	if len(body) > MaxBodyBytes {
		return nil, &UnavailableError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("maxContentLength size of %d exceeded", MaxBodyBytes),
			cause:      eris.New("backend reply too large"),
		}
	}

	if json.Valid(body) {
		return json.RawMessage(body), nil
	}

	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil, &UnavailableError{Reason: err.Error(), cause: err}
	}
	return quoted, nil
}

func (c *Client) transportError(err error) *UnavailableError {
	if isTimeout(err) {
		return &UnavailableError{
			Reason: fmt.Sprintf("timeout of %dms exceeded", c.timeout.Milliseconds()),
			cause:  eris.Wrap(err, "calling backend"),
		}
	}

	reason := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		reason = urlErr.Err.Error()
	}
	return &UnavailableError{Reason: reason, cause: eris.Wrap(err, "calling backend")}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
