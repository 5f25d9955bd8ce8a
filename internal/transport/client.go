// Package transport provides the shared HTTP plumbing for source adapters:
// a timeout-bounded client, JSON decoding, and the mapping from HTTP status
// codes to the source error taxonomy.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/logging"
)

// DefaultTimeout bounds each upstream request unless the adapter overrides it.
const DefaultTimeout = 30 * time.Second

// Authenticator applies credentials to an outgoing request.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth is the authenticator for public upstreams.
type NoAuth struct{}

// Apply is a no-op.
func (NoAuth) Apply(_ *http.Request) {}

// BearerAuth sends an Authorization: Bearer header.
type BearerAuth struct {
	Token string
}

// Apply sets the Authorization header.
func (a BearerAuth) Apply(req *http.Request) {
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}

// TokenAuth sends the token scheme used by Metron-style APIs.
type TokenAuth struct {
	Token string
}

// Apply sets the Authorization header with the TOKEN scheme.
func (a TokenAuth) Apply(req *http.Request) {
	if a.Token != "" {
		req.Header.Set("Authorization", "TOKEN "+a.Token)
	}
}

// Client is an HTTP client for one source adapter.
type Client struct {
	source string
	http   *http.Client
	auth   Authenticator
}

// New creates a transport client for a source. A nil authenticator means no
// credentials are applied.
func New(source string, httpClient *http.Client, auth Authenticator) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if auth == nil {
		auth = NoAuth{}
	}
	return &Client{source: source, http: httpClient, auth: auth}
}

// Get performs a GET request and returns the response. Non-2xx statuses are
// returned as a SourceError so callers can classify them; a 404 additionally
// unwraps to errors.ErrNotFound.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapSource(c.source, url, err)
	}
	c.auth.Apply(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &errors.SourceError{Source: c.source, Endpoint: url, Message: "request timed out", Err: errors.ErrTimeout}
		}
		if ctx.Err() == context.Canceled {
			return nil, errors.ErrCanceled
		}
		return nil, errors.WrapSource(c.source, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer closeBody(resp)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		serr := &errors.SourceError{
			Source:     c.source,
			StatusCode: resp.StatusCode,
			Endpoint:   url,
			Message:    string(body),
		}
		if resp.StatusCode == http.StatusNotFound {
			serr.Err = errors.ErrNotFound
		}
		return nil, serr
	}

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON body into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapSource(c.source, url, err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", c.source+" response", err)
	}
	return nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close response body")
	}
}
