package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/correlation"
)

const userAgent = "geogrid-probe"

// HTTPClient abstracts the transport so tests can swap it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client performs single exchanges against a GeoGrid base URL.
type Client struct {
	baseURL string
	http    HTTPClient
}

// NewClient validates baseURL and returns a client using hc, or
// http.DefaultClient when hc is nil.
func NewClient(baseURL string, hc HTTPClient) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}, nil
}

// BaseURL returns the normalized base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends body (nil for GET) to ep and reads the whole response. Transport
// failures and non-2xx statuses come back as *Error.
func (c *Client) Do(ctx context.Context, ep Endpoint, body []byte) (*Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, ep.Method, c.baseURL+ep.Path, rdr)
	if err != nil {
		return nil, newError(KindTransport, ep.Name, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", ep.Expects.accept())
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	correlation.Inject(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(KindTransport, ep.Name, fmt.Errorf("%s %s: %w", ep.Method, ep.Path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindTransport, ep.Name, fmt.Errorf("read %s body: %w", ep.Path, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:       KindHTTPStatus,
			Step:       ep.Name,
			StatusCode: resp.StatusCode,
			Body:       data,
			Err:        fmt.Errorf("%s %s: request failed with status code %d", ep.Method, ep.Path, resp.StatusCode),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
