// Package backend reads point and preleveur records from the declarations
// backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Client implements ports.BackendSource.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a client for the backend at baseURL. token is sent as a
// bearer token when set.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "prelevements-syncer/1.0",
			MaxResponseBodySize: 256 << 20,
			ReadTimeout:         timeout,
		},
	}
}

// FetchPoints returns every point record.
func (c *Client) FetchPoints(ctx context.Context) ([]map[string]any, error) {
	return c.fetch(ctx, "/points-prelevement")
}

// FetchPreleveurs returns every preleveur record.
func (c *Client) FetchPreleveurs(ctx context.Context) ([]map[string]any, error) {
	return c.fetch(ctx, "/preleveurs")
}

// fetch GETs a JSON array of records. Numbers are kept as json.Number so
// that ids survive unchanged.
func (c *Client) fetch(ctx context.Context, path string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+c.token)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", path, status)
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if records == nil {
		records = []map[string]any{}
	}
	return records, nil
}
