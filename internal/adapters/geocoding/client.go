// Package geocoding resolves the commune containing a coordinate through
// the French national reverse geocoding service.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/pkg/metrics"
)

// DefaultBaseURL is the public reverse geocoding endpoint.
const DefaultBaseURL = "https://data.geopf.fr/geocodage/reverse"

// ErrCommuneNotFound is returned when no commune contains the coordinate.
var ErrCommuneNotFound = errors.New("commune not found")

// UpstreamError reports a non-2xx answer of the geocoding service.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("geocoding upstream error: %d", e.Status)
}

// Client implements ports.CommuneGeocoder.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a client. An empty baseURL selects DefaultBaseURL; timeout
// applies when the caller's context has no deadline.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "prelevements/1.0",
			MaxConnsPerHost:     32,
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

// Reverse returns the commune at lat/lon. One request, no retry. The query
// targets the points of interest index restricted to communes: on the
// default address index "name" is a street label.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*domain.Commune, error) {
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

	req.SetRequestURI(c.baseURL)
	args := req.URI().QueryArgs()
	args.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	args.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	args.Set("index", "poi")
	args.Set("category", "commune")
	args.Set("limit", "1")
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	start := time.Now()
	err := c.http.DoDeadline(req, resp, deadline)
	metrics.GeocodingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GeocodingRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}

	if status := resp.StatusCode(); status < 200 || status > 299 {
		metrics.GeocodingRequests.WithLabelValues("upstream_error").Inc()
		slog.Warn("geocoding upstream error", "status", status)
		return nil, &UpstreamError{Status: status}
	}

	commune, err := decode(resp.Body())
	switch {
	case errors.Is(err, ErrCommuneNotFound):
		metrics.GeocodingRequests.WithLabelValues("not_found").Inc()
	case err != nil:
		metrics.GeocodingRequests.WithLabelValues("error").Inc()
	default:
		metrics.GeocodingRequests.WithLabelValues("ok").Inc()
	}
	return commune, err
}

type featureCollection struct {
	Features []struct {
		Properties struct {
			Name     stringOrArray `json:"name"`
			CityCode stringOrArray `json:"citycode"`
		} `json:"properties"`
	} `json:"features"`
}

func decode(body []byte) (*domain.Commune, error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, ErrCommuneNotFound
	}
	props := fc.Features[0].Properties
	return &domain.Commune{Nom: string(props.Name), Code: string(props.CityCode)}, nil
}

// stringOrArray decodes either "x" or ["x", ...] into "x".
type stringOrArray string

func (s *stringOrArray) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = ""
		if len(list) > 0 {
			*s = stringOrArray(list[0])
		}
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = stringOrArray(v)
	return nil
}
