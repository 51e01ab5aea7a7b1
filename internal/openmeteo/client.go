// Package openmeteo talks to the Open-Meteo geocoding and historical archive
// APIs. Neither requires an API key.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lox/weatherqueries/internal/httputil"
	"github.com/lox/weatherqueries/internal/metrics"
)

const (
	GeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	ArchiveURL   = "https://archive-api.open-meteo.com/v1/archive"

	providerName = "openmeteo"
)

// Client is safe for concurrent use. Calls are never retried; a tripped
// breaker fails fast until it half-opens again.
type Client struct {
	httpClient   *http.Client
	geocodingURL string
	archiveURL   string
	geoBreaker   *gobreaker.CircuitBreaker
	archBreaker  *gobreaker.CircuitBreaker
}

type Option func(*Client)

// WithURLs overrides the API endpoints, for tests.
func WithURLs(geocodingURL, archiveURL string) Option {
	return func(c *Client) {
		c.geocodingURL = geocodingURL
		c.archiveURL = archiveURL
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// StatusError reports a non-200 answer from an Open-Meteo endpoint.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d: %s", e.Endpoint, e.Code, e.Body)
}

// StatusCode is the HTTP status the provider answered with.
func (e *StatusError) StatusCode() int { return e.Code }

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:   httputil.NewClient(20 * time.Second),
		geocodingURL: GeocodingURL,
		archiveURL:   ArchiveURL,
		geoBreaker:   newBreaker("openmeteo-geocoding"),
		archBreaker:  newBreaker("openmeteo-archive"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	})
}

// getJSON performs a single GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, cb *gobreaker.CircuitBreaker, endpoint, u string, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.ProviderCallsTotal.WithLabelValues(providerName, endpoint, status).Inc()
		metrics.ProviderLatency.WithLabelValues(providerName, endpoint).Observe(time.Since(start).Seconds())
	}()

	_, err := cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", httputil.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		status = strconv.Itoa(resp.StatusCode)
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(body)}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return nil, nil
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		status = "circuit_open"
	}
	return err
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
