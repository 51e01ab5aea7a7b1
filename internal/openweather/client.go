// Package openweather proxies current-weather and forecast lookups to
// OpenWeatherMap. Nothing it returns is stored.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/lox/weatherqueries/internal/httputil"
	"github.com/lox/weatherqueries/internal/metrics"
)

const (
	BaseURL = "https://api.openweathermap.org/data/2.5"

	providerName = "openweather"
)

// ErrMissingAPIKey is returned when the client was built without a key.
var ErrMissingAPIKey = errors.New("missing OPENWEATHER_API_KEY")

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker

	// maxElapsed bounds retries of rate-limited responses.
	maxElapsed time.Duration
}

func NewClient(apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    BaseURL,
		httpClient: httputil.NewClient(timeout),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        providerName,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
		maxElapsed: 10 * time.Second,
	}
}

// WithBaseURL returns a copy of c that talks to baseURL, for tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.baseURL = baseURL
	return &clone
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Current is the subset of the current-weather response passed back to callers.
type Current struct {
	Provider string          `json:"provider"`
	Coord    json.RawMessage `json:"coord"`
	Weather  json.RawMessage `json:"weather"`
	Main     json.RawMessage `json:"main"`
	Wind     json.RawMessage `json:"wind"`
	Clouds   json.RawMessage `json:"clouds"`
	Name     *string         `json:"name"`
	Dt       *int64          `json:"dt"`
	Sys      json.RawMessage `json:"sys"`
}

func (c *Client) Current(ctx context.Context, lat, lon float64) (*Current, error) {
	body, err := c.fetch(ctx, "weather", lat, lon)
	if err != nil {
		return nil, err
	}

	var data Current
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal current: %w", err)
	}
	data.Provider = providerName
	data.Weather = orDefault(data.Weather, "[]")
	data.Main = orDefault(data.Main, "{}")
	data.Wind = orDefault(data.Wind, "{}")
	data.Clouds = orDefault(data.Clouds, "{}")
	data.Sys = orDefault(data.Sys, "{}")
	data.Coord = orDefault(data.Coord, "null")
	return &data, nil
}

// Forecast returns the provider's 5-day forecast document unchanged.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	body, err := c.fetch(ctx, "forecast", lat, lon)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("forecast: invalid JSON response")
	}
	return json.RawMessage(body), nil
}

func orDefault(raw json.RawMessage, def string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(def)
	}
	return raw
}

func (c *Client) fetch(ctx context.Context, endpoint string, lat, lon float64) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	u := c.baseURL + "/" + endpoint + "?" + params.Encode()

	start := time.Now()
	status := "error"
	defer func() {
		metrics.ProviderCallsTotal.WithLabelValues(providerName, endpoint, status).Inc()
		metrics.ProviderLatency.WithLabelValues(providerName, endpoint).Observe(time.Since(start).Seconds())
	}()

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", httputil.UserAgent)

		_, err = c.breaker.Execute(func() (interface{}, error) {
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, err))
			}
			defer resp.Body.Close()

			status = strconv.Itoa(resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, fmt.Errorf("rate limited: status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return nil, backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", endpoint, resp.StatusCode, string(b)))
			}

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("read body: %w", err))
			}
			return nil, nil
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			status = "circuit_open"
			return backoff.Permanent(fmt.Errorf("%s: %w", endpoint, err))
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
