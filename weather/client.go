// Package weather fetches daily forecast and archive data from an
// Open-Meteo style upstream. Outbound calls go through a token-bucket
// rate limiter so a burst of cold-cache requests cannot hammer the
// upstream; the calendar layer caches the results with the forecast/
// historic TTL split.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"

	// dailyFields matches what the calendar UI renders per day.
	dailyFields = "temperature_2m_max,precipitation_probability_mean,cloudcover_mean"
)

// Daily carries the per-day series returned by the upstream.
type Daily struct {
	Time                     []string  `json:"time"`
	TemperatureMax           []float64 `json:"temperature_2m_max"`
	PrecipitationProbability []float64 `json:"precipitation_probability_mean"`
	CloudCover               []float64 `json:"cloudcover_mean"`
}

// Data is the upstream response subset the backend serves.
type Data struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Daily     Daily   `json:"daily"`
}

// Client calls the weather upstream.
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	forecastURL string
	archiveURL  string
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outbound requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithBaseURLs overrides the upstream endpoints, mainly for tests.
func WithBaseURLs(forecast, archive string) Option {
	return func(c *Client) {
		if forecast != "" {
			c.forecastURL = forecast
		}
		if archive != "" {
			c.archiveURL = archive
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a weather client. The default rate limit of 5 rps
// with burst 10 stays well inside the upstream's free-tier allowance.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: 10 * time.Second},
		limiter:     rate.NewLimiter(5, 10),
		forecastURL: defaultForecastURL,
		archiveURL:  defaultArchiveURL,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Forecast fetches daily forecast data for the inclusive date range.
func (c *Client) Forecast(ctx context.Context, lat, lon float64, start, end time.Time) (*Data, error) {
	return c.fetch(ctx, c.forecastURL, lat, lon, start, end)
}

// Historic fetches archived daily data for the inclusive date range.
func (c *Client) Historic(ctx context.Context, lat, lon float64, start, end time.Time) (*Data, error) {
	return c.fetch(ctx, c.archiveURL, lat, lon, start, end)
}

func (c *Client) fetch(ctx context.Context, base string, lat, lon float64, start, end time.Time) (*Data, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("weather rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	q.Set("daily", dailyFields)
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("weather upstream returned non-200",
			zap.Int("status", resp.StatusCode), zap.String("url", base))
		return nil, fmt.Errorf("weather upstream status %d", resp.StatusCode)
	}

	var data Data
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("weather decode: %w", err)
	}
	return &data, nil
}
