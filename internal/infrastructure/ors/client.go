// Package ors talks to the OpenRouteService directions API and wraps any
// routing.Router with a route cache.
package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/logtower/backend/internal/domain/routing"
	"github.com/logtower/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public OpenRouteService endpoint
	DefaultBaseURL = "https://api.openrouteservice.org"

	directionsPath         = "/v2/directions/%s/geojson"
	defaultMaxResponseSize = 10 << 20
)

var (
	// ErrNoRoute is returned when the service answers without any route
	ErrNoRoute = errors.New("ors: no route found")

	// ErrResponseTooLarge is returned when a response exceeds the size limit
	ErrResponseTooLarge = errors.New("ors: response too large")
)

// APIError is an error answer (HTTP status >= 400) from the service
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ors: HTTP %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("ors: HTTP %d: %s", e.StatusCode, e.Message)
}

// Config holds the client settings
type Config struct {
	BaseURL         string
	APIKey          string
	Profile         string
	Timeout         time.Duration
	RequestsPerMin  int
	MaxResponseSize int64
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("ors: api key is required")
	}
	if c.RequestsPerMin < 0 {
		return errors.New("ors: requests per minute cannot be negative")
	}
	return nil
}

// Client implements routing.Router against OpenRouteService
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new OpenRouteService client. Requests are spaced to
// stay within RequestsPerMin; zero disables the limit.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Profile == "" {
		cfg.Profile = routing.ProfileDrivingCar
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = defaultMaxResponseSize
	}

	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMin))
	}

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("ors")
	return c, nil
}

// Profile returns the routing profile requested from the service
func (c *Client) Profile() string {
	return c.config.Profile
}

type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

// Route computes the driving route from origin to destination
func (c *Client) Route(ctx context.Context, origin, destination routing.Coordinate) (routing.Route, error) {
	if err := origin.Validate(); err != nil {
		return routing.Route{}, err
	}
	if err := destination.Validate(); err != nil {
		return routing.Route{}, err
	}

	ctx, span := telemetry.StartClientSpan(ctx, "openrouteservice", "directions",
		attribute.String(telemetry.AttrProfile, c.config.Profile),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		telemetry.RecordError(span, err)
		return routing.Route{}, fmt.Errorf("ors: waiting for rate limit: %w", err)
	}

	body, err := json.Marshal(directionsRequest{
		Coordinates: [][2]float64{origin.LonLat(), destination.LonLat()},
	})
	if err != nil {
		return routing.Route{}, fmt.Errorf("ors: failed to encode request: %w", err)
	}

	respBody, err := c.doRequest(ctx, fmt.Sprintf(directionsPath, c.config.Profile), body)
	if err != nil {
		telemetry.RecordError(span, err)
		return routing.Route{}, err
	}

	var resp directionsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		err = fmt.Errorf("ors: failed to decode response: %w", err)
		telemetry.RecordError(span, err)
		return routing.Route{}, err
	}
	if len(resp.Features) == 0 {
		telemetry.RecordError(span, ErrNoRoute)
		return routing.Route{}, ErrNoRoute
	}

	summary := resp.Features[0].Properties.Summary
	c.logger.Debug("route computed",
		zap.Stringer("origin", origin),
		zap.Stringer("destination", destination),
		zap.Float64("distance_m", summary.Distance),
		zap.Float64("duration_s", summary.Duration),
	)
	return routing.Route{DistanceMeters: summary.Distance, DurationSeconds: summary.Duration}, nil
}

func (c *Client) doRequest(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ors: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, application/geo+json")
	req.Header.Set("Authorization", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ors: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("ors: failed to read response: %w", err)
	}
	if int64(len(respBody)) > c.config.MaxResponseSize {
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// parseAPIError reads both error shapes the service uses:
// {"error": "message"} and {"error": {"code": 2010, "message": "..."}}
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}

	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Error) == 0 {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
			apiErr.Message = text
		}
		return apiErr
	}

	var text string
	if err := json.Unmarshal(resp.Error, &text); err == nil {
		apiErr.Message = text
		return apiErr
	}
	var detail struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Error, &detail); err == nil && detail.Message != "" {
		apiErr.Code = detail.Code
		apiErr.Message = detail.Message
	}
	return apiErr
}

// Ensure Client implements routing.Router
var _ routing.Router = (*Client)(nil)
