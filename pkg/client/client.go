// Package client provides the authenticated HTTP transport used to talk to
// the enterprise catalog service: OAuth credentials, error classification,
// logging and metrics. It performs exactly one HTTP exchange per call.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/enterprise-catalog-client/pkg/auth"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for catalog requests.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_client_requests_total",
		Help: "Total catalog requests by method and status",
	}, []string{"method", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_client_request_duration_seconds",
		Help:    "Catalog request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_client_errors_total",
		Help: "Total catalog request errors by class",
	}, []string{"class"})
)

// maxErrorBody bounds how much of a failed response body ends up in errors.
const maxErrorBody = 512

// Client performs authenticated requests against the catalog service.
type Client struct {
	http   *resty.Client
	tokens auth.TokenSource
	config Config
	logger zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Tokens supplies credentials for every request (required).
	Tokens auth.TokenSource

	// UserAgent identifies the calling service (required).
	UserAgent string

	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration
}

// DefaultConfig returns a configuration with a 30 second request timeout.
func DefaultConfig(tokens auth.TokenSource, userAgent string) Config {
	return Config{
		Tokens:    tokens,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// New creates a new authenticated client.
func New(cfg Config) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger: logger})

	return &Client{
		http:   httpClient,
		tokens: cfg.Tokens,
		config: cfg,
		logger: logger,
	}, nil
}

// Get issues a GET to rawURL. query is merged into any query already present
// in rawURL; repeated keys become repeated parameters.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, func(req *resty.Request) {
		if len(query) > 0 {
			req.SetQueryParamsFromValues(query)
		}
	})
}

// Post issues a POST to rawURL with body encoded as JSON.
func (c *Client) Post(ctx context.Context, rawURL string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, rawURL, func(req *resty.Request) {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	})
}

// do performs one authenticated exchange and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, rawURL string, prepare func(*resty.Request)) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
		catalogRequestsTotal.WithLabelValues(method, "auth_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassAuth,
			Method:     method,
			URL:        rawURL,
			Message:    "acquire token",
			Err:        err,
		}
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", token.AuthorizationHeader())
	prepare(req)

	c.logger.Debug().
		Str("method", method).
		Str("url", rawURL).
		Msg("Executing catalog request")

	resp, err := req.Execute(method, rawURL)
	if err != nil {
		errClass := c.classifyError(0, err)
		catalogErrorsTotal.WithLabelValues(string(errClass)).Inc()
		catalogRequestsTotal.WithLabelValues(method, "network_error").Inc()
		c.logger.Error().Err(err).
			Str("method", method).
			Str("url", rawURL).
			Msg("Catalog request failed")
		return nil, &APIError{
			ErrorClass: errClass,
			Method:     method,
			URL:        rawURL,
			Err:        err,
		}
	}

	status := resp.StatusCode()
	catalogRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()

	if !resp.IsSuccess() {
		errClass := c.classifyError(status, nil)
		catalogErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("method", method).
			Str("url", rawURL).
			Int("status", status).
			Str("error_class", string(errClass)).
			Msg("Catalog request error")

		if status == http.StatusUnauthorized {
			if err := c.tokens.Invalidate(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to invalidate rejected token")
			}
		}

		return nil, &APIError{
			StatusCode: status,
			ErrorClass: errClass,
			Method:     method,
			URL:        rawURL,
			Message:    errorMessage(resp),
		}
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", rawURL).
		Int("status", status).
		Dur("duration", time.Since(startTime)).
		Msg("Catalog request complete")

	return resp.Body(), nil
}

// classifyError categorizes a failure for metrics and callers.
func (c *Client) classifyError(status int, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorClassAuth
	default:
		return ErrorClassResponse
	}
}

// SetTransport replaces the underlying round tripper (for testing).
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

func errorMessage(resp *resty.Response) string {
	body := strings.TrimSpace(string(resp.Body()))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	if body == "" {
		return resp.Status()
	}
	return resp.Status() + ": " + body
}

// restyLogger routes resty's internal messages through zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), v...)
}
