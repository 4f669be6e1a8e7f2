package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var oauthTokenRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_oauth_token_requests_total",
	Help: "Token lookups by result (cached, fetched, error)",
}, []string{"result"})

const (
	// DefaultTokenPath is the client-credentials endpoint relative to OAuthConfig.URL.
	DefaultTokenPath = "/oauth2/access_token"

	// DefaultExpirySkew treats tokens as expired this long before they are.
	DefaultExpirySkew = 30 * time.Second

	// fallbackLifetime applies when the provider omits expires_in.
	fallbackLifetime = 5 * time.Minute
)

// OAuthConfig describes the OAuth2 provider and client credentials.
type OAuthConfig struct {
	// URL is the provider root, e.g. https://lms.example.com.
	URL          string
	TokenPath    string
	ClientID     string
	ClientSecret string

	// TokenType is the requested token_type; "jwt" unless set.
	TokenType string

	ExpirySkew time.Duration
	Timeout    time.Duration
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// OAuthSource implements TokenSource with the client-credentials grant.
type OAuthSource struct {
	cfg    OAuthConfig
	store  Store
	http   *resty.Client
	logger zerolog.Logger
	now    func() time.Time

	// serializes refreshes within the process
	mu sync.Mutex
}

// NewOAuthSource validates cfg and returns a source backed by store.
func NewOAuthSource(cfg OAuthConfig, store Store) (*OAuthSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("oauth url is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("oauth client id and secret are required")
	}
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = DefaultTokenPath
	}
	if cfg.TokenType == "" {
		cfg.TokenType = "jwt"
	}
	if cfg.ExpirySkew <= 0 {
		cfg.ExpirySkew = DefaultExpirySkew
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OAuthSource{
		cfg:    cfg,
		store:  store,
		http:   resty.New().SetTimeout(cfg.Timeout),
		logger: log.With().Str("component", "oauth").Logger(),
		now:    time.Now,
	}, nil
}

// TokenURL is the absolute URL tokens are requested from.
func (s *OAuthSource) TokenURL() string {
	return strings.TrimRight(s.cfg.URL, "/") + "/" + strings.TrimLeft(s.cfg.TokenPath, "/")
}

// Token returns the cached token while it is valid, otherwise requests a new one.
func (s *OAuthSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := s.store.Load(ctx, s.cfg.ClientID)
	switch {
	case err == nil && cached.Valid(s.now(), s.cfg.ExpirySkew):
		oauthTokenRequestsTotal.WithLabelValues("cached").Inc()
		s.logger.Debug().Time("expires_at", cached.ExpiresAt).Msg("Using cached token")
		return cached, nil
	case err != nil && !errors.Is(err, ErrTokenNotFound):
		s.logger.Warn().Err(err).Msg("Token store load failed, requesting new token")
	}

	tok, err := s.fetch(ctx)
	if err != nil {
		oauthTokenRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("url", s.TokenURL()).Msg("Token request failed")
		return nil, err
	}
	oauthTokenRequestsTotal.WithLabelValues("fetched").Inc()

	if err := s.store.Save(ctx, s.cfg.ClientID, tok); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cache token")
	}

	s.logger.Info().
		Str("token_type", tok.TokenType).
		Time("expires_at", tok.ExpiresAt).
		Msg("Acquired access token")

	return tok, nil
}

// Invalidate removes the cached token.
func (s *OAuthSource) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, s.cfg.ClientID); err != nil {
		return fmt.Errorf("invalidate token: %w", err)
	}
	return nil
}

func (s *OAuthSource) fetch(ctx context.Context) (*Token, error) {
	issuedAt := s.now()

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     s.cfg.ClientID,
			"client_secret": s.cfg.ClientSecret,
			"token_type":    s.cfg.TokenType,
		}).
		Post(s.TokenURL())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenRequest, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTokenRequest, resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrTokenRequest, err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("%w: response has no access_token", ErrTokenRequest)
	}

	lifetime := time.Duration(body.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = fallbackLifetime
	}

	tokenType := body.TokenType
	if tokenType == "" {
		tokenType = DefaultTokenType
	}

	return &Token{
		AccessToken: body.AccessToken,
		TokenType:   tokenType,
		ExpiresAt:   issuedAt.Add(lifetime),
	}, nil
}
