// Package auth acquires and caches OAuth2 access tokens for the catalog
// service using the client-credentials grant.
//
// Tokens live in a Store so that several processes can share one token
// through Redis instead of each hitting the token endpoint.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTokenNotFound is returned by a Store when no token is cached under the key.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenRequest wraps every failure to obtain a token from the OAuth provider.
	ErrTokenRequest = errors.New("token request failed")
)

// DefaultTokenType is used when the provider omits token_type.
const DefaultTokenType = "JWT"

// Token is an access token together with the scheme used to present it.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be used at now, treating it as
// expired skew before ExpiresAt.
func (t *Token) Valid(now time.Time, skew time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(skew).Before(t.ExpiresAt)
}

// AuthorizationHeader renders the value for the Authorization header.
func (t *Token) AuthorizationHeader() string {
	scheme := t.TokenType
	if scheme == "" {
		scheme = DefaultTokenType
	}
	return scheme + " " + t.AccessToken
}

// TTL is the remaining lifetime at now, never negative.
func (t *Token) TTL(now time.Time) time.Duration {
	d := t.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// TokenSource hands out valid credentials to the transport.
type TokenSource interface {
	// Token returns a token that is valid for at least the configured skew.
	Token(ctx context.Context) (*Token, error)

	// Invalidate drops the cached token so the next Token call fetches a new one.
	Invalidate(ctx context.Context) error
}
