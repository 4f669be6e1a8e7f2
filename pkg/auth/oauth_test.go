package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTokenServer(t *testing.T, requests *int32, body string, status int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)

		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != DefaultTokenPath {
			t.Errorf("Expected path %s, got %s", DefaultTokenPath, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "client" {
			t.Errorf("client_id = %q", got)
		}
		if got := r.PostForm.Get("client_secret"); got != "secret" {
			t.Errorf("client_secret = %q", got)
		}
		if got := r.PostForm.Get("token_type"); got != "jwt" {
			t.Errorf("token_type = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestSource(t *testing.T, url string, store Store) *OAuthSource {
	t.Helper()

	src, err := NewOAuthSource(OAuthConfig{
		URL:          url,
		ClientID:     "client",
		ClientSecret: "secret",
	}, store)
	if err != nil {
		t.Fatalf("NewOAuthSource() error = %v", err)
	}
	return src
}

func TestNewOAuthSource_Validation(t *testing.T) {
	store := NewMemoryStore()

	tests := []struct {
		name     string
		cfg      OAuthConfig
		store    Store
		errorMsg string
	}{
		{"missing url", OAuthConfig{ClientID: "a", ClientSecret: "b"}, store, "oauth url is required"},
		{"missing id", OAuthConfig{URL: "http://x", ClientSecret: "b"}, store, "oauth client id and secret are required"},
		{"missing secret", OAuthConfig{URL: "http://x", ClientID: "a"}, store, "oauth client id and secret are required"},
		{"missing store", OAuthConfig{URL: "http://x", ClientID: "a", ClientSecret: "b"}, nil, "token store is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOAuthSource(tt.cfg, tt.store)
			if err == nil {
				t.Fatal("Expected error but got nil")
			}
			if err.Error() != tt.errorMsg {
				t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestOAuthSource_TokenURL(t *testing.T) {
	src := newTestSource(t, "https://lms.example.com/", NewMemoryStore())
	if got := src.TokenURL(); got != "https://lms.example.com/oauth2/access_token" {
		t.Errorf("TokenURL() = %q", got)
	}
}

func TestOAuthSource_FetchesAndCaches(t *testing.T) {
	var requests int32
	server := newTokenServer(t, &requests, `{"access_token":"tok-1","token_type":"JWT","expires_in":3600}`, http.StatusOK)

	src := newTestSource(t, server.URL, NewMemoryStore())
	ctx := context.Background()
	cachedBefore := testutil.ToFloat64(oauthTokenRequestsTotal.WithLabelValues("cached"))

	first, err := src.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if first.AccessToken != "tok-1" || first.TokenType != "JWT" {
		t.Errorf("Token() = %+v", first)
	}
	if first.TTL(time.Now()) < 59*time.Minute {
		t.Errorf("ExpiresAt too early: %v", first.ExpiresAt)
	}

	second, err := src.Token(ctx)
	if err != nil {
		t.Fatalf("second Token() error = %v", err)
	}
	if second.AccessToken != "tok-1" {
		t.Errorf("second token = %q, want cached tok-1", second.AccessToken)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
	if got := testutil.ToFloat64(oauthTokenRequestsTotal.WithLabelValues("cached")) - cachedBefore; got != 1 {
		t.Errorf("cached counter delta = %v, want 1", got)
	}
}

func TestOAuthSource_Invalidate(t *testing.T) {
	var requests int32
	server := newTokenServer(t, &requests, `{"access_token":"tok","expires_in":3600}`, http.StatusOK)

	src := newTestSource(t, server.URL, NewMemoryStore())
	ctx := context.Background()

	if _, err := src.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if err := src.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := src.Token(ctx); err != nil {
		t.Fatalf("Token() after Invalidate error = %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("token endpoint hit %d times, want 2", got)
	}
}

func TestOAuthSource_RefreshesNearExpiry(t *testing.T) {
	var requests int32
	server := newTokenServer(t, &requests, `{"access_token":"tok","expires_in":60}`, http.StatusOK)

	src := newTestSource(t, server.URL, NewMemoryStore())
	ctx := context.Background()

	if _, err := src.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	// 45s later the token is inside the 30s skew window.
	later := time.Now().Add(45 * time.Second)
	src.now = func() time.Time { return later }

	if _, err := src.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("token endpoint hit %d times, want 2", got)
	}
}

func TestOAuthSource_DefaultsMissingFields(t *testing.T) {
	var requests int32
	server := newTokenServer(t, &requests, `{"access_token":"tok"}`, http.StatusOK)

	src := newTestSource(t, server.URL, NewMemoryStore())
	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.TokenType != DefaultTokenType {
		t.Errorf("TokenType = %q, want %q", tok.TokenType, DefaultTokenType)
	}
	if ttl := tok.TTL(time.Now()); ttl <= 0 || ttl > fallbackLifetime {
		t.Errorf("TTL = %v, want within fallback lifetime", ttl)
	}
}

func TestOAuthSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unauthorized", `{"error":"invalid_client"}`, http.StatusUnauthorized},
		{"server error", `oops`, http.StatusInternalServerError},
		{"malformed body", `not json`, http.StatusOK},
		{"missing access token", `{"token_type":"JWT"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			server := newTokenServer(t, &requests, tt.body, tt.status)
			src := newTestSource(t, server.URL, NewMemoryStore())

			_, err := src.Token(context.Background())
			if !errors.Is(err, ErrTokenRequest) {
				t.Errorf("Token() error = %v, want ErrTokenRequest", err)
			}
		})
	}
}

func TestOAuthSource_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	src := newTestSource(t, url, NewMemoryStore())
	_, err := src.Token(context.Background())
	if !errors.Is(err, ErrTokenRequest) {
		t.Errorf("Token() error = %v, want ErrTokenRequest", err)
	}
}

type failingStore struct{ *MemoryStore }

func (f *failingStore) Load(context.Context, string) (*Token, error) {
	return nil, errors.New("store down")
}

func TestOAuthSource_StoreFailureFallsBackToFetch(t *testing.T) {
	var requests int32
	server := newTokenServer(t, &requests, `{"access_token":"tok","expires_in":3600}`, http.StatusOK)

	store := &failingStore{MemoryStore: NewMemoryStore()}
	src := newTestSource(t, server.URL, store)

	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "tok" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
}
