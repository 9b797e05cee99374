package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/compii/playground/pkg/config"
	"github.com/compii/playground/pkg/storage/memory"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, err := newStore(ctx, config.StorageConfig{Type: "memory", MaxSize: 10})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("memory: got %T", store)
	}

	for _, typ := range []string{"none", ""} {
		store, err := newStore(ctx, config.StorageConfig{Type: typ})
		if err != nil {
			t.Fatalf("%q: %v", typ, err)
		}
		if store != nil {
			t.Errorf("%q: expected nil store, got %T", typ, store)
		}
	}

	if _, err := newStore(ctx, config.StorageConfig{Type: "redis"}); err == nil {
		t.Error("expected error for unknown storage type")
	}
}

func serveThrough(mw func(http.Handler) http.Handler, authorization string) int {
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestNewAuthMiddleware_None(t *testing.T) {
	mw, err := newAuthMiddleware(config.AuthConfig{Type: "none"})
	if err != nil {
		t.Fatal(err)
	}
	if mw != nil {
		t.Error("expected no middleware when auth and rate limiting are off")
	}
}

func TestNewAuthMiddleware_NoneWithRateLimit(t *testing.T) {
	mw, err := newAuthMiddleware(config.AuthConfig{Type: "none", RateLimitRPM: 1})
	if err != nil {
		t.Fatal(err)
	}
	if mw == nil {
		t.Fatal("expected middleware")
	}
	if code := serveThrough(mw, ""); code != http.StatusNoContent {
		t.Errorf("first request: status = %d", code)
	}
	if code := serveThrough(mw, ""); code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", code)
	}
}

func TestNewAuthMiddleware_APIKey(t *testing.T) {
	mw, err := newAuthMiddleware(config.AuthConfig{
		Type: "apikey",
		APIKeys: []config.APIKeyConfig{
			{Key: "k-1", Subject: "alice", TenantID: "org-1"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name          string
		authorization string
		want          int
	}{
		{"valid key", "Bearer k-1", http.StatusNoContent},
		{"unknown key", "Bearer k-2", http.StatusUnauthorized},
		{"no header", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serveThrough(mw, tt.authorization); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewAuthMiddleware_JWT(t *testing.T) {
	if _, err := newAuthMiddleware(config.AuthConfig{Type: "jwt"}); err == nil {
		t.Error("expected error without a secret")
	}

	mw, err := newAuthMiddleware(config.AuthConfig{
		Type: "jwt",
		JWT:  config.JWTConfig{Secret: "s3cret"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if code := serveThrough(mw, "Bearer not-a-jwt"); code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
}

func TestNewAuthMiddleware_UnknownType(t *testing.T) {
	if _, err := newAuthMiddleware(config.AuthConfig{Type: "ldap"}); err == nil {
		t.Error("expected error for unknown auth type")
	}
}
