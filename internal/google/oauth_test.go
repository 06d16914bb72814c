package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tutorbridge/backend/internal/apperrors"
	"github.com/tutorbridge/backend/internal/config"
)

func newServerOn(t *testing.T, h http.Handler) string {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return server.URL
}

func TestAuthCodeURLRequestsOfflineAccess(t *testing.T) {
	fake := newFakeGoogle(t, func(w http.ResponseWriter, r *http.Request) {})
	client := NewOAuthClient(fake.config())

	rawURL, err := client.AuthCodeURL("opaque-state")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("unparseable auth URL: %v", err)
	}
	query := parsed.Query()
	if query.Get("access_type") != "offline" {
		t.Fatal("expected access_type=offline")
	}
	if query.Get("approval_prompt") != "force" {
		t.Fatal("expected approval_prompt=force")
	}
	if query.Get("state") != "opaque-state" {
		t.Fatalf("unexpected state: %q", query.Get("state"))
	}
	if !strings.Contains(query.Get("scope"), "calendar.events") {
		t.Fatalf("unexpected scope: %q", query.Get("scope"))
	}
}

func TestAuthCodeURLUnconfigured(t *testing.T) {
	client := NewOAuthClient(config.GoogleConfig{})

	_, err := client.AuthCodeURL("state")
	if !apperrors.IsCode(err, apperrors.CodeAuthConfigurationMissing) {
		t.Fatalf("expected AUTH_CONFIGURATION_MISSING, got %v", err)
	}
}

func TestExchange(t *testing.T) {
	fake := newFakeGoogle(t, func(w http.ResponseWriter, r *http.Request) {})
	fake.tokenBody = `{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600,"scope":"https://www.googleapis.com/auth/calendar.events"}`
	client := NewOAuthClient(fake.config())

	token, err := client.Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.RefreshToken != "rt" {
		t.Fatalf("unexpected refresh token: %q", token.RefreshToken)
	}
	if granted, _ := token.Extra("scope").(string); !strings.Contains(granted, "calendar.events") {
		t.Fatalf("unexpected granted scope: %v", token.Extra("scope"))
	}
}

func TestExchangeInvalidCode(t *testing.T) {
	fake := newFakeGoogle(t, func(w http.ResponseWriter, r *http.Request) {})
	fake.tokenStatus = http.StatusBadRequest
	fake.tokenBody = `{"error":"invalid_grant","error_description":"Malformed auth code."}`
	client := NewOAuthClient(fake.config())

	_, err := client.Exchange(context.Background(), "bad-code")
	if !apperrors.IsCode(err, apperrors.CodeAuthFailed) {
		t.Fatalf("expected AUTH_FAILED, got %v", err)
	}
}

func TestTokenInfo(t *testing.T) {
	fake := newFakeGoogle(t, func(w http.ResponseWriter, r *http.Request) {})

	mux := http.NewServeMux()
	mux.HandleFunc("/tokeninfo", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "at" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		// Numeric fields arrive as JSON strings from this endpoint.
		w.Write([]byte(`{"scope":"https://www.googleapis.com/auth/calendar.events openid","expires_in":"3599"}`))
	})
	server := newServerOn(t, mux)

	cfg := fake.config()
	cfg.TokenInfoURL = server + "/tokeninfo"
	client := NewOAuthClient(cfg)

	info, err := client.TokenInfo(context.Background(), "at")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Scopes) != 2 {
		t.Fatalf("expected 2 scopes, got %v", info.Scopes)
	}
	if info.ExpiresAt.Before(time.Now()) {
		t.Fatalf("expected future expiry, got %v", info.ExpiresAt)
	}
}

func TestTokenInfoInvalidToken(t *testing.T) {
	fake := newFakeGoogle(t, func(w http.ResponseWriter, r *http.Request) {})

	mux := http.NewServeMux()
	mux.HandleFunc("/tokeninfo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Value"}`))
	})
	server := newServerOn(t, mux)

	cfg := fake.config()
	cfg.TokenInfoURL = server + "/tokeninfo"
	client := NewOAuthClient(cfg)

	_, err := client.TokenInfo(context.Background(), "stale")
	if !apperrors.IsCode(err, apperrors.CodeAuthFailed) {
		t.Fatalf("expected AUTH_FAILED, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	fake := newFakeGoogle(t, func(w http.ResponseWriter, r *http.Request) {})

	var revokedToken string
	mux := http.NewServeMux()
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		revokedToken = r.FormValue("token")
		w.WriteHeader(http.StatusOK)
	})
	server := newServerOn(t, mux)

	cfg := fake.config()
	cfg.RevokeURL = server + "/revoke"
	client := NewOAuthClient(cfg)

	if err := client.Revoke(context.Background(), "refresh-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revokedToken != "refresh-token" {
		t.Fatalf("expected the refresh token in the form body, got %q", revokedToken)
	}
}
