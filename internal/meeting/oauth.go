package meeting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/tutorbridge/backend/internal/apperrors"
	"github.com/tutorbridge/backend/internal/google"
	"github.com/tutorbridge/backend/internal/models"
)

// OAuthService manages each tutor's relationship with Google: consent URL
// construction, code exchange, refresh, status reporting and revocation.
// It is the only writer of the stored credential.
type OAuthService struct {
	db          *gorm.DB
	google      *google.OAuthClient
	frontendURL string
	now         func() time.Time
}

// NewOAuthService creates the OAuth session manager.
func NewOAuthService(db *gorm.DB, oauthClient *google.OAuthClient, frontendURL string) *OAuthService {
	return &OAuthService{
		db:          db,
		google:      oauthClient,
		frontendURL: frontendURL,
		now:         time.Now,
	}
}

// AuthorizationIntent is the consent URL handed back to the frontend.
type AuthorizationIntent struct {
	URL    string   `json:"url"`
	Scopes []string `json:"scopes"`
}

// CallbackResult tells the boundary layer where to send the tutor after a
// completed authorization.
type CallbackResult struct {
	RedirectTarget string
}

// ConnectionStatus reports the credential's health.
type ConnectionStatus struct {
	Connected bool       `json:"connected"`
	ExpiresAt *time.Time `json:"expires_at"`
	Scopes    []string   `json:"scopes"`
	Status    string     `json:"status"` // missing_token, invalid_grant, connected, refreshed
}

// StartAuthorization builds the provider consent URL. The state blob
// carries the tutor id and redirect target through the flow.
func (s *OAuthService) StartAuthorization(ctx context.Context, tutorID int, redirect string) (*AuthorizationIntent, error) {
	if _, err := findTutor(ctx, s.db, tutorID); err != nil {
		return nil, err
	}

	url, err := s.google.AuthCodeURL(EncodeAuthState(tutorID, redirect))
	if err != nil {
		return nil, err
	}
	return &AuthorizationIntent{URL: url, Scopes: s.google.Scopes()}, nil
}

// CompleteAuthorization exchanges the authorization code and persists the
// credential. Some providers only issue a refresh token on first consent,
// so the previously stored token is kept when the exchange omits one.
func (s *OAuthService) CompleteAuthorization(ctx context.Context, code, state string) (*CallbackResult, error) {
	if code == "" {
		return nil, apperrors.New(apperrors.CodeAuthFailed, http.StatusUnauthorized,
			"Missing authorization code")
	}

	decoded, err := DecodeAuthState(state)
	if err != nil || decoded.TutorID <= 0 {
		return nil, apperrors.New(apperrors.CodeAuthFailed, http.StatusUnauthorized,
			"Missing tutor identity in OAuth state. Please start the OAuth flow again.")
	}

	tutor, err := findTutor(ctx, s.db, decoded.TutorID)
	if err != nil {
		return nil, err
	}

	token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = tutor.GoogleOAuth.Token()
	}
	if refreshToken == "" {
		return nil, apperrors.New(apperrors.CodeAuthFailed, http.StatusUnauthorized,
			"Refresh token not received. Please revoke access and reconnect.")
	}

	scopes := tutor.GoogleOAuth.Scopes
	if granted, ok := token.Extra("scope").(string); ok && granted != "" {
		scopes = granted
	}

	updates := map[string]interface{}{
		"google_oauth_refresh_token": refreshToken,
		"google_oauth_scopes":        scopes,
		"google_oauth_connected_at":  s.now().UTC(),
		"google_oauth_revoked_at":    nil,
	}
	if !token.Expiry.IsZero() {
		updates["google_oauth_expires_at"] = token.Expiry.UTC()
	}

	if err := s.db.WithContext(ctx).Model(&models.Tutor{}).
		Where("id = ?", tutor.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("persist credential for tutor %d: %w", tutor.ID, err)
	}

	target := decoded.Redirect
	if target == "" {
		target = s.frontendURL
	}
	if target == "" {
		target = "/"
	}
	return &CallbackResult{RedirectTarget: target}, nil
}

// Status reports the credential's health without mutating it. An expired or
// revoked grant reports not-connected instead of failing; only
// infrastructure errors propagate.
func (s *OAuthService) Status(ctx context.Context, tutorID int) (*ConnectionStatus, error) {
	tutor, err := findTutor(ctx, s.db, tutorID)
	if err != nil {
		return nil, err
	}

	if !tutor.GoogleOAuth.Connected() {
		return &ConnectionStatus{Connected: false, Scopes: []string{}, Status: "missing_token"}, nil
	}

	status, err := s.introspect(ctx, tutor.GoogleOAuth.Token())
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeAuthFailed) {
			return &ConnectionStatus{Connected: false, Scopes: []string{}, Status: "invalid_grant"}, nil
		}
		return nil, err
	}

	status.Status = "connected"
	return status, nil
}

// ForceRefresh obtains a fresh access token and persists the new expiry.
// Unlike Status this is caller-initiated, so AUTH_FAILED propagates.
func (s *OAuthService) ForceRefresh(ctx context.Context, tutorID int) (*ConnectionStatus, error) {
	tutor, err := findTutor(ctx, s.db, tutorID)
	if err != nil {
		return nil, err
	}

	if !tutor.GoogleOAuth.Connected() {
		return nil, apperrors.NotConnected()
	}

	status, err := s.introspect(ctx, tutor.GoogleOAuth.Token())
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"google_oauth_revoked_at": nil,
	}
	if status.ExpiresAt != nil {
		updates["google_oauth_expires_at"] = status.ExpiresAt.UTC()
	}
	if err := s.db.WithContext(ctx).Model(&models.Tutor{}).
		Where("id = ?", tutor.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("persist refreshed expiry for tutor %d: %w", tutor.ID, err)
	}

	status.Status = "refreshed"
	return status, nil
}

// Revoke invalidates the credential at the provider and clears it locally.
// A tutor with nothing stored is already revoked: idempotent success.
func (s *OAuthService) Revoke(ctx context.Context, tutorID int) error {
	tutor, err := findTutor(ctx, s.db, tutorID)
	if err != nil {
		return err
	}

	if !tutor.GoogleOAuth.Connected() {
		return nil
	}

	if err := s.google.Revoke(ctx, tutor.GoogleOAuth.Token()); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"google_oauth_refresh_token": nil,
		"google_oauth_scopes":        "",
		"google_oauth_expires_at":    nil,
		"google_oauth_revoked_at":    s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Model(&models.Tutor{}).
		Where("id = ?", tutor.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("clear credential for tutor %d: %w", tutor.ID, err)
	}
	return nil
}

// introspect exchanges the refresh token for an access token and queries
// token metadata.
func (s *OAuthService) introspect(ctx context.Context, refreshToken string) (*ConnectionStatus, error) {
	token, err := s.google.AccessToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	info, err := s.google.TokenInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	status := &ConnectionStatus{Connected: true, Scopes: info.Scopes}
	if status.Scopes == nil {
		status.Scopes = []string{}
	}
	switch {
	case !info.ExpiresAt.IsZero():
		expiresAt := info.ExpiresAt.UTC()
		status.ExpiresAt = &expiresAt
	case !token.Expiry.IsZero():
		expiresAt := token.Expiry.UTC()
		status.ExpiresAt = &expiresAt
	}
	return status, nil
}
