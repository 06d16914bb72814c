package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tutorbridge/backend/internal/apperrors"
	"github.com/tutorbridge/backend/internal/config"
)

// OAuthClient wraps Google's OAuth token endpoints. Every operation is
// scoped to one tutor's credential; there is no system-wide token.
type OAuthClient struct {
	cfg        config.GoogleConfig
	httpClient *http.Client
}

// TokenInfo is the introspection result for an access token.
type TokenInfo struct {
	Scopes    []string
	ExpiresAt time.Time
}

// NewOAuthClient creates an OAuth client for the configured Google project.
func NewOAuthClient(cfg config.GoogleConfig) *OAuthClient {
	return &OAuthClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Config builds the oauth2 configuration, or fails with
// AUTH_CONFIGURATION_MISSING when client credentials are not set.
func (c *OAuthClient) Config() (*oauth2.Config, error) {
	if !c.cfg.Configured() {
		return nil, apperrors.AuthConfigurationMissing()
	}

	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURL,
		Scopes:       c.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.cfg.AuthURL,
			TokenURL: c.cfg.TokenURL,
		},
	}, nil
}

// Scopes returns the scope set requested on authorization.
func (c *OAuthClient) Scopes() []string {
	return c.cfg.Scopes
}

// AuthCodeURL returns the consent URL requesting offline access, so a
// refresh token is issued, with forced consent so reconnecting tutors get a
// fresh one.
func (c *OAuthClient) AuthCodeURL(state string) (string, error) {
	conf, err := c.Config()
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for tokens.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	conf, err := c.Config()
	if err != nil {
		return nil, err
	}

	token, err := conf.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, MapError(err)
	}
	return token, nil
}

// AccessToken exchanges a stored refresh token for a fresh access token.
func (c *OAuthClient) AccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	conf, err := c.Config()
	if err != nil {
		return nil, err
	}

	source := conf.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, MapError(err)
	}
	return token, nil
}

// TokenInfo queries Google's introspection endpoint for the granted scopes
// and remaining lifetime of an access token.
func (c *OAuthClient) TokenInfo(ctx context.Context, accessToken string) (*TokenInfo, error) {
	endpoint := c.cfg.TokenInfoURL + "?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, MapError(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, MapError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, MapError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, MapError(newAPIError(resp.StatusCode, body))
	}

	// The tokeninfo endpoint returns numeric fields as JSON strings.
	var payload struct {
		Scope     string `json:"scope"`
		ExpiresIn string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, MapError(err)
	}

	info := &TokenInfo{Scopes: strings.Fields(payload.Scope)}
	if seconds, err := strconv.Atoi(payload.ExpiresIn); err == nil && seconds > 0 {
		info.ExpiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
	}
	return info, nil
}

// Revoke invalidates a refresh token at the provider.
func (c *OAuthClient) Revoke(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RevokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return MapError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return MapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return MapError(newAPIError(resp.StatusCode, body))
	}
	return nil
}

// withHTTPClient makes the oauth2 package use our bounded-timeout client.
func (c *OAuthClient) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
