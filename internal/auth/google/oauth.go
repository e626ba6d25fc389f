package google

import (
	"context"
	"strings"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/pysugar/photo-nexus/internal/config"
)

// DefaultScopes grant access to files the application creates in the
// user's Drive.
var DefaultScopes = []string{
	drive.DriveFileScope,
}

// OAuth performs the code exchange and refresh calls against Google's
// token endpoint.
type OAuth struct {
	config *oauth2.Config
}

// NewOAuth builds the OAuth2 config for Drive access.
func NewOAuth(cfg config.GoogleConfig) *OAuth {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &OAuth{config: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
		Endpoint:     googleOAuth.Endpoint,
	}}
}

// NewOAuthWithConfig wraps an explicit oauth2.Config.
func NewOAuthWithConfig(c *oauth2.Config) *OAuth {
	return &OAuth{config: c}
}

// AuthCodeURL returns the consent page URL. Offline access with forced
// consent makes Google return a refresh token on every connect.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return o.config.Exchange(ctx, code)
}

// Refresh obtains a new access token. The response may omit the refresh
// token; callers keep the one they already hold in that case.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	// A token carrying only the refresh token forces the source to hit the
	// endpoint instead of reusing a cached access token.
	return o.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// Configured reports whether client credentials are present.
func (o *OAuth) Configured() bool {
	return strings.TrimSpace(o.config.ClientID) != "" && strings.TrimSpace(o.config.ClientSecret) != ""
}

// TokenScope extracts the granted scope from a token response.
func TokenScope(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok {
		return s
	}
	return ""
}
