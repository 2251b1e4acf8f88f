package oidcauth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/sentinel/core/session"
)

var (
	ErrNoIssuer   = errors.New("oidc issuer is not configured")
	ErrNoIDToken  = errors.New("token response has no id_token")
	ErrNoSubject  = errors.New("id token has no subject")
	ErrNoRefresh  = errors.New("refresh token is empty")
	ErrNoNewToken = errors.New("token endpoint returned no access token")
)

// Config holds the OpenID Connect client settings.
type Config struct {
	Issuer       string   `env:"OIDC_ISSUER"`
	ClientID     string   `env:"OIDC_CLIENT_ID"`
	ClientSecret string   `env:"OIDC_CLIENT_SECRET"`
	RedirectURL  string   `env:"OIDC_REDIRECT_URL"`
	Scopes       []string `env:"OIDC_SCOPES" envSeparator:"," envDefault:"openid,profile,email,offline_access"`
}

// Provider adapts an OpenID Connect issuer to session.AuthProvider. It keeps
// the latest token set obtained for the local user; Refresh can be passed to
// session.Manager.Initialize directly.
type Provider struct {
	provider *oidc.Provider
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier

	mu     sync.RWMutex
	token  *oauth2.Token
	userID string
	// refresh tokens the issuer has rotated away from
	superseded map[string]struct{}
}

var _ session.AuthProvider = (*Provider)(nil)

// New discovers the issuer and builds a provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Issuer == "" {
		return nil, ErrNoIssuer
	}
	p, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return NewFromProvider(p, cfg), nil
}

// NewFromProvider builds a provider from an already discovered issuer.
func NewFromProvider(p *oidc.Provider, cfg Config) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}
	return &Provider{
		provider: p,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     p.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		verifier: p.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}
}

// OAuth2Config exposes the client configuration for the login flow.
func (p *Provider) OAuth2Config() *oauth2.Config {
	return p.oauth
}

// SetToken verifies the id_token of a login response and records the token
// set for its subject.
func (p *Provider) SetToken(ctx context.Context, token *oauth2.Token) error {
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return ErrNoIDToken
	}
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return fmt.Errorf("id token verification failed: %w", err)
	}
	if idToken.Subject == "" {
		return ErrNoSubject
	}
	p.SetSession(token, idToken.Subject)
	return nil
}

// SetSession records a token set whose subject is already known.
func (p *Provider) SetSession(token *oauth2.Token, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	p.userID = userID
	p.superseded = nil
}

// SignOut forgets the recorded token set.
func (p *Provider) SignOut() {
	p.SetSession(nil, "")
}

// CurrentSession returns the recorded session, or nil when nobody signed in.
func (p *Provider) CurrentSession(ctx context.Context) (*session.AuthSession, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == nil || p.userID == "" {
		return nil, nil
	}
	return &session.AuthSession{
		AccessToken:  p.token.AccessToken,
		RefreshToken: p.token.RefreshToken,
		ExpiresAt:    p.token.Expiry,
		UserID:       p.userID,
	}, nil
}

// Refresh exchanges refreshToken at the token endpoint and returns the new
// access token. A rotated refresh token replaces the recorded one. Callers
// that only persist the access token keep sending the token they started
// with; a superseded token is exchanged as the recorded current one.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrNoRefresh
	}

	p.mu.RLock()
	if _, ok := p.superseded[refreshToken]; ok && p.token != nil && p.token.RefreshToken != "" {
		refreshToken = p.token.RefreshToken
	}
	p.mu.RUnlock()

	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", ErrNoNewToken
	}

	p.mu.Lock()
	if p.token != nil && p.token.RefreshToken == refreshToken {
		switch tok.RefreshToken {
		case "":
			tok.RefreshToken = refreshToken
		case refreshToken:
		default:
			if p.superseded == nil {
				p.superseded = make(map[string]struct{})
			}
			p.superseded[refreshToken] = struct{}{}
		}
		p.token = tok
	}
	p.mu.Unlock()

	return tok.AccessToken, nil
}

// Validate asks the userinfo endpoint whether token is still accepted.
func (p *Provider) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	if err != nil {
		return false, err
	}

	p.mu.RLock()
	userID := p.userID
	p.mu.RUnlock()
	return userID == "" || info.Subject == userID, nil
}
