package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/justsurfingit/elevate-tracker/internal/config"
)

// GoogleProvider runs the OAuth2 authorization code flow against Google.
type GoogleProvider struct {
	OAuth    *oauth2.Config
	Verifier TokenVerifier
	MaxAge   time.Duration
}

func NewGoogleProvider(cfg *config.Config, verifier TokenVerifier) *GoogleProvider {
	return &GoogleProvider{
		OAuth: &oauth2.Config{
			ClientID:     cfg.Auth.GoogleClientID,
			ClientSecret: cfg.Auth.GoogleClientSecret,
			RedirectURL:  cfg.Server.PublicURL + "/api/auth/callback/google",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		Verifier: verifier,
		MaxAge:   cfg.Auth.SessionMaxAge,
	}
}

// AuthCodeURL asks for offline access and always shows the consent screen so a
// refresh token is issued.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.OAuth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for tokens and opens a session.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Session, error) {
	tok, err := p.OAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, errors.New("token response has no id_token")
	}
	id, err := p.Verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return NewSession(id, rawID, tok.AccessToken, tok.RefreshToken, p.MaxAge), nil
}

// SessionFromIDToken builds a short-lived session for callers that present a
// Google id_token directly instead of a session cookie.
func SessionFromIDToken(ctx context.Context, v TokenVerifier, rawID string) (*Session, error) {
	id, err := v.Verify(ctx, rawID)
	if err != nil {
		return nil, err
	}
	s := NewSession(id, rawID, "", "", time.Hour)
	s.ID = ""
	return s, nil
}
