package auth

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

var ErrInvalidToken = errors.New("invalid Google authentication token")

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// Identity is what a verified id_token says about the user.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// GoogleVerifier checks id_token signatures, audience and issuer against Google.
type GoogleVerifier struct {
	Audience string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{Audience: clientID}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if v.Audience == "" {
		return nil, errors.New("google client id not configured")
	}
	payload, err := idtoken.Validate(ctx, token, v.Audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !googleIssuers[payload.Issuer] {
		return nil, fmt.Errorf("%w: issuer %q", ErrInvalidToken, payload.Issuer)
	}
	return identityFromClaims(payload.Subject, payload.Claims)
}

func identityFromClaims(subject string, claims map[string]interface{}) (*Identity, error) {
	email, _ := claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	return &Identity{Subject: subject, Email: email, Name: name, Picture: picture}, nil
}
