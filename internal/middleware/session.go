package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
)

const sessionKey = "session"

// SessionAuth resolves the caller's session from the session cookie or from a
// Google id_token presented as a bearer token.
type SessionAuth struct {
	Store      auth.SessionStore
	Verifier   auth.TokenVerifier
	CookieName string
	Log        logrus.FieldLogger
}

func NewSessionAuth(store auth.SessionStore, verifier auth.TokenVerifier, cookieName string, log logrus.FieldLogger) *SessionAuth {
	return &SessionAuth{Store: store, Verifier: verifier, CookieName: cookieName, Log: log.WithField("component", "session_auth")}
}

// RequireSession rejects the request with 401 unless it carries a valid session.
func (a *SessionAuth) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := a.resolve(c)
		if !s.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// OptionalSession attaches the session when there is one and never rejects.
func (a *SessionAuth) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(sessionKey, a.resolve(c))
		c.Next()
	}
}

func (a *SessionAuth) resolve(c *gin.Context) *auth.Session {
	ctx := c.Request.Context()

	if a.Verifier != nil {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			s, err := auth.SessionFromIDToken(ctx, a.Verifier, token)
			if err == nil {
				return s
			}
			a.Log.WithError(err).Debug("Bearer token rejected")
			return auth.Unauthenticated()
		}
	}

	if a.Store != nil {
		if id, err := c.Cookie(a.CookieName); err == nil && id != "" {
			s, err := a.Store.Get(ctx, id)
			if err == nil {
				return s
			}
			a.Log.WithError(err).Debug("Session cookie rejected")
		}
	}
	return auth.Unauthenticated()
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// SessionFrom returns the session set by the session middleware, or an
// unauthenticated one.
func SessionFrom(c *gin.Context) *auth.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*auth.Session); ok && s != nil {
			return s
		}
	}
	return auth.Unauthenticated()
}
