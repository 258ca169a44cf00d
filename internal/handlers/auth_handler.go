package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
	"github.com/justsurfingit/elevate-tracker/internal/config"
	"github.com/justsurfingit/elevate-tracker/internal/logging"
	"github.com/justsurfingit/elevate-tracker/internal/middleware"
)

const (
	stateCookie    = "elevate_oauth_state"
	callbackCookie = "elevate_callback"
	flowMaxAge     = 10 * 60
)

// OAuthProvider is the sign-in flow the auth handler drives.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Session, error)
}

type AuthHandler struct {
	Provider        OAuthProvider
	Sessions        auth.SessionStore
	CookieName      string
	CookieSecure    bool
	DefaultRedirect string
	Log             logrus.FieldLogger
}

func NewAuthHandler(cfg *config.Config, provider OAuthProvider, sessions auth.SessionStore, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		Provider:        provider,
		Sessions:        sessions,
		CookieName:      cfg.Auth.CookieName,
		CookieSecure:    cfg.Auth.CookieSecure,
		DefaultRedirect: cfg.Auth.DefaultRedirect,
		Log:             log.WithField("component", "auth"),
	}
}

// safeRedirect only allows same-site relative paths.
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return fallback
	}
	return target
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.CookieSecure, true)
}

// SignIn is GET /api/auth/signin?callbackUrl=
func (h *AuthHandler) SignIn(c *gin.Context) {
	state := uuid.NewString()
	h.setCookie(c, stateCookie, state, flowMaxAge)
	h.setCookie(c, callbackCookie, safeRedirect(c.Query("callbackUrl"), h.DefaultRedirect), flowMaxAge)
	c.Redirect(http.StatusFound, h.Provider.AuthCodeURL(state))
}

// Callback is GET /api/auth/callback/google
func (h *AuthHandler) Callback(c *gin.Context) {
	log := logging.FromContext(c, h.Log)

	want, err := c.Cookie(stateCookie)
	if err != nil || want == "" || c.Query("state") != want {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
		return
	}
	if e := c.Query("error"); e != "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign-in was cancelled: " + e})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}

	session, err := h.Provider.Exchange(c.Request.Context(), code)
	if err != nil {
		log.WithError(err).Warn("OAuth exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
		return
	}
	if err := h.Sessions.Save(c.Request.Context(), session); err != nil {
		log.WithError(err).Error("Could not save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create session"})
		return
	}

	redirect, _ := c.Cookie(callbackCookie)
	h.setCookie(c, stateCookie, "", -1)
	h.setCookie(c, callbackCookie, "", -1)
	h.setCookie(c, h.CookieName, session.ID, int(time.Until(session.ExpiresAt).Seconds()))

	log.WithField("email", session.Email).Info("User signed in")
	c.Redirect(http.StatusFound, safeRedirect(redirect, h.DefaultRedirect))
}

// Session is GET /api/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	s := middleware.SessionFrom(c)
	if !s.Authenticated() {
		c.JSON(http.StatusOK, gin.H{"state": auth.StateUnauthenticated})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state": s.State,
		"user": gin.H{
			"email": s.Email,
			"name":  s.Name,
			"image": s.Picture,
		},
		"expires": s.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// SignOut is POST /api/auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	if id, err := c.Cookie(h.CookieName); err == nil && id != "" {
		if err := h.Sessions.Delete(c.Request.Context(), id); err != nil {
			logging.FromContext(c, h.Log).WithError(err).Warn("Could not delete session")
		}
	}
	h.setCookie(c, h.CookieName, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
