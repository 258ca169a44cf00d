package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
	"github.com/justsurfingit/elevate-tracker/internal/backend"
	"github.com/justsurfingit/elevate-tracker/internal/config"
	"github.com/justsurfingit/elevate-tracker/internal/database"
	"github.com/justsurfingit/elevate-tracker/internal/logging"
	"github.com/justsurfingit/elevate-tracker/internal/middleware"
	"github.com/justsurfingit/elevate-tracker/internal/services"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Store    database.DocumentStore
	Jobs     *services.JobApplicationService
	LLM      *services.LLMService
	Backend  *backend.Client
	Sessions auth.SessionStore
	Verifier auth.TokenVerifier
	Provider OAuthProvider
}

// HealthCheck is GET /api/v1/health
func HealthCheck(store database.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "ok"})
	}
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(d.Log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	corsCfg.AllowCredentials = true
	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))

	sessions := middleware.NewSessionAuth(d.Sessions, d.Verifier, cfg.Auth.CookieName, d.Log)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, d.Log)

	jobHandler := NewJobHandler(d.LLM, d.Jobs, d.Log)
	featureHandler := NewFeatureHandler(d.Backend, d.Log)
	pathwayHandler := NewPathwayHandler(d.Backend, d.Log)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck(d.Store))
	}

	if d.Provider != nil {
		authHandler := NewAuthHandler(cfg, d.Provider, d.Sessions, d.Log)
		a := r.Group("/api/auth")
		a.GET("/signin", authHandler.SignIn)
		a.GET("/callback/google", authHandler.Callback)
		a.GET("/session", sessions.OptionalSession(), authHandler.Session)
		a.POST("/signout", authHandler.SignOut)
	}

	jobs := r.Group("/api/job-applications", sessions.OptionalSession())
	{
		jobs.GET("", jobHandler.ListApplications)
		jobs.POST("", jobHandler.CreateApplication)
		jobs.PUT("", jobHandler.UpdateApplication)
		jobs.DELETE("", jobHandler.DeleteApplication)
		jobs.POST("/extract", sessions.RequireSession(), limiter.Middleware(), jobHandler.ParseJob)
	}

	features := r.Group("/api/features", sessions.RequireSession(), limiter.Middleware())
	featureHandler.Register(features)

	pathways := r.Group("/api/pathways", sessions.RequireSession(), limiter.Middleware())
	{
		pathways.POST("/generate", pathwayHandler.Generate)
		pathways.POST("/stats", pathwayHandler.Stats)
		pathways.POST("/save", pathwayHandler.Save)
		pathways.GET("/saved", pathwayHandler.Saved)
		pathways.POST("/saved/:id/toggle", pathwayHandler.Toggle)
		pathways.DELETE("/saved/:id", pathwayHandler.Delete)
	}

	return r
}
