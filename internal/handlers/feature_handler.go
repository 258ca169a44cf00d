package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/backend"
	"github.com/justsurfingit/elevate-tracker/internal/logging"
	"github.com/justsurfingit/elevate-tracker/internal/middleware"
)

// Feature is one AI backend endpoint exposed under /api/features.
type Feature struct {
	Name   string
	Method string
	// WithID appends the :id path parameter to the backend path.
	WithID bool
}

var Features = []Feature{
	{Name: "optimize_resume", Method: http.MethodPost},
	{Name: "extract_resume_text", Method: http.MethodPost},
	{Name: "generate_cover_letter", Method: http.MethodPost},
	{Name: "save_cover_letter", Method: http.MethodPost},
	{Name: "analyze_question", Method: http.MethodPost},
	{Name: "feedback", Method: http.MethodPost},
	{Name: "evaluate_project", Method: http.MethodPost},
	{Name: "skill_benchmark", Method: http.MethodPost},
	{Name: "role_transition", Method: http.MethodPost},
	{Name: "dashboard", Method: http.MethodGet},
	{Name: "saved_cover_letters", Method: http.MethodGet},
	{Name: "delete_cover_letter", Method: http.MethodDelete, WithID: true},
}

type FeatureHandler struct {
	Backend *backend.Client
	Log     logrus.FieldLogger
}

func NewFeatureHandler(b *backend.Client, log logrus.FieldLogger) *FeatureHandler {
	return &FeatureHandler{Backend: b, Log: log.WithField("component", "features")}
}

// Register mounts every feature on g.
func (h *FeatureHandler) Register(g *gin.RouterGroup) {
	for _, f := range Features {
		path := "/" + f.Name
		if f.WithID {
			path += "/:id"
		}
		g.Handle(f.Method, path, h.forward(f))
	}
}

func (h *FeatureHandler) forward(f Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := "/" + f.Name
		if f.WithID {
			path += "/" + c.Param("id")
		}

		var body []byte
		if c.Request.Body != nil && f.Method != http.MethodGet {
			data, err := c.GetRawData()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read request body"})
				return
			}
			body = data
		}
		// Passed through whole so multipart boundaries survive.
		contentType := c.GetHeader("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}

		resp, err := h.Backend.ForwardAs(c.Request.Context(), middleware.SessionFrom(c), f.Method, path, contentType, body)
		if err != nil {
			log := logging.FromContext(c, h.Log).WithField("feature", f.Name)
			switch {
			case errors.Is(err, backend.ErrUnauthenticated):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			case errors.Is(err, context.DeadlineExceeded):
				log.WithError(err).Warn("Backend timed out")
				c.JSON(http.StatusGatewayTimeout, gin.H{"error": "The analysis took too long, please try again"})
			default:
				log.WithError(err).Error("Backend unreachable")
				c.JSON(http.StatusBadGateway, gin.H{"error": "AI service is unavailable"})
			}
			return
		}

		contentType = resp.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		c.Data(resp.StatusCode, contentType, resp.Body)
	}
}
