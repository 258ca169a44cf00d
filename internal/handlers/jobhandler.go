package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/dtos"
	"github.com/justsurfingit/elevate-tracker/internal/logging"
	"github.com/justsurfingit/elevate-tracker/internal/middleware"
	"github.com/justsurfingit/elevate-tracker/internal/models"
	"github.com/justsurfingit/elevate-tracker/internal/services"
)

// JobHandler serves the job applications resource and posting extraction.
type JobHandler struct {
	LLMService *services.LLMService
	JobService *services.JobApplicationService
	Log        logrus.FieldLogger
}

func NewJobHandler(llm *services.LLMService, j *services.JobApplicationService, log logrus.FieldLogger) *JobHandler {
	return &JobHandler{
		LLMService: llm,
		JobService: j,
		Log:        log,
	}
}

// ownsEmail rejects requests where a signed-in caller names another user's email.
// email must already be normalized.
func ownsEmail(c *gin.Context, email string) bool {
	s := middleware.SessionFrom(c)
	if s.Authenticated() && models.NormalizeEmail(s.Email) != email {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return false
	}
	return true
}

// notFound maps store lookups to the 404 messages clients show.
func notFound(err error) (string, bool) {
	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		return "No applications found for this user", true
	case errors.Is(err, models.ErrApplicationNotFound):
		return "Application not found", true
	}
	return "", false
}

// ListApplications is GET /api/job-applications?email=
func (h *JobHandler) ListApplications(c *gin.Context) {
	email := models.NormalizeEmail(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}
	if !ownsEmail(c, email) {
		return
	}

	apps, err := h.JobService.List(c.Request.Context(), email)
	if err != nil {
		logging.FromContext(c, h.Log).WithError(err).Error("Failed to fetch applications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch applications"})
		return
	}
	c.JSON(http.StatusOK, dtos.ListApplicationsResponse{Applications: apps, Count: len(apps)})
}

// CreateApplication is POST /api/job-applications
func (h *JobHandler) CreateApplication(c *gin.Context) {
	var req dtos.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	req.Email = models.NormalizeEmail(req.Email)
	if req.Email == "" || req.Application == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and application data are required"})
		return
	}
	app := *req.Application
	if app.Company == "" || app.Position == "" || app.Location == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Company, position, and location are required"})
		return
	}
	if !ownsEmail(c, req.Email) {
		return
	}

	created, err := h.JobService.Create(c.Request.Context(), req.Email, app)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, dtos.ApplicationResponse{Success: true, Application: created})
	case models.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrDuplicateID):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logging.FromContext(c, h.Log).WithError(err).Error("Failed to create application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create application"})
	}
}

// UpdateApplication is PUT /api/job-applications
func (h *JobHandler) UpdateApplication(c *gin.Context) {
	var req dtos.UpdateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	req.Email = models.NormalizeEmail(req.Email)
	if req.Email == "" || req.ApplicationID == "" || req.Updates == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, applicationId, and updates are required"})
		return
	}
	if !ownsEmail(c, req.Email) {
		return
	}

	updated, err := h.JobService.Update(c.Request.Context(), req.Email, req.ApplicationID, *req.Updates)
	if err != nil {
		if msg, ok := notFound(err); ok {
			c.JSON(http.StatusNotFound, gin.H{"error": msg})
			return
		}
		if models.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.FromContext(c, h.Log).WithError(err).Error("Failed to update application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update application"})
		return
	}
	c.JSON(http.StatusOK, dtos.ApplicationResponse{Success: true, Application: updated})
}

// DeleteApplication is DELETE /api/job-applications
func (h *JobHandler) DeleteApplication(c *gin.Context) {
	var req dtos.DeleteApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	req.Email = models.NormalizeEmail(req.Email)
	if req.Email == "" || req.ApplicationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and applicationId are required"})
		return
	}
	if !ownsEmail(c, req.Email) {
		return
	}

	if err := h.JobService.Delete(c.Request.Context(), req.Email, req.ApplicationID); err != nil {
		if msg, ok := notFound(err); ok {
			c.JSON(http.StatusNotFound, gin.H{"error": msg})
			return
		}
		logging.FromContext(c, h.Log).WithError(err).Error("Failed to delete application")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete application"})
		return
	}
	c.JSON(http.StatusOK, dtos.MessageResponse{Success: true, Message: "Application deleted successfully"})
}

// ParseJob is POST /api/job-applications/extract
func (h *JobHandler) ParseJob(c *gin.Context) {
	var req dtos.JobExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}

	draft, err := h.LLMService.ExtractApplication(c.Request.Context(), req.RawHTML, req.URL)
	if errors.Is(err, services.ErrLLMDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI extraction is not configured"})
		return
	}
	if err != nil {
		logging.FromContext(c, h.Log).WithError(err).Warn("AI extraction failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI Extraction failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        draft,
		"application": draft.Application(),
	})
}
