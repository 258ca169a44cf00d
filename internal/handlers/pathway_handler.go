package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/backend"
	"github.com/justsurfingit/elevate-tracker/internal/dtos"
	"github.com/justsurfingit/elevate-tracker/internal/logging"
	"github.com/justsurfingit/elevate-tracker/internal/middleware"
	"github.com/justsurfingit/elevate-tracker/internal/models"
	"github.com/justsurfingit/elevate-tracker/internal/pathway"
)

type PathwayHandler struct {
	Backend *backend.Client
	Log     logrus.FieldLogger
}

func NewPathwayHandler(b *backend.Client, log logrus.FieldLogger) *PathwayHandler {
	return &PathwayHandler{Backend: b, Log: log.WithField("component", "pathways")}
}

// backendFailure writes the response for a failed backend call.
func backendFailure(c *gin.Context, log logrus.FieldLogger, err error) {
	var httpErr *backend.HTTPError
	var resultErr *backend.ResultError
	switch {
	case errors.Is(err, backend.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Saved pathway not found"})
	case errors.Is(err, backend.ErrPathwayNotReady):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &resultErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": resultErr.Message})
	case errors.As(err, &httpErr):
		log.WithError(err).Warn("Backend rejected request")
		c.JSON(httpErr.StatusCode, gin.H{"error": "AI service request failed"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "AI service timed out"})
	default:
		log.WithError(err).Error("Backend unreachable")
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI service is unavailable"})
	}
}

// Generate is POST /api/pathways/generate
func (h *PathwayHandler) Generate(c *gin.Context) {
	var req dtos.GeneratePathwayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Topic is required"})
		return
	}
	p, err := h.Backend.GeneratePathway(c.Request.Context(), middleware.SessionFrom(c), req.Topic)
	if err != nil {
		backendFailure(c, logging.FromContext(c, h.Log), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed", "learning_pathway": p})
}

func bindProgress(c *gin.Context) (*pathway.Tracker, *models.LearningPathway, bool) {
	var req dtos.PathwayProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return nil, nil, false
	}
	return pathway.NewTracker(req.CompletedItems...), req.Pathway, true
}

// Stats is POST /api/pathways/stats
func (h *PathwayHandler) Stats(c *gin.Context) {
	t, p, ok := bindProgress(c)
	if !ok {
		return
	}
	s := t.Stats(p)
	c.JSON(http.StatusOK, dtos.PathwayStatsResponse{
		Completed:  s.Completed,
		Total:      s.Total,
		Percentage: s.Percentage,
		Stale:      t.Stale(p),
	})
}

// Save is POST /api/pathways/save
func (h *PathwayHandler) Save(c *gin.Context) {
	t, p, ok := bindProgress(c)
	if !ok {
		return
	}
	progress := t.Progress(p)
	id, err := h.Backend.SavePathway(c.Request.Context(), middleware.SessionFrom(c), p, progress)
	if err != nil {
		backendFailure(c, logging.FromContext(c, h.Log), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "pathway_id": id, "progress": progress})
}

// Saved is GET /api/pathways/saved
func (h *PathwayHandler) Saved(c *gin.Context) {
	all, err := h.Backend.SavedPathways(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		backendFailure(c, logging.FromContext(c, h.Log), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pathways": all})
}

// Toggle is POST /api/pathways/saved/:id/toggle
func (h *PathwayHandler) Toggle(c *gin.Context) {
	var req dtos.ToggleItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required"})
		return
	}
	ctx := c.Request.Context()
	s := middleware.SessionFrom(c)
	log := logging.FromContext(c, h.Log)
	id := c.Param("id")

	saved, err := h.Backend.SavedPathway(ctx, s, id)
	if err != nil {
		backendFailure(c, log, err)
		return
	}

	t := pathway.NewTracker(saved.Progress.CompletedItems...)
	completed := t.Toggle(req.ItemID)
	progress := t.Progress(&saved.LearningPathway)
	if err := h.Backend.UpdatePathwayProgress(ctx, s, id, progress); err != nil {
		backendFailure(c, log, err)
		return
	}

	c.JSON(http.StatusOK, dtos.ToggleItemResponse{ItemID: req.ItemID, Completed: completed, Progress: progress})
}

// Delete is DELETE /api/pathways/saved/:id
func (h *PathwayHandler) Delete(c *gin.Context) {
	if err := h.Backend.DeleteSavedPathway(c.Request.Context(), middleware.SessionFrom(c), c.Param("id")); err != nil {
		backendFailure(c, logging.FromContext(c, h.Log), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Pathway deleted successfully"})
}
