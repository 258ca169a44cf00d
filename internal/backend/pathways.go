package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
	"github.com/justsurfingit/elevate-tracker/internal/models"
)

var ErrPathwayNotReady = errors.New("Pathway generation in progress or failed")

// ResultError is a 2xx reply whose body reports success=false.
type ResultError struct {
	Message string
}

func (e *ResultError) Error() string { return e.Message }

type generateResponse struct {
	Status          string                  `json:"status"`
	Error           string                  `json:"error"`
	LearningPathway *models.LearningPathway `json:"learning_pathway"`
}

type result struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r result) err(fallback string) error {
	if r.Success {
		return nil
	}
	if r.Error != "" {
		return &ResultError{Message: r.Error}
	}
	return &ResultError{Message: fallback}
}

// GeneratePathway asks the backend for a pathway on topic.
func (c *Client) GeneratePathway(ctx context.Context, s *auth.Session, topic string) (*models.LearningPathway, error) {
	var resp generateResponse
	if err := c.do(ctx, s, http.MethodPost, "/learning_pathways", map[string]string{"topic": topic}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &ResultError{Message: resp.Error}
	}
	if resp.Status != "completed" || resp.LearningPathway == nil {
		return nil, ErrPathwayNotReady
	}
	return resp.LearningPathway, nil
}

type pathwayData struct {
	Topic           string                  `json:"topic"`
	LearningPathway *models.LearningPathway `json:"learning_pathway"`
	Progress        models.PathwayProgress  `json:"progress"`
}

// SavePathway stores p with its progress and returns the new pathway id.
func (c *Client) SavePathway(ctx context.Context, s *auth.Session, p *models.LearningPathway, progress models.PathwayProgress) (string, error) {
	in := map[string]pathwayData{
		"pathway_data": {Topic: p.Topic, LearningPathway: p, Progress: progress},
	}
	var resp struct {
		result
		PathwayID string `json:"pathway_id"`
	}
	if err := c.do(ctx, s, http.MethodPost, "/save_learning_pathway", in, &resp); err != nil {
		return "", err
	}
	if err := resp.err("Failed to save learning pathway"); err != nil {
		return "", err
	}
	return resp.PathwayID, nil
}

func (c *Client) SavedPathways(ctx context.Context, s *auth.Session) ([]models.SavedPathway, error) {
	var resp struct {
		result
		Pathways []models.SavedPathway `json:"pathways"`
	}
	if err := c.do(ctx, s, http.MethodGet, "/saved_learning_pathways", nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("Failed to fetch saved pathways"); err != nil {
		return nil, err
	}
	return resp.Pathways, nil
}

// SavedPathway finds one saved pathway by id.
func (c *Client) SavedPathway(ctx context.Context, s *auth.Session, id string) (*models.SavedPathway, error) {
	all, err := c.SavedPathways(ctx, s)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].PathwayID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("saved pathway %s: %w", id, models.ErrNotFound)
}

func (c *Client) UpdatePathwayProgress(ctx context.Context, s *auth.Session, id string, progress models.PathwayProgress) error {
	in := map[string]models.PathwayProgress{"progress_data": progress}
	var resp result
	if err := c.do(ctx, s, http.MethodPut, "/update_pathway_progress/"+url.PathEscape(id), in, &resp); err != nil {
		return err
	}
	return resp.err("Failed to update progress")
}

func (c *Client) DeleteSavedPathway(ctx context.Context, s *auth.Session, id string) error {
	var resp result
	if err := c.do(ctx, s, http.MethodDelete, "/delete_saved_pathway/"+url.PathEscape(id), nil, &resp); err != nil {
		return err
	}
	return resp.err("Failed to delete pathway")
}
