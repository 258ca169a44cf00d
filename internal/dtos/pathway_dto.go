package dtos

import "github.com/justsurfingit/elevate-tracker/internal/models"

type GeneratePathwayRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// PathwayProgressRequest carries a pathway with the items completed so far.
type PathwayProgressRequest struct {
	Pathway        *models.LearningPathway `json:"pathway" binding:"required"`
	CompletedItems []string                `json:"completed_items"`
}

type ToggleItemRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

type PathwayStatsResponse struct {
	Completed  int      `json:"completed"`
	Total      int      `json:"total"`
	Percentage int      `json:"percentage"`
	Stale      []string `json:"stale_items,omitempty"`
}

type ToggleItemResponse struct {
	ItemID    string                 `json:"item_id"`
	Completed bool                   `json:"completed"`
	Progress  models.PathwayProgress `json:"progress"`
}
