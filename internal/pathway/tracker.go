// Package pathway tracks which items of a learning pathway a user has completed.
//
// Items are addressed by position inside the pathway tree:
//
//	step-{i}-goal-{g}
//	step-{i}-topic-{t}
//	step-{i}-topic-{t}-project-{p}
//	step-{i}-milestone
//
// Positional ids stop matching if the pathway is regenerated with a different shape.
// Stale reports such ids; they are kept in the set rather than dropped.
package pathway

import (
	"fmt"
	"math"

	"github.com/justsurfingit/elevate-tracker/internal/models"
)

func GoalID(step, goal int) string { return fmt.Sprintf("step-%d-goal-%d", step, goal) }

func TopicID(step, topic int) string { return fmt.Sprintf("step-%d-topic-%d", step, topic) }

func ProjectID(step, topic, project int) string {
	return fmt.Sprintf("step-%d-topic-%d-project-%d", step, topic, project)
}

func MilestoneID(step int) string { return fmt.Sprintf("step-%d-milestone", step) }

// Stats summarizes completion of one pathway.
type Stats struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Tracker is the completion set of one pathway. It is not safe for concurrent use.
type Tracker struct {
	done  map[string]struct{}
	order []string
}

// NewTracker returns a tracker with the given items already completed.
func NewTracker(items ...string) *Tracker {
	t := &Tracker{done: make(map[string]struct{}, len(items))}
	for _, id := range items {
		if _, ok := t.done[id]; ok {
			continue
		}
		t.done[id] = struct{}{}
		t.order = append(t.order, id)
	}
	return t
}

// Toggle flips membership of itemID and reports whether it is now completed.
func (t *Tracker) Toggle(itemID string) bool {
	if _, ok := t.done[itemID]; ok {
		delete(t.done, itemID)
		for i, id := range t.order {
			if id == itemID {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		return false
	}
	t.done[itemID] = struct{}{}
	t.order = append(t.order, itemID)
	return true
}

func (t *Tracker) IsCompleted(itemID string) bool {
	_, ok := t.done[itemID]
	return ok
}

// Items returns the completed ids in the order they were marked.
func (t *Tracker) Items() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Stats counts every goal, topic and topic project of each step plus one milestone
// slot per step, whether or not the step has a milestone project.
func (t *Tracker) Stats(p *models.LearningPathway) Stats {
	var s Stats
	if p == nil {
		return s
	}
	walk(p, func(id string) {
		s.Total++
		if t.IsCompleted(id) {
			s.Completed++
		}
	})
	if s.Total > 0 {
		s.Percentage = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}

// Progress is the snapshot persisted with a saved pathway.
func (t *Tracker) Progress(p *models.LearningPathway) models.PathwayProgress {
	s := t.Stats(p)
	return models.PathwayProgress{
		CompletedItems: t.Items(),
		TotalItems:     s.Total,
		Percentage:     s.Percentage,
	}
}

// Stale returns completed ids that no longer address an item of p.
func (t *Tracker) Stale(p *models.LearningPathway) []string {
	valid := make(map[string]struct{})
	if p != nil {
		walk(p, func(id string) { valid[id] = struct{}{} })
	}
	var stale []string
	for _, id := range t.order {
		if _, ok := valid[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}

// IDs lists every addressable item of p in display order.
func IDs(p *models.LearningPathway) []string {
	var out []string
	if p != nil {
		walk(p, func(id string) { out = append(out, id) })
	}
	return out
}

func walk(p *models.LearningPathway, fn func(id string)) {
	for i, step := range p.Steps {
		for g := range step.CoreGoals {
			fn(GoalID(i, g))
		}
		for ti, topic := range step.Topics {
			fn(TopicID(i, ti))
			for pi := range topic.Projects {
				fn(ProjectID(i, ti, pi))
			}
		}
		fn(MilestoneID(i))
	}
}
