package models

import (
	"bytes"
	"encoding/json"
)

// TextOr holds a backend field that is either a bare string (older responses) or a
// structured object. It is resolved once while decoding.
type TextOr[T any] struct {
	Text  string
	Value *T
}

// Legacy reports whether the field arrived as a plain string.
func (v TextOr[T]) Legacy() bool { return v.Value == nil }

func (v *TextOr[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		v.Value = nil
		return json.Unmarshal(data, &v.Text)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	v.Text = ""
	v.Value = &out
	return nil
}

func (v TextOr[T]) MarshalJSON() ([]byte, error) {
	if v.Value == nil {
		return json.Marshal(v.Text)
	}
	return json.Marshal(v.Value)
}

type Resource struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	Duration    string `json:"duration,omitempty"`
	Free        bool   `json:"free"`
	Description string `json:"description,omitempty"`
}

type PracticeResource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type Project struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	SkillsUsed        []string `json:"skills_used,omitempty"`
	EstimatedTime     string   `json:"estimated_time,omitempty"`
	Difficulty        string   `json:"difficulty,omitempty"`
	GithubSearchTerms []string `json:"github_search_terms,omitempty"`
}

type Topic struct {
	Name              string             `json:"name"`
	WhyImportant      string             `json:"why_important,omitempty"`
	Subtopics         []string           `json:"subtopics,omitempty"`
	ConceptsToMaster  []string           `json:"concepts_to_master,omitempty"`
	Resources         []TextOr[Resource] `json:"resources,omitempty"`
	PracticeResources []PracticeResource `json:"practice_resources,omitempty"`
	Projects          []TextOr[Project]  `json:"projects,omitempty"`
}

type MilestoneProject struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Deliverables       []string `json:"deliverables,omitempty"`
	SkillsDemonstrated []string `json:"skills_demonstrated,omitempty"`
}

type Step struct {
	Step             int               `json:"step"`
	Title            string            `json:"title"`
	Duration         string            `json:"duration"`
	SkillLevel       string            `json:"skill_level,omitempty"`
	CoreGoals        []string          `json:"core_goals"`
	LearningOutcomes []string          `json:"learning_outcomes,omitempty"`
	Topics           []Topic           `json:"topics"`
	MilestoneProject *MilestoneProject `json:"milestone_project,omitempty"`
	AssessmentIdeas  []string          `json:"assessment_ideas,omitempty"`
}

type IndustryReadiness struct {
	Category       string   `json:"category"`
	Recommendation string   `json:"recommendation"`
	Resources      []string `json:"resources,omitempty"`
}

type ContinuousLearning struct {
	Area        string   `json:"area"`
	Description string   `json:"description"`
	Resources   []string `json:"resources,omitempty"`
	Communities []string `json:"communities,omitempty"`
}

type Community struct {
	Name        string `json:"name"`
	Platform    string `json:"platform"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type Certification struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	URL      string `json:"url"`
	Cost     string `json:"cost"`
	Value    string `json:"value"`
}

// LearningPathway is the tree generated by the AI backend for one topic.
type LearningPathway struct {
	Topic              string                       `json:"topic"`
	Overview           string                       `json:"overview,omitempty"`
	Prerequisites      []string                     `json:"prerequisites,omitempty"`
	Timeline           string                       `json:"timeline"`
	CareerOutcomes     []string                     `json:"career_outcomes,omitempty"`
	Steps              []Step                       `json:"steps"`
	IndustryReadiness  []TextOr[IndustryReadiness]  `json:"industry_readiness,omitempty"`
	ContinuousLearning []TextOr[ContinuousLearning] `json:"continuous_learning,omitempty"`
	CommunitiesToJoin  []Community                  `json:"communities_to_join,omitempty"`
	CertificationPaths []Certification              `json:"certification_paths,omitempty"`
}

// PathwayProgress is the progress snapshot stored next to a saved pathway.
type PathwayProgress struct {
	CompletedItems []string `json:"completed_items"`
	TotalItems     int      `json:"total_items"`
	Percentage     int      `json:"percentage"`
	LastAccessed   string   `json:"last_accessed,omitempty"`
}

// SavedPathway is a pathway the user saved for tracking.
type SavedPathway struct {
	EntryID         string          `json:"entry_id,omitempty"`
	PathwayID       string          `json:"pathway_id"`
	Topic           string          `json:"topic"`
	LearningPathway LearningPathway `json:"learning_pathway"`
	Progress        PathwayProgress `json:"progress"`
	SavedAt         string          `json:"saved_at,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
	Status          string          `json:"status,omitempty"`
}
