package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDocumentNotFound    = errors.New("no applications found for this user")
	ErrApplicationNotFound = errors.New("application not found")
	ErrDuplicateID         = errors.New("an application with this id already exists")
)

// WorkType is where the job is performed.
type WorkType string

const (
	WorkRemote WorkType = "remote"
	WorkHybrid WorkType = "hybrid"
	WorkOnsite WorkType = "onsite"
)

// Status is the stage an application is in. Any status may move to any other.
type Status string

const (
	StatusApplied     Status = "applied"
	StatusPhoneScreen Status = "phone_screen"
	StatusInterview1  Status = "interview_1"
	StatusInterview2  Status = "interview_2"
	StatusInterview3  Status = "interview_3"
	StatusFinalRound  Status = "final_round"
	StatusOffer       Status = "offer"
	StatusRejected    Status = "rejected"
	StatusGhosted     Status = "ghosted"
)

// Statuses lists every status in pipeline order.
var Statuses = []Status{
	StatusApplied,
	StatusPhoneScreen,
	StatusInterview1,
	StatusInterview2,
	StatusInterview3,
	StatusFinalRound,
	StatusOffer,
	StatusRejected,
	StatusGhosted,
}

// Terminal reports whether the status closes the application.
func (s Status) Terminal() bool {
	return s == StatusOffer || s == StatusRejected
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// JobApplication is one tracked application. ID and ApplicationDate never change
// after creation.
type JobApplication struct {
	ID              string   `json:"id"`
	Company         string   `json:"company" validate:"required"`
	Position        string   `json:"position" validate:"required"`
	Location        string   `json:"location" validate:"required"`
	WorkType        WorkType `json:"workType" validate:"omitempty,work_type"`
	Salary          string   `json:"salary,omitempty"`
	Status          Status   `json:"status" validate:"omitempty,app_status"`
	ApplicationDate string   `json:"applicationDate"`
	LastUpdateDate  string   `json:"lastUpdateDate"`
	Notes           string   `json:"notes"`
	JobURL          string   `json:"jobUrl,omitempty"`
	ContactPerson   string   `json:"contactPerson,omitempty"`
	ContactEmail    string   `json:"contactEmail,omitempty"`
	NextStepDate    string   `json:"nextStepDate,omitempty"`
	Priority        Priority `json:"priority" validate:"omitempty,priority"`
}

// ApplicationPatch carries the fields of a partial update. Nil fields are left alone.
type ApplicationPatch struct {
	Company       *string   `json:"company,omitempty"`
	Position      *string   `json:"position,omitempty"`
	Location      *string   `json:"location,omitempty"`
	WorkType      *WorkType `json:"workType,omitempty"`
	Salary        *string   `json:"salary,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	JobURL        *string   `json:"jobUrl,omitempty"`
	ContactPerson *string   `json:"contactPerson,omitempty"`
	ContactEmail  *string   `json:"contactEmail,omitempty"`
	NextStepDate  *string   `json:"nextStepDate,omitempty"`
	Priority      *Priority `json:"priority,omitempty"`
}

// Apply returns a copy of app with the patch fields written over it.
func (p ApplicationPatch) Apply(app JobApplication) JobApplication {
	if p.Company != nil {
		app.Company = *p.Company
	}
	if p.Position != nil {
		app.Position = *p.Position
	}
	if p.Location != nil {
		app.Location = *p.Location
	}
	if p.WorkType != nil {
		app.WorkType = *p.WorkType
	}
	if p.Salary != nil {
		app.Salary = *p.Salary
	}
	if p.Status != nil {
		app.Status = *p.Status
	}
	if p.Notes != nil {
		app.Notes = *p.Notes
	}
	if p.JobURL != nil {
		app.JobURL = *p.JobURL
	}
	if p.ContactPerson != nil {
		app.ContactPerson = *p.ContactPerson
	}
	if p.ContactEmail != nil {
		app.ContactEmail = *p.ContactEmail
	}
	if p.NextStepDate != nil {
		app.NextStepDate = *p.NextStepDate
	}
	if p.Priority != nil {
		app.Priority = *p.Priority
	}
	return app
}

// PatchFrom builds a patch that rewrites every mutable field of app.
func PatchFrom(app JobApplication) ApplicationPatch {
	return ApplicationPatch{
		Company:       &app.Company,
		Position:      &app.Position,
		Location:      &app.Location,
		WorkType:      &app.WorkType,
		Salary:        &app.Salary,
		Status:        &app.Status,
		Notes:         &app.Notes,
		JobURL:        &app.JobURL,
		ContactPerson: &app.ContactPerson,
		ContactEmail:  &app.ContactEmail,
		NextStepDate:  &app.NextStepDate,
		Priority:      &app.Priority,
	}
}

// UserJobData is the parent document: every application of one user, keyed by email.
type UserJobData struct {
	Email        string           `json:"_id"`
	Applications []JobApplication `json:"applications"`
	LastUpdated  string           `json:"lastUpdated"`
}

// Find returns the index of the application with id, or -1.
func (d *UserJobData) Find(id string) int {
	for i := range d.Applications {
		if d.Applications[i].ID == id {
			return i
		}
	}
	return -1
}

// JobDocument is the relational row backing a UserJobData.
type JobDocument struct {
	Email        string         `gorm:"primaryKey" json:"email"`
	Applications datatypes.JSON `gorm:"type:jsonb;not null" json:"applications"`
	LastUpdated  string         `json:"last_updated"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (JobDocument) TableName() string { return "job_applications" }

// InboxCursor remembers how far the inbox watcher has read for a mailbox.
type InboxCursor struct {
	Email         string `gorm:"primaryKey" json:"email"`
	LastHistoryID uint64 `json:"last_history_id"`
	UpdatedAt     time.Time
}

type ProcessedEmail struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
}

// NormalizeEmail is the form emails take as document keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TimestampLayout matches the ISO strings produced by browsers (millisecond precision, Z).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t the way application dates are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
