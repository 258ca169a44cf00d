package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/database"
	"github.com/justsurfingit/elevate-tracker/internal/models"
)

// JobApplicationService owns the per-user application documents.
type JobApplicationService struct {
	Store database.DocumentStore
	Log   logrus.FieldLogger
	Now   func() time.Time
}

func NewJobApplicationService(store database.DocumentStore, log logrus.FieldLogger) *JobApplicationService {
	return &JobApplicationService{
		Store: store,
		Log:   log.WithField("component", "job_applications"),
		Now:   time.Now,
	}
}

// List returns every application of email. A user with no document has none.
func (s *JobApplicationService) List(ctx context.Context, email string) ([]models.JobApplication, error) {
	email = models.NormalizeEmail(email)
	doc, err := s.Store.Get(ctx, email)
	if errors.Is(err, models.ErrDocumentNotFound) {
		return []models.JobApplication{}, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Applications, nil
}

// Create appends app to the user's document, creating the document if needed.
// A missing id or missing dates are filled in; empty enums get their defaults.
func (s *JobApplicationService) Create(ctx context.Context, email string, app models.JobApplication) (models.JobApplication, error) {
	email = models.NormalizeEmail(email)
	if err := app.Validate(); err != nil {
		return models.JobApplication{}, err
	}
	now := models.Timestamp(s.Now())
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.ApplicationDate == "" {
		app.ApplicationDate = now
	}
	if app.LastUpdateDate == "" {
		app.LastUpdateDate = app.ApplicationDate
	}
	if app.WorkType == "" {
		app.WorkType = models.WorkRemote
	}
	if app.Status == "" {
		app.Status = models.StatusApplied
	}
	if app.Priority == "" {
		app.Priority = models.PriorityMedium
	}

	err := s.Store.Mutate(ctx, email, true, func(doc *models.UserJobData) error {
		if doc.Find(app.ID) >= 0 {
			return models.ErrDuplicateID
		}
		doc.Applications = append(doc.Applications, app)
		doc.LastUpdated = now
		return nil
	})
	if err != nil {
		return models.JobApplication{}, err
	}

	s.Log.WithFields(logrus.Fields{"email": email, "id": app.ID, "company": app.Company}).Info("Application created")
	return app, nil
}

// Update merges patch over the stored application. The id and applicationDate
// never change; lastUpdateDate is always set to now.
func (s *JobApplicationService) Update(ctx context.Context, email, id string, patch models.ApplicationPatch) (models.JobApplication, error) {
	email = models.NormalizeEmail(email)
	if err := patch.Validate(); err != nil {
		return models.JobApplication{}, err
	}
	now := models.Timestamp(s.Now())

	var updated models.JobApplication
	err := s.Store.Mutate(ctx, email, false, func(doc *models.UserJobData) error {
		i := doc.Find(id)
		if i < 0 {
			return models.ErrApplicationNotFound
		}
		updated = patch.Apply(doc.Applications[i])
		updated.LastUpdateDate = now
		doc.Applications[i] = updated
		doc.LastUpdated = now
		return nil
	})
	if err != nil {
		return models.JobApplication{}, err
	}

	s.Log.WithFields(logrus.Fields{"email": email, "id": id, "status": updated.Status}).Info("Application updated")
	return updated, nil
}

func (s *JobApplicationService) Delete(ctx context.Context, email, id string) error {
	email = models.NormalizeEmail(email)
	err := s.Store.Mutate(ctx, email, false, func(doc *models.UserJobData) error {
		i := doc.Find(id)
		if i < 0 {
			return models.ErrApplicationNotFound
		}
		doc.Applications = append(doc.Applications[:i], doc.Applications[i+1:]...)
		doc.LastUpdated = models.Timestamp(s.Now())
		return nil
	})
	if err != nil {
		return err
	}
	s.Log.WithFields(logrus.Fields{"email": email, "id": id}).Info("Application deleted")
	return nil
}

// Active returns the applications of email that are not closed (offer or rejected).
func (s *JobApplicationService) Active(ctx context.Context, email string) ([]models.JobApplication, error) {
	all, err := s.List(ctx, email)
	if err != nil {
		return nil, err
	}
	var out []models.JobApplication
	for _, app := range all {
		if !app.Status.Terminal() {
			out = append(out, app)
		}
	}
	return out, nil
}
