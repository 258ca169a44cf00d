// Package tracker keeps an in-memory copy of one user's job applications in step
// with the CRUD API. Nothing is changed locally until the remote call succeeds.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
	"github.com/justsurfingit/elevate-tracker/internal/models"
)

var ErrUnauthenticated = errors.New("Please sign in to manage your applications")

// Failure messages recorded by the store. Remote errors are logged, not surfaced.
const (
	MsgLoadFailed   = "Failed to load applications"
	MsgCreateFailed = "Failed to create application"
	MsgUpdateFailed = "Failed to update application"
	MsgDeleteFailed = "Failed to delete application"
)

// Remote is the CRUD collaborator. Create and Update return the record as stored.
type Remote interface {
	List(ctx context.Context, s *auth.Session) ([]models.JobApplication, error)
	Create(ctx context.Context, s *auth.Session, app models.JobApplication) (models.JobApplication, error)
	Update(ctx context.Context, s *auth.Session, id string, app models.JobApplication) (models.JobApplication, error)
	Delete(ctx context.Context, s *auth.Session, id string) error
}

// OperationError is returned by a failed store operation. Message is safe to show.
type OperationError struct {
	Message string
	Err     error
}

func (e *OperationError) Error() string { return e.Message }
func (e *OperationError) Unwrap() error { return e.Err }

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithIDGenerator(gen func() string) Option { return func(s *Store) { s.newID = gen } }

func WithLogger(log logrus.FieldLogger) Option { return func(s *Store) { s.log = log } }

// Store is the mirror of one session's application list.
type Store struct {
	mu      sync.Mutex
	remote  Remote
	session *auth.Session
	apps    []models.JobApplication
	err     string

	now   func() time.Time
	newID func() string
	log   logrus.FieldLogger
}

func NewStore(remote Remote, session *auth.Session, opts ...Option) *Store {
	s := &Store{
		remote:  remote,
		session: session,
		apps:    []models.JobApplication{},
		now:     time.Now,
		newID:   uuid.NewString,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Applications returns a copy of the current list.
func (s *Store) Applications() []models.JobApplication {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.JobApplication, len(s.apps))
	copy(out, s.apps)
	return out
}

// Err is the message of the last failed operation, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) Get(id string) (models.JobApplication, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.apps[i], true
	}
	return models.JobApplication{}, false
}

// FilterAndSort applies q to the current list.
func (s *Store) FilterAndSort(q Query) []models.JobApplication {
	return FilterAndSort(s.Applications(), q)
}

// Load replaces the list with the remote one. On failure the list is kept.
func (s *Store) Load(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	apps, err := s.remote.List(ctx, s.session)
	if err != nil {
		return s.fail(MsgLoadFailed, err)
	}
	if apps == nil {
		apps = []models.JobApplication{}
	}

	s.mu.Lock()
	s.apps = apps
	s.err = ""
	s.mu.Unlock()
	return nil
}

// Create assigns an id and timestamps to draft, sends it, and appends the stored
// record. The returned pointer is nil whenever err is non-nil.
func (s *Store) Create(ctx context.Context, draft models.JobApplication) (*models.JobApplication, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	now := models.Timestamp(s.now())
	app := draft
	app.ID = s.newID()
	app.ApplicationDate = now
	app.LastUpdateDate = now
	if err := app.Validate(); err != nil {
		return nil, s.fail(err.Error(), err)
	}

	stored, err := s.remote.Create(ctx, s.session, app)
	if err != nil {
		return nil, s.fail(MsgCreateFailed, err)
	}

	s.mu.Lock()
	s.apps = append(s.apps, stored)
	s.err = ""
	s.mu.Unlock()
	return &stored, nil
}

// Update merges patch over the current record, refreshes lastUpdateDate, and
// replaces the record once the remote accepts it.
func (s *Store) Update(ctx context.Context, id string, patch models.ApplicationPatch) (*models.JobApplication, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, s.fail(err.Error(), err)
	}

	current, ok := s.Get(id)
	if !ok {
		return nil, s.fail(MsgUpdateFailed, models.ErrApplicationNotFound)
	}
	merged := patch.Apply(current)
	merged.LastUpdateDate = models.Timestamp(s.now())

	stored, err := s.remote.Update(ctx, s.session, id, merged)
	if err != nil {
		return nil, s.fail(MsgUpdateFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The list may have been reloaded while the call was in flight.
	if i := s.index(id); i >= 0 {
		s.apps[i] = stored
	}
	s.err = ""
	return &stored, nil
}

// Move changes only the status of an application.
func (s *Store) Move(ctx context.Context, id string, status models.Status) (*models.JobApplication, error) {
	return s.Update(ctx, id, models.ApplicationPatch{Status: &status})
}

// Delete removes the application remotely and then locally.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if err := s.remote.Delete(ctx, s.session, id); err != nil {
		return s.fail(MsgDeleteFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		s.apps = append(s.apps[:i], s.apps[i+1:]...)
	}
	s.err = ""
	return nil
}

func (s *Store) requireSession() error {
	if !s.session.Authenticated() {
		s.mu.Lock()
		s.err = ErrUnauthenticated.Error()
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	return nil
}

func (s *Store) fail(msg string, err error) error {
	s.log.WithError(err).Warn(msg)
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
	return &OperationError{Message: msg, Err: err}
}

func (s *Store) index(id string) int {
	for i := range s.apps {
		if s.apps[i].ID == id {
			return i
		}
	}
	return -1
}
