package database

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/justsurfingit/elevate-tracker/internal/models"
)

// MutateFunc edits a user's document in place. Returning an error aborts the write.
type MutateFunc func(doc *models.UserJobData) error

// DocumentStore keeps one UserJobData document per email.
//
// Mutate runs fn against the current document and persists the result atomically
// with respect to other Mutate calls on the same email. When the document does not
// exist, Mutate starts from an empty one if upsert is set and returns
// models.ErrDocumentNotFound otherwise.
type DocumentStore interface {
	Get(ctx context.Context, email string) (*models.UserJobData, error)
	Mutate(ctx context.Context, email string, upsert bool, fn MutateFunc) error
	Ping(ctx context.Context) error
}

func newDocument(email string) *models.UserJobData {
	return &models.UserJobData{Email: email, Applications: []models.JobApplication{}}
}

func decodeApplications(email string, raw []byte, lastUpdated string) (*models.UserJobData, error) {
	doc := newDocument(email)
	doc.LastUpdated = lastUpdated
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc.Applications); err != nil {
		return nil, err
	}
	if doc.Applications == nil {
		doc.Applications = []models.JobApplication{}
	}
	return doc, nil
}

func encodeApplications(doc *models.UserJobData) ([]byte, error) {
	if doc.Applications == nil {
		doc.Applications = []models.JobApplication{}
	}
	return json.Marshal(doc.Applications)
}

// MemoryStore is a process-local DocumentStore.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]*models.UserJobData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*models.UserJobData)}
}

func (s *MemoryStore) Get(_ context.Context, email string) (*models.UserJobData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[email]
	if !ok {
		return nil, models.ErrDocumentNotFound
	}
	return cloneDocument(doc), nil
}

func (s *MemoryStore) Mutate(_ context.Context, email string, upsert bool, fn MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.docs[email]
	if !ok && !upsert {
		return models.ErrDocumentNotFound
	}
	var working *models.UserJobData
	if ok {
		working = cloneDocument(current)
	} else {
		working = newDocument(email)
	}
	if err := fn(working); err != nil {
		return err
	}
	s.docs[email] = working
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func cloneDocument(doc *models.UserJobData) *models.UserJobData {
	out := *doc
	out.Applications = make([]models.JobApplication, len(doc.Applications))
	copy(out.Applications, doc.Applications)
	return &out
}
