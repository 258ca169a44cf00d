package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/justsurfingit/elevate-tracker/internal/models"
)

func exerciseStore(t *testing.T, s DocumentStore) {
	t.Helper()
	ctx := context.Background()
	email := "ada@example.com"

	if _, err := s.Get(ctx, email); !errors.Is(err, models.ErrDocumentNotFound) {
		t.Fatalf("Get on empty store: got %v, want ErrDocumentNotFound", err)
	}

	err := s.Mutate(ctx, email, false, func(doc *models.UserJobData) error { return nil })
	if !errors.Is(err, models.ErrDocumentNotFound) {
		t.Fatalf("Mutate without upsert: got %v, want ErrDocumentNotFound", err)
	}

	err = s.Mutate(ctx, email, true, func(doc *models.UserJobData) error {
		doc.Applications = append(doc.Applications, models.JobApplication{ID: "a1", Company: "Acme"})
		doc.LastUpdated = "2024-01-01T00:00:00.000Z"
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate upsert: %v", err)
	}

	doc, err := s.Get(ctx, email)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Email != email || len(doc.Applications) != 1 || doc.Applications[0].Company != "Acme" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.LastUpdated != "2024-01-01T00:00:00.000Z" {
		t.Errorf("lastUpdated = %q", doc.LastUpdated)
	}

	boom := errors.New("boom")
	err = s.Mutate(ctx, email, false, func(doc *models.UserJobData) error {
		doc.Applications = nil
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Mutate error: got %v, want boom", err)
	}
	doc, _ = s.Get(ctx, email)
	if len(doc.Applications) != 1 {
		t.Errorf("aborted mutation was persisted: %+v", doc.Applications)
	}

	err = s.Mutate(ctx, email, false, func(doc *models.UserJobData) error {
		doc.Applications = doc.Applications[:0]
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate clear: %v", err)
	}
	doc, _ = s.Get(ctx, email)
	if doc.Applications == nil || len(doc.Applications) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", doc.Applications)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

// exerciseConcurrentFirstWrites races appends for a user that has no document yet.
func exerciseConcurrentFirstWrites(t *testing.T, s DocumentStore, email string) {
	t.Helper()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Mutate(ctx, email, true, func(doc *models.UserJobData) error {
				doc.Applications = append(doc.Applications, models.JobApplication{Company: "X"})
				return nil
			})
			if err != nil {
				t.Errorf("Mutate: %v", err)
			}
		}()
	}
	wg.Wait()

	doc, err := s.Get(ctx, email)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Applications) != 10 {
		t.Errorf("got %d applications, want 10", len(doc.Applications))
	}
}

func TestSQLiteStoreConcurrentAppends(t *testing.T) {
	s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	exerciseConcurrentFirstWrites(t, s, "u@example.com")
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	exerciseConcurrentFirstWrites(t, NewMemoryStore(), "u@example.com")
}

// openTestGormStore connects to the Postgres named by ELEVATE_TEST_POSTGRES_DSN.
func openTestGormStore(t *testing.T, emails ...string) *GormStore {
	t.Helper()
	dsn := os.Getenv("ELEVATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ELEVATE_TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(&models.JobDocument{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clean := func() { db.Where("email IN ?", emails).Delete(&models.JobDocument{}) }
	clean()
	t.Cleanup(clean)
	return NewGormStore(db)
}

func TestGormStore(t *testing.T) {
	exerciseStore(t, openTestGormStore(t, "ada@example.com"))
}

func TestGormStoreConcurrentFirstWrites(t *testing.T) {
	s := openTestGormStore(t, "first-write@example.com")
	exerciseConcurrentFirstWrites(t, s, "first-write@example.com")
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Mutate(ctx, "e", true, func(doc *models.UserJobData) error {
		doc.Applications = append(doc.Applications, models.JobApplication{ID: "1", Company: "A"})
		return nil
	})
	doc, _ := s.Get(ctx, "e")
	doc.Applications[0].Company = "changed"

	again, _ := s.Get(ctx, "e")
	if again.Applications[0].Company != "A" {
		t.Errorf("caller mutation leaked into store")
	}
}

func TestMemorySyncState(t *testing.T) {
	s := NewMemorySyncState()
	ctx := context.Background()

	if id, _ := s.HistoryID(ctx, "me"); id != 0 {
		t.Errorf("initial history id = %d", id)
	}
	_ = s.SaveHistoryID(ctx, "me", 42)
	if id, _ := s.HistoryID(ctx, "me"); id != 42 {
		t.Errorf("history id = %d, want 42", id)
	}

	if done, _ := s.IsProcessed(ctx, "m1"); done {
		t.Error("m1 should not be processed yet")
	}
	_ = s.MarkProcessed(ctx, "m1")
	if done, _ := s.IsProcessed(ctx, "m1"); !done {
		t.Error("m1 should be processed")
	}
}
