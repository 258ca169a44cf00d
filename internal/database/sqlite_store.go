package database

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"

	"github.com/justsurfingit/elevate-tracker/internal/models"
)

// SQLiteStore is the embedded DocumentStore used for local runs and tests.
type SQLiteStore struct {
	DB *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and migrates it.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers and avoids SQLITE_BUSY between transactions.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{DB: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS job_documents (
	email TEXT PRIMARY KEY,
	applications TEXT NOT NULL DEFAULT '[]',
	last_updated TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`)
	return err
}

func (s *SQLiteStore) Close() error { return s.DB.Close() }

func (s *SQLiteStore) Get(ctx context.Context, email string) (*models.UserJobData, error) {
	var raw, lastUpdated string
	err := s.DB.QueryRowContext(ctx,
		`SELECT applications, last_updated FROM job_documents WHERE email = ?`, email,
	).Scan(&raw, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeApplications(email, []byte(raw), lastUpdated)
}

func (s *SQLiteStore) Mutate(ctx context.Context, email string, upsert bool, fn MutateFunc) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var raw, lastUpdated string
	exists := true
	err = tx.QueryRowContext(ctx,
		`SELECT applications, last_updated FROM job_documents WHERE email = ?`, email,
	).Scan(&raw, &lastUpdated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !upsert {
			return models.ErrDocumentNotFound
		}
		exists = false
	case err != nil:
		return err
	}

	doc, err := decodeApplications(email, []byte(raw), lastUpdated)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	out, err := encodeApplications(doc)
	if err != nil {
		return err
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			`UPDATE job_documents SET applications = ?, last_updated = ?, updated_at = CURRENT_TIMESTAMP WHERE email = ?`,
			string(out), doc.LastUpdated, email,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO job_documents (email, applications, last_updated) VALUES (?, ?, ?)`,
			email, string(out), doc.LastUpdated,
		)
	}
	if err != nil {
		return err
	}

	committed = true
	return tx.Commit()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
