package database

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justsurfingit/elevate-tracker/internal/models"
)

// GormStore keeps each user's applications as a JSONB array in one row.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Get(ctx context.Context, email string) (*models.UserJobData, error) {
	var row models.JobDocument
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeApplications(email, row.Applications, row.LastUpdated)
}

// Mutate locks the row for the duration of the transaction so concurrent writers
// for the same user apply one after the other. With upsert an empty row is seeded
// first, so the lock also covers the user's first write.
func (s *GormStore) Mutate(ctx context.Context, email string, upsert bool, fn MutateFunc) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if upsert {
			seed := models.JobDocument{Email: email, Applications: datatypes.JSON("[]")}
			err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).Create(&seed).Error
			if err != nil {
				return err
			}
		}

		var row models.JobDocument
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("email = ?", email).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrDocumentNotFound
		}
		if err != nil {
			return err
		}

		doc, err := decodeApplications(email, row.Applications, row.LastUpdated)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}

		raw, err := encodeApplications(doc)
		if err != nil {
			return err
		}
		row.Applications = datatypes.JSON(raw)
		row.LastUpdated = doc.LastUpdated
		return tx.Save(&row).Error
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
