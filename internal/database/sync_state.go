package database

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justsurfingit/elevate-tracker/internal/models"
)

// SyncStateStore remembers the inbox watcher's history bookmark and which
// messages it has already handled.
type SyncStateStore interface {
	HistoryID(ctx context.Context, email string) (uint64, error)
	SaveHistoryID(ctx context.Context, email string, id uint64) error
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
}

type GormSyncState struct {
	DB *gorm.DB
}

func NewGormSyncState(db *gorm.DB) *GormSyncState {
	return &GormSyncState{DB: db}
}

func (s *GormSyncState) HistoryID(ctx context.Context, email string) (uint64, error) {
	var cursor models.InboxCursor
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cursor.LastHistoryID, nil
}

func (s *GormSyncState) SaveHistoryID(ctx context.Context, email string, id uint64) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_history_id", "updated_at"}),
	}).Create(&models.InboxCursor{Email: email, LastHistoryID: id}).Error
}

func (s *GormSyncState) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.ProcessedEmail{}).Where("id = ?", messageID).Count(&count).Error
	return count > 0, err
}

func (s *GormSyncState) MarkProcessed(ctx context.Context, messageID string) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedEmail{ID: messageID}).Error
}

type MemorySyncState struct {
	mu        sync.Mutex
	cursors   map[string]uint64
	processed map[string]struct{}
}

func NewMemorySyncState() *MemorySyncState {
	return &MemorySyncState{
		cursors:   make(map[string]uint64),
		processed: make(map[string]struct{}),
	}
}

func (s *MemorySyncState) HistoryID(_ context.Context, email string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[email], nil
}

func (s *MemorySyncState) SaveHistoryID(_ context.Context, email string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[email] = id
	return nil
}

func (s *MemorySyncState) IsProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[messageID]
	return ok, nil
}

func (s *MemorySyncState) MarkProcessed(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[messageID] = struct{}{}
	return nil
}
