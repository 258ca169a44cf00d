package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/justsurfingit/elevate-tracker/internal/models"
)

const redisMaxRetries = 5

// storedDocument is the JSON value kept under a user's key.
type storedDocument struct {
	Applications []models.JobApplication `json:"applications"`
	LastUpdated  string                  `json:"lastUpdated"`
}

// RedisStore keeps each user's document as one JSON value.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(email string) string {
	return fmt.Sprintf("%s:jobs:%s", s.prefix, email)
}

func (s *RedisStore) Get(ctx context.Context, email string) (*models.UserJobData, error) {
	data, err := s.client.Get(ctx, s.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return decodeStored(email, data)
}

// Mutate uses WATCH/MULTI; a concurrent write to the key aborts the transaction
// and the read-modify-write is retried.
func (s *RedisStore) Mutate(ctx context.Context, email string, upsert bool, fn MutateFunc) error {
	key := s.key(email)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		var doc *models.UserJobData
		switch {
		case errors.Is(err, redis.Nil):
			if !upsert {
				return models.ErrDocumentNotFound
			}
			doc = newDocument(email)
		case err != nil:
			return err
		default:
			if doc, err = decodeStored(email, data); err != nil {
				return err
			}
		}

		if err := fn(doc); err != nil {
			return err
		}
		if doc.Applications == nil {
			doc.Applications = []models.JobApplication{}
		}
		out, err := json.Marshal(storedDocument{Applications: doc.Applications, LastUpdated: doc.LastUpdated})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("document %s changed concurrently %d times", email, redisMaxRetries)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeStored(email string, data []byte) (*models.UserJobData, error) {
	var stored storedDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	doc := newDocument(email)
	doc.LastUpdated = stored.LastUpdated
	if stored.Applications != nil {
		doc.Applications = stored.Applications
	}
	return doc, nil
}
