// Package redisadapter keeps idempotency records in Redis so submission
// retries replay across service instances.
package redisadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"delphi/contexts/knowledge-market/question-service/ports"
)

const idempotencyKeyPrefix = "question:idem:"

type idempotencyPayload struct {
	RequestHash     string          `json:"request_hash"`
	ResponsePayload json.RawMessage `json:"response_payload"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func (s *IdempotencyStore) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	key = strings.TrimSpace(key)
	raw, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return ports.IdempotencyRecord{}, false, err
	}
	var payload idempotencyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ports.IdempotencyRecord{}, false, err
	}
	if now.After(payload.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:             key,
		RequestHash:     payload.RequestHash,
		ResponsePayload: payload.ResponsePayload,
		ExpiresAt:       payload.ExpiresAt.UTC(),
	}, true, nil
}

func (s *IdempotencyStore) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	payload, err := json.Marshal(idempotencyPayload{
		RequestHash:     record.RequestHash,
		ResponsePayload: record.ResponsePayload,
		ExpiresAt:       record.ExpiresAt.UTC(),
	})
	if err != nil {
		return err
	}
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.client.Set(ctx, idempotencyKeyPrefix+strings.TrimSpace(record.Key), payload, ttl).Err()
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)
