package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultProgressPrefix = "bulkops:import:progress:"
	defaultProgressTTL    = 24 * time.Hour
	// maxPublishedErrors bounds the error sample kept in the hash.
	maxPublishedErrors = 100
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisProgressStore publishes import progress snapshots to a Redis hash per job
// so that other processes can poll them.
type RedisProgressStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisProgressStore creates a store on an existing client.
func NewRedisProgressStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisProgressStore {
	if keyPrefix == "" {
		keyPrefix = defaultProgressPrefix
	}
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &RedisProgressStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisProgressStore) key(jobID uuid.UUID) string {
	return s.keyPrefix + jobID.String()
}

// Publish overwrites the job's hash and refreshes its TTL in one transaction.
func (s *RedisProgressStore) Publish(ctx context.Context, jobID uuid.UUID, p bulk.ImportProgress) error {
	errs := p.Errors
	if len(errs) > maxPublishedErrors {
		errs = errs[:maxPublishedErrors]
	}
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to encode progress errors: %w", err)
	}

	key := s.key(jobID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"processed", p.Processed,
			"total", p.Total,
			"successful", p.Successful,
			"failed", p.Failed,
			"created", p.Created,
			"updated", p.Updated,
			"skipped", p.Skipped,
			"error_count", len(p.Errors),
			"errors", string(errJSON),
			"published_at", time.Now().UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish progress for job %s: %w", jobID, err)
	}
	return nil
}

// Get reads the last published progress. ok is false when nothing was published
// or the entry expired.
func (s *RedisProgressStore) Get(ctx context.Context, jobID uuid.UUID) (progress bulk.ImportProgress, ok bool, err error) {
	values, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return bulk.ImportProgress{}, false, nil
		}
		return bulk.ImportProgress{}, false, fmt.Errorf("failed to read progress for job %s: %w", jobID, err)
	}
	if len(values) == 0 {
		return bulk.ImportProgress{}, false, nil
	}

	ints := map[string]*int{
		"processed":  &progress.Processed,
		"total":      &progress.Total,
		"successful": &progress.Successful,
		"failed":     &progress.Failed,
		"created":    &progress.Created,
		"updated":    &progress.Updated,
		"skipped":    &progress.Skipped,
	}
	for field, dst := range ints {
		if *dst, err = strconv.Atoi(values[field]); err != nil {
			return bulk.ImportProgress{}, false, fmt.Errorf("corrupt progress field %s: %w", field, err)
		}
	}
	if raw := values["errors"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &progress.Errors); err != nil {
			return bulk.ImportProgress{}, false, fmt.Errorf("corrupt progress errors: %w", err)
		}
	}
	return progress, true, nil
}

// Clear removes the job's progress entry.
func (s *RedisProgressStore) Clear(ctx context.Context, jobID uuid.UUID) error {
	return s.client.Del(ctx, s.key(jobID)).Err()
}
