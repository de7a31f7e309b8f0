// Package diagnostics keeps, per content item, the latest raw provider
// response and the last error in Redis. Entries are for operators only and
// expire after a TTL.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/autotagger/internal/config"
)

const keyPrefix = "autotagger:diag:"

// DefaultTTL applies when the configured TTL is not positive.
const DefaultTTL = 7 * 24 * time.Hour

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// connectionTimeout is the timeout for verifying Redis connection.
const connectionTimeout = 5 * time.Second

// NewClient creates a Redis client from cfg and verifies it.
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// LastError is the most recent failure recorded for a content item.
type LastError struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Snapshot is everything recorded for a content item.
type Snapshot struct {
	ContentID string          `json:"content_id"`
	Response  json.RawMessage `json:"response,omitempty"`
	LastError *LastError      `json:"last_error,omitempty"`
}

// Store reads and writes diagnostics entries.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a Store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl, now: time.Now}
}

func responseKey(contentID string) string { return keyPrefix + contentID + ":response" }
func errorKey(contentID string) string    { return keyPrefix + contentID + ":error" }

// RecordResponse overwrites the latest-response slot.
func (s *Store) RecordResponse(ctx context.Context, contentID string, raw []byte) error {
	if err := s.client.Set(ctx, responseKey(contentID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("record response for %s: %w", contentID, err)
	}
	return nil
}

// RecordError overwrites the last-error slot.
func (s *Store) RecordError(ctx context.Context, contentID, kind, message string) error {
	key := errorKey(contentID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"kind", kind,
			"message", message,
			"at", s.now().UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record error for %s: %w", contentID, err)
	}
	return nil
}

// Snapshot returns what is recorded for contentID. Missing slots are left empty.
func (s *Store) Snapshot(ctx context.Context, contentID string) (*Snapshot, error) {
	snap := &Snapshot{ContentID: contentID}

	raw, err := s.client.Get(ctx, responseKey(contentID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("read response for %s: %w", contentID, err)
	default:
		snap.Response = asJSON(raw)
	}

	fields, err := s.client.HGetAll(ctx, errorKey(contentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read last error for %s: %w", contentID, err)
	}
	if len(fields) > 0 {
		last := &LastError{Kind: fields["kind"], Message: fields["message"]}
		if at, parseErr := time.Parse(time.RFC3339Nano, fields["at"]); parseErr == nil {
			last.At = at
		}
		snap.LastError = last
	}

	return snap, nil
}

// ClearError removes the last-error slot. The latest response is kept.
func (s *Store) ClearError(ctx context.Context, contentID string) error {
	if err := s.client.Del(ctx, errorKey(contentID)).Err(); err != nil {
		return fmt.Errorf("clear last error for %s: %w", contentID, err)
	}
	return nil
}

// asJSON keeps valid JSON verbatim and quotes anything else.
func asJSON(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return json.RawMessage(quoted)
}
