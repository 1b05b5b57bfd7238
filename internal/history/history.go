// Package history persists score snapshots to an external append-only,
// newest-first store. History is a side effect of scoring, never part of
// its contract: store failures are logged by the caller and swallowed, and
// a write guard suppresses near-duplicate points written close together.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is one persisted scoring run.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Label     string    `json:"label"`
}

// Store is the append-only history store. Entries are ordered newest-first.
type Store interface {
	// Append writes a snapshot if the guard allows it. It reports whether
	// the write happened.
	Append(ctx context.Context, snap Snapshot) (bool, error)
	// Recent returns up to n snapshots, newest first.
	Recent(ctx context.Context, n int) ([]Snapshot, error)
}

const (
	// DefaultRetention bounds the stored series.
	DefaultRetention = 48

	// DefaultWriteInterval suppresses writes within this window of the
	// newest entry so polling callers don't flood the series with
	// near-duplicate points.
	DefaultWriteInterval = 30 * time.Minute

	defaultKey = "gridwatch:score_history"
)

// RedisStore keeps the series in a Redis list (LPUSH + LTRIM).
type RedisStore struct {
	client        *redis.Client
	key           string
	retention     int
	writeInterval time.Duration
}

// NewRedisStore creates a history store on the given client. Zero values
// for key, retention, and interval take the defaults.
func NewRedisStore(client *redis.Client, key string, retention int, writeInterval time.Duration) *RedisStore {
	if key == "" {
		key = defaultKey
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if writeInterval <= 0 {
		writeInterval = DefaultWriteInterval
	}
	return &RedisStore{
		client:        client,
		key:           key,
		retention:     retention,
		writeInterval: writeInterval,
	}
}

// Append pushes the snapshot unless the newest stored entry is younger than
// the write interval, then trims the series to the retention count.
func (s *RedisStore) Append(ctx context.Context, snap Snapshot) (bool, error) {
	newest, err := s.newest(ctx)
	if err != nil {
		return false, err
	}
	if newest != nil && snap.Timestamp.Sub(newest.Timestamp) < s.writeInterval {
		return false, nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, int64(s.retention-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("append snapshot: %w", err)
	}
	return true, nil
}

// Recent returns up to n snapshots, newest first. Entries that fail to
// decode are skipped rather than failing the read.
func (s *RedisStore) Recent(ctx context.Context, n int) ([]Snapshot, error) {
	if n <= 0 {
		n = s.retention
	}
	raw, err := s.client.LRange(ctx, s.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	out := make([]Snapshot, 0, len(raw))
	for _, entry := range raw {
		var snap Snapshot
		if err := json.Unmarshal([]byte(entry), &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *RedisStore) newest(ctx context.Context) (*Snapshot, error) {
	entry, err := s.client.LIndex(ctx, s.key, 0).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read newest snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(entry), &snap); err != nil {
		// A corrupt head entry must not block writes forever.
		return nil, nil
	}
	return &snap, nil
}

// MemoryStore is the in-process fallback used when Redis is not configured,
// and by tests. Same guard and retention semantics as the Redis store.
type MemoryStore struct {
	mu            sync.Mutex
	entries       []Snapshot // newest first
	retention     int
	writeInterval time.Duration
}

// NewMemoryStore creates an in-memory history store.
func NewMemoryStore(retention int, writeInterval time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if writeInterval <= 0 {
		writeInterval = DefaultWriteInterval
	}
	return &MemoryStore{retention: retention, writeInterval: writeInterval}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, snap Snapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) > 0 && snap.Timestamp.Sub(s.entries[0].Timestamp) < s.writeInterval {
		return false, nil
	}

	s.entries = append([]Snapshot{snap}, s.entries...)
	if len(s.entries) > s.retention {
		s.entries = s.entries[:s.retention]
	}
	return true, nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(_ context.Context, n int) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Snapshot, n)
	copy(out, s.entries[:n])
	return out, nil
}
