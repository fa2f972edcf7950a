package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSnapshotPrefix = "kasir:cart:"

// RedisSnapshots stores cart snapshots as JSON values in Redis with a TTL.
type RedisSnapshots struct {
	R      *redis.Client
	TTL    time.Duration
	Prefix string
}

func (s RedisSnapshots) key(id string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = defaultSnapshotPrefix
	}
	return prefix + id
}

func (s RedisSnapshots) ttl() time.Duration {
	if s.TTL <= 0 {
		return 12 * time.Hour
	}
	return s.TTL
}

// Save serializes the state and stores it under the session key.
func (s RedisSnapshots) Save(ctx context.Context, id string, st State) error {
	if s.R == nil || id == "" {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, s.key(id), data, s.ttl()).Err()
}

// Load reads a snapshot back. It reports whether the key existed.
func (s RedisSnapshots) Load(ctx context.Context, id string) (State, bool, error) {
	if s.R == nil || id == "" {
		return State{}, false, nil
	}
	data, err := s.R.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// Delete removes the snapshot.
func (s RedisSnapshots) Delete(ctx context.Context, id string) error {
	if s.R == nil || id == "" {
		return nil
	}
	return s.R.Del(ctx, s.key(id)).Err()
}
