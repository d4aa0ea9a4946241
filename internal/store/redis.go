package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisPrefix = "apibean:"

	redisProfileField  = "profile"
	redisProfilePrefix = "p:"
)

// RedisBackend keeps each store in a Redis hash so several processes can
// share one session. The hash holds the active profile under "profile" and
// one JSON document per profile under "p:<name>".
type RedisBackend struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// RedisOptions configure a RedisBackend.
type RedisOptions struct {
	Prefix string
	// TTL expires idle stores. Zero keeps them forever.
	TTL time.Duration
}

// NewRedisBackend wraps a go-redis client.
func NewRedisBackend(client redis.Cmdable, opts RedisOptions) *RedisBackend {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix, ttl: opts.TTL}
}

// DialRedis connects to a Redis URL such as redis://localhost:6379/0 and
// checks the connection.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r *RedisBackend) key(name string) string {
	return r.prefix + sanitizeName(name)
}

func (r *RedisBackend) Load(ctx context.Context, name string) (Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, r.key(name)).Result()
	if err != nil {
		return Snapshot{}, err
	}
	if len(fields) == 0 {
		return Snapshot{}, ErrNotFound
	}

	snap := Snapshot{
		Profile:  fields[redisProfileField],
		Profiles: map[string]map[Key]json.RawMessage{},
	}
	for field, value := range fields {
		profile, ok := strings.CutPrefix(field, redisProfilePrefix)
		if !ok {
			continue
		}
		var values map[Key]json.RawMessage
		if err := json.Unmarshal([]byte(value), &values); err != nil {
			return Snapshot{}, fmt.Errorf("invalid profile %q in %s: %w", profile, r.key(name), err)
		}
		snap.Profiles[profile] = values
	}
	return snap, nil
}

func (r *RedisBackend) Save(ctx context.Context, name string, snap Snapshot) error {
	values := []any{redisProfileField, snap.Profile}
	for profile, encoded := range snap.Profiles {
		data, err := json.Marshal(encoded)
		if err != nil {
			return err
		}
		values = append(values, redisProfilePrefix+profile, string(data))
	}

	key := r.key(name)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	return err
}
