// Package cache stores caption pairs in redis keyed by image digest.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/redis/go-redis/v9"
)

// Config mirrors the redis section of the captioner config
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(cfg Config) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Redis{
		client: client,
		ttl:    cfg.TTL,
	}
}

// Key builds the cache key for an image digest and target language
func Key(md5, target string) string {
	return "caption:" + md5 + ":" + target
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get returns nil, nil on a cache miss
func (r *Redis) Get(ctx context.Context, key string) (*captionapi.Captions, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var captions captionapi.Captions
	if err := json.Unmarshal(data, &captions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached captions: %w", err)
	}
	return &captions, nil
}

func (r *Redis) Set(ctx context.Context, key string, captions *captionapi.Captions) error {
	data, err := json.Marshal(captions)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
