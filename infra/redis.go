package infra

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tnqbao/gau-compute-dispatcher/config"
)

const launchMarkerPrefix = "dispatch:launch:"

type RedisClient struct {
	Client *redis.Client
}

func InitRedisClient(cfg *config.EnvConfig) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisHost + ":" + cfg.Redis.RedisPort,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}

	log.Println("Connected to Redis:", cfg.Redis.RedisPort+" on "+cfg.Redis.RedisHost)

	return &RedisClient{Client: client}
}

func (r *RedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, key, value, expiration).Result()
}

func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	return r.Client.Del(ctx, keys...).Err()
}

// LaunchGuard is a per-job launch marker kept in Redis. A marker expires after
// ttl so a job is never blocked forever by a crashed consumer.
type LaunchGuard struct {
	redis *RedisClient
	ttl   time.Duration
}

func NewLaunchGuard(client *RedisClient, ttl time.Duration) *LaunchGuard {
	return &LaunchGuard{redis: client, ttl: ttl}
}

func (g *LaunchGuard) Claim(ctx context.Context, jobID string) (bool, error) {
	return g.redis.SetNX(ctx, launchMarkerPrefix+jobID, time.Now().UTC().Format(time.RFC3339), g.ttl)
}

func (g *LaunchGuard) Release(ctx context.Context, jobID string) error {
	return g.redis.Delete(ctx, launchMarkerPrefix+jobID)
}
