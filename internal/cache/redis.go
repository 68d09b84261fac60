package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient wraps the redis.Client with centralized connection pooling
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates and initializes a Redis client with connection pooling
func NewRedisClient(host string, port string, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err)
		return nil, err
	}

	logger.Log.Info("Redis client connected",
		zap.String("address", addr),
	)

	return &RedisClient{client: client}, nil
}

// Wrap adopts an existing client (tests, custom options)
func Wrap(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Client exposes the underlying go-redis client for stores that need pipelines
func (rc *RedisClient) Client() *redis.Client {
	return rc.client
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

// Ping checks connectivity
func (rc *RedisClient) Ping(ctx context.Context) error {
	start := time.Now()
	err := rc.client.Ping(ctx).Err()
	observe("ping", start, err)
	return err
}

// IncrWindow increments a counter and starts its expiry on first use.
// Returns the count after the increment.
func (rc *RedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	start := time.Now()
	var incr *redis.IntCmd
	_, err := rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	observe("incr_window", start, err)
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// OpenConnections reports the pool size for the connection gauge
func (rc *RedisClient) OpenConnections() int {
	return int(rc.client.PoolStats().TotalConns)
}

// TTL returns the time-to-live for a key
func (rc *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rc.client.TTL(ctx, key).Result()
}

func observe(op string, start time.Time, err error) {
	m := metrics.Get()
	m.RedisOperationDuration.WithLabelValues(op, "ratelimit").Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RedisOperationsTotal.WithLabelValues(op, status).Inc()
}
