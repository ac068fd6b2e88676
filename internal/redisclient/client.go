package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient opens a client sized for the calling binary and verifies
// connectivity before returning it. The locker holds keys only for the span
// of one booking write, so timeouts are kept short: a slow Redis should
// degrade into lock contention, not stall request handlers.
func NewRedisClient(addr, username, password string, poolSize int) (*redis.Client, error) {
	if poolSize <= 0 {
		poolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            addr,
		Username:        username,
		Password:        password,
		DB:              0,
		DialTimeout:     2 * time.Second,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		PoolSize:        poolSize,
		MinIdleConns:    1,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
