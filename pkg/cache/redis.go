package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/noah-isme/school-mgmt-api/pkg/config"
)

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// NewBreaker builds the circuit breaker guarding cache round trips. After
// `failures` consecutive errors the breaker opens for `openDelay`, during which
// cache calls fail fast and requests fall through to Postgres.
func NewBreaker(name string, failures uint32, openDelay time.Duration, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	if failures == 0 {
		failures = 5
	}
	if openDelay <= 0 {
		openDelay = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: onChange,
	})
}
