package redis

import (
	"context"
	"fmt"
	"time"

	"linkvault/internal/emulator/config"
	"linkvault/internal/emulator/logger"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout      = 2 * time.Second
	initialRetryWait = 500 * time.Millisecond
	maxRetryWait     = 5 * time.Second
)

// Connect dials Redis and keeps pinging with exponential backoff until the
// server answers or cfg.ConnectTimeout runs out. Local stacks often start the
// emulator before Redis is ready to accept connections.
func Connect(cfg config.RedisConfig, log logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	log.Info("connecting to redis",
		logger.String("addr", cfg.Addr),
		logger.Duration("timeout", cfg.ConnectTimeout))

	wait := initialRetryWait
	attempt := 0
	for {
		attempt++

		pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			if attempt > 1 {
				log.Warn("connected to redis after retry",
					logger.String("addr", cfg.Addr),
					logger.Int("attempts", attempt))
			} else {
				log.Info("connected to redis", logger.String("addr", cfg.Addr))
			}
			return client, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			client.Close()
			return nil, fmt.Errorf("redis unavailable at %s after %d attempts (timeout %v): %w",
				cfg.Addr, attempt, cfg.ConnectTimeout, err)
		case <-timer.C:
			log.Warn("redis connection failed, retrying",
				logger.String("addr", cfg.Addr),
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", wait),
				logger.Error(err))
			wait *= 2
			if wait > maxRetryWait {
				wait = maxRetryWait
			}
		}
	}
}
