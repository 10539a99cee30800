// Package di manages the emulator's service lifecycle: construction order,
// health checks and shutdown.
package di

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"linkvault/internal/emulator"
	redisstore "linkvault/internal/emulator/adapter/persistence/redis"
	"linkvault/internal/emulator/config"
	"linkvault/internal/emulator/logger"
)

const cleanupTimeout = 30 * time.Second

// Container holds the emulator's long-lived services. Initialization is
// ordered: core config and logging first, then the store connection, then
// the emulator module on top of both.
type Container struct {
	mu sync.RWMutex

	Config *config.Config
	Logger logger.Logger

	RedisClient *goredis.Client

	EmulatorModule *emulator.Module
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{}
}

// InitializeCore stores the configuration and logger every later stage
// depends on.
func (c *Container) InitializeCore(cfg *config.Config, log logger.Logger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg == nil {
		return fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NewNop()
	}

	c.Config = cfg
	c.Logger = log
	return nil
}

// InitializeStore connects to Redis. Requires InitializeCore.
func (c *Container) InitializeStore() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Config == nil {
		return fmt.Errorf("core must be initialized before the store")
	}

	client, err := redisstore.Connect(c.Config.Redis, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	c.RedisClient = client
	return nil
}

// InitializeEmulator builds the emulator module. Requires InitializeStore.
func (c *Container) InitializeEmulator() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.RedisClient == nil {
		return fmt.Errorf("store must be initialized before the emulator module")
	}

	module, err := emulator.NewModule(c.RedisClient, c.Config, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create emulator module: %w", err)
	}

	c.EmulatorModule = module
	return nil
}

// GetEmulatorModule returns the emulator module instance.
func (c *Container) GetEmulatorModule() *emulator.Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.EmulatorModule
}

// HealthCheck verifies the backing store is reachable.
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.EmulatorModule == nil {
		return fmt.Errorf("emulator module not initialized")
	}
	if err := c.EmulatorModule.Store().Ping(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

// Cleanup releases services in reverse order of initialization.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.EmulatorModule = nil

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
		c.RedisClient = nil
	}
	return nil
}

// Close shuts down the container with a bounded timeout.
func (c *Container) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := c.Cleanup(ctx); err != nil {
		if c.Logger != nil {
			c.Logger.Errorf("cleanup error: %v", err)
		}
		return err
	}
	return nil
}
