package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"linkvault/internal/di"
	"linkvault/internal/emulator/config"
	"linkvault/internal/emulator/logger"
)

func main() {
	fmt.Println("🚀 LinkVault Emulator - Starting...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load emulator configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.LogPretty)
	defer appLogger.Sync() //nolint:errcheck

	// Initialize Dependency Injection Container
	container := di.NewContainer()
	defer func() {
		if err := container.Close(); err != nil {
			appLogger.Errorf("Failed to close container: %v", err)
		}
	}()

	if err := container.InitializeCore(cfg, appLogger); err != nil {
		log.Fatalf("Failed to initialize core services: %v", err)
	}
	if err := container.InitializeStore(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if err := container.InitializeEmulator(); err != nil {
		log.Fatalf("Failed to initialize emulator module: %v", err)
	}
	appLogger.Info("Emulator module initialized successfully")

	app := fiber.New(fiber.Config{
		AppName:      "LinkVault Emulator v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			appLogger.Errorf("HTTP Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Internal Server Error",
			})
		},
	})

	// Health check endpoint with container health status
	app.Get("/health", func(c *fiber.Ctx) error {
		healthCtx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		if err := container.HealthCheck(healthCtx); err != nil {
			appLogger.Errorf("Health check failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "UNHEALTHY",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":    "HEALTHY",
			"timestamp": time.Now().UTC(),
		})
	})

	container.GetEmulatorModule().RegisterRoutes(app)
	appLogger.Infof("🌟 All routes registered. Starting HTTP server on %s", cfg.ListenAddr)

	// Start server in a goroutine for graceful shutdown
	serverShutdown := make(chan error, 1)
	go func() {
		serverShutdown <- app.Listen(cfg.ListenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverShutdown:
		if err != nil {
			log.Fatalf("Server startup failed: %v", err)
		}
	case sig := <-quit:
		appLogger.Infof("Received shutdown signal: %v", sig)
		fmt.Println("🛑 Shutting down emulator gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Errorf("Server forced to shutdown: %v", err)
		}
	}

	fmt.Println("✅ Emulator stopped gracefully.")
}
