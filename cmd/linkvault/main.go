package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v6"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"linkvault/internal/auth"
	"linkvault/internal/bookmarks"
	"linkvault/internal/shared/logger"
	"linkvault/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type clientConfig struct {
	BackendURL  string `env:"LINKVAULT_URL" envDefault:"http://localhost:54321"`
	WSURL       string `env:"LINKVAULT_WS_URL"`
	AnonKey     string `env:"LINKVAULT_ANON_KEY" envDefault:"dev-anon-key"`
	SessionFile string `env:"LINKVAULT_SESSION_FILE"`
	LogFile     string `env:"LINKVAULT_LOG_FILE"`
	LogLevel    string `env:"LINKVAULT_LOG_LEVEL" envDefault:"info"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "version", "-v":
			fmt.Println("linkvault " + version)
			return nil
		}
	}

	_ = godotenv.Load() //nolint:errcheck // .env is optional

	cfg := clientConfig{}
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if cfg.WSURL == "" {
		cfg.WSURL = wsURLFrom(cfg.BackendURL)
	}

	logOut, closeLog, err := logOutput(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.NewLoggerWithOutput(cfg.LogLevel, "text", logOut)

	authModule, err := auth.NewModule(auth.ModuleConfig{
		BaseURL:     cfg.BackendURL,
		AnonKey:     cfg.AnonKey,
		SessionFile: cfg.SessionFile,
	}, log)
	if err != nil {
		return fmt.Errorf("set up auth: %w", err)
	}
	bmModule := bookmarks.NewModule(bookmarks.ModuleConfig{
		BaseURL:   cfg.BackendURL,
		WSBaseURL: cfg.WSURL,
		AnonKey:   cfg.AnonKey,
	}, authModule.Store(), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The handler is registered before the store starts so the subscriber
	// sees the restored session.
	authModule.Store().OnChange(bmModule.Subscriber().SessionChanged)
	bmModule.Start(ctx)
	authModule.Start(ctx)
	defer authModule.Stop()
	defer bmModule.Stop()

	app := tui.NewApp(authModule.Store(), bmModule.Service(), bmModule.Subscriber())
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

// wsURLFrom derives the websocket endpoint from the HTTP backend URL.
func wsURLFrom(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}

// logOutput opens the log sink. The TUI owns the terminal, so without an
// explicit file everything is discarded.
func logOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil //nolint:errcheck
}
