// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jotter/internal/api"
	"github.com/starford/jotter/internal/confwatch"
	"github.com/starford/jotter/internal/credentials"
	"github.com/starford/jotter/internal/gateway"
	"github.com/starford/jotter/internal/mcpserver"
	"github.com/starford/jotter/internal/notes"
	"github.com/starford/jotter/internal/sessions"
	pkgconfig "github.com/starford/jotter/pkg/config"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func newGateway(cfg *Config, logger *slog.Logger) (*gateway.Gateway, error) {
	users, err := credentials.NewStore(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("init credential store: %w", err)
	}
	return gateway.New(users, sessions.NewRegistry(), notes.NewStore(), logger), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger. The level can change at runtime.
	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := newLogger(os.Stdout, level)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("cookie_name", cfg.Auth.CookieName),
		slog.Int("bcrypt_cost", cfg.Auth.BcryptCost),
		slog.String("log_level", cfg.App.LogLevel.String()))

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	cookies := api.NewSessionCookie(api.CookieOptions{
		Name:   cfg.Auth.CookieName,
		Secret: cfg.Auth.SessionSecret,
		MaxAge: cfg.Auth.CookieMaxAge,
		Secure: cfg.Auth.CookieSecure,
	})
	apiRouter := api.NewRouter(gw, cookies)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Watch.Enabled && app.configPath != "" {
		g.Go(func() error {
			err := confwatch.Watch(gCtx, app.configPath, confwatch.DefaultDebounce, logger, func() {
				reloadLogLevel(app.configPath, level, logger)
			})
			if err != nil {
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		// Stops the config watcher and ends open event streams.
		stop()
		gw.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Stdout carries the protocol, so logs go to stderr.
	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	logger.Info("MCP server starting", slog.String("version", app.version))
	if err := mcpserver.New(gw, app.version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// reloadLogLevel re-reads the config file and applies its log level.
// Invalid files are logged and leave the running level untouched.
func reloadLogLevel(path string, level *slog.LevelVar, logger *slog.Logger) {
	fresh := NewDefaultConfig()
	if err := pkgconfig.Load(path, fresh); err != nil {
		logger.Warn("config reload failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if fresh.App.LogLevel != level.Level() {
		logger.Info("log level changed",
			slog.String("from", level.Level().String()),
			slog.String("to", fresh.App.LogLevel.String()))
		level.Set(fresh.App.LogLevel)
	}
}
