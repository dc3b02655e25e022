// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/bundles"
	"github.com/starford/raido/internal/i18n"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/templateservice"
	"github.com/starford/raido/internal/translate"
	pkgconfig "github.com/starford/raido/pkg/config"
)

// runtime holds the long-lived components shared by the HTTP and MCP
// front ends.
type runtime struct {
	logger  *slog.Logger
	svc     *templateservice.Service
	journal *journal.DB
	locales *pkgconfig.Cache[i18n.Config]
	rules   *pkgconfig.Cache[bundles.Rules]
}

func (rt *runtime) Close() error {
	return rt.journal.Close()
}

// watch keeps the external config caches fresh until ctx is done.
func (rt *runtime) watch(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		if err := rt.locales.Watch(ctx, rt.logger); err != nil {
			rt.logger.Warn("locale config watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})
	if rt.rules != nil {
		g.Go(func() error {
			if err := rt.rules.Watch(ctx, rt.logger); err != nil {
				rt.logger.Warn("bundle rules watcher unavailable", slog.String("error", err.Error()))
			}
			return nil
		})
	}
}

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

func newOpener(cfg *Config, logger *slog.Logger) (storage.Opener, error) {
	repo := cfg.Repository
	switch repo.Backend {
	case BackendGit:
		opts := []storage.GitOption{storage.WithGitCommitURL(repo.CommitURLTemplate)}
		if repo.GitPath == "" {
			logger.Warn("git backend without git_path, repository is kept in memory")
			store, err := storage.NewMemoryGit(opts...)
			if err != nil {
				return nil, err
			}
			return storage.GitOpener{Store: store}, nil
		}
		store, err := storage.OpenGit(repo.GitPath, opts...)
		if err != nil {
			return nil, err
		}
		return storage.GitOpener{Store: store}, nil
	default:
		return &storage.GitHubOpener{
			Owner:       repo.Owner,
			Repo:        repo.Name,
			BaseURL:     repo.BaseURL,
			ServerToken: repo.Token,
			CommitURL:   repo.CommitURLTemplate,
			Logger:      logger,
		}, nil
	}
}

func newTranslator(cfg TranslateConfig) (translate.Translator, error) {
	if cfg.Provider != ProviderAnthropic {
		return translate.Identity{}, nil
	}
	return translate.NewAnthropic(cfg.APIKey, cfg.Model)
}

func newRuntime(app *application, logger *slog.Logger, extra ...templateservice.Option) (*runtime, error) {
	cfg := app.config

	opener := app.opener
	if opener == nil {
		var err error
		if opener, err = newOpener(cfg, logger); err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
	}

	translator, err := newTranslator(cfg.Translate)
	if err != nil {
		return nil, fmt.Errorf("init translator: %w", err)
	}

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}

	policy := pkgconfig.PolicyForProfile(cfg.App.Profile)
	rt := &runtime{
		logger:  logger,
		journal: db,
		locales: pkgconfig.NewCache[i18n.Config](cfg.I18n.ConfigFile, policy),
	}

	opts := []templateservice.Option{
		templateservice.WithSettings(cfg.Settings()),
		templateservice.WithJournal(db),
		templateservice.WithTranslator(translator),
		templateservice.WithLogger(logger),
	}
	if cfg.Bundles.RulesFile != "" {
		rt.rules = pkgconfig.NewCache[bundles.Rules](cfg.Bundles.RulesFile, policy)
		opts = append(opts, templateservice.WithRules(rt.rules))
	} else {
		logger.Info("no bundle rules configured, bundle membership is not maintained")
	}
	if h, ok := opener.(storage.HostingOpener); ok {
		opts = append(opts, templateservice.WithHosting(h))
	}
	rt.svc = templateservice.New(opener, rt.locales, append(opts, extra...)...)

	logger.Info("Configuration loaded",
		slog.String("backend", cfg.Repository.Backend),
		slog.String("default_branch", cfg.Repository.DefaultBranch),
		slog.String("journal_path", cfg.Journal.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("translate_provider", cfg.Translate.Provider),
		slog.String("config_reload", policy.String()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return rt, nil
}

// Run starts the HTTP API with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := newRuntime(app, logger, templateservice.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer rt.Close()

	apiRouter := api.NewRouter(rt.svc, api.Auth{Mode: cfg.Auth.Mode, Token: cfg.Auth.Token}, broker, cfg.Limits.MaxRequestBytes)

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
		if _, err := rt.locales.Get(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"locale config unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	rt.watch(gCtx, g)

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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the config watchers stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	rt, err := newRuntime(app, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	g, gCtx := errgroup.WithContext(ctx)
	rt.watch(gCtx, g)

	g.Go(func() error {
		logger.Info("Starting MCP server on stdio")
		if err := mcpserver.New(rt.svc).ServeStdio(); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
