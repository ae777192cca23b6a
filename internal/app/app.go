// Package app wires all phonoscore subsystems into a running application.
//
// The App struct owns the full lifecycle: New loads the phoneme inventory,
// opens the content store and builds the comparison service and HTTP routes,
// Run serves HTTP until its context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject implementations via functional options
// (WithContentStore, WithInventory, WithMetrics). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/phonoscore/internal/analyzer"
	"github.com/MrWong99/phonoscore/internal/api"
	"github.com/MrWong99/phonoscore/internal/config"
	"github.com/MrWong99/phonoscore/internal/content"
	"github.com/MrWong99/phonoscore/internal/content/postgres"
	"github.com/MrWong99/phonoscore/internal/content/sqlite"
	"github.com/MrWong99/phonoscore/internal/health"
	"github.com/MrWong99/phonoscore/internal/observe"
	"github.com/MrWong99/phonoscore/internal/pronounce"
	"github.com/MrWong99/phonoscore/pkg/phoneme"
	"github.com/MrWong99/phonoscore/pkg/provider/llm"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM     llm.Provider
	LLMName string

	Recognizer     recognizer.Provider
	RecognizerName string

	// Checks are readiness probes for the providers, typically reporting
	// whether their circuit breakers still accept calls. They are optional:
	// comparisons keep working without either provider.
	Checks []health.Checker
}

// App owns all subsystem lifetimes and serves the phonoscore HTTP API.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	inv     *phoneme.Inventory
	store   content.Store
	metrics *observe.Metrics
	service *pronounce.Service
	handler http.Handler

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithContentStore injects a content store instead of opening one from config.
// The app does not close an injected store.
func WithContentStore(s content.Store) Option {
	return func(a *App) { a.store = s }
}

// WithInventory injects a phoneme inventory instead of loading one from config.
func WithInventory(inv *phoneme.Inventory) Option {
	return func(a *App) { a.inv = inv }
}

// WithMetrics injects the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry); a nil providers
// struct means no external services are configured.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Phoneme inventory ────────────────────────────────────────────
	if err := a.initInventory(); err != nil {
		return nil, fmt.Errorf("app: init inventory: %w", err)
	}

	// ── 2. Content store ────────────────────────────────────────────────
	if err := a.initContent(ctx); err != nil {
		return nil, fmt.Errorf("app: init content: %w", err)
	}

	// ── 3. Comparison service ───────────────────────────────────────────
	a.initService()

	// ── 4. HTTP routes ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initInventory loads the configured inventory or falls back to the built-in one.
func (a *App) initInventory() error {
	if a.inv != nil {
		return nil
	}
	path := a.cfg.Phonemes.InventoryPath
	if path == "" {
		a.inv = phoneme.Default()
		return nil
	}
	inv, err := phoneme.LoadInventory(path)
	if err != nil {
		return err
	}
	a.inv = inv
	slog.Info("loaded phoneme inventory", "path", path, "symbols", len(inv.Declared()))
	return nil
}

// initContent opens the configured content store unless one was injected.
func (a *App) initContent(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	store, err := OpenContentStore(ctx, a.cfg.Content, a.inv)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	return nil
}

// OpenContentStore opens the store selected by cfg.Driver. The memory
// driver validates its document against inv; the database drivers create
// their schema on first use.
func OpenContentStore(ctx context.Context, cfg config.ContentConfig, inv *phoneme.Inventory) (content.Store, error) {
	switch cfg.Driver {
	case "", config.ContentMemory:
		if cfg.Path == "" {
			slog.Warn("content.path is empty; starting with no practice content")
			s, err := content.NewMemoryStore(content.Document{}, inv)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
		s, err := content.LoadMemoryStore(cfg.Path, inv)
		if err != nil {
			return nil, err
		}
		slog.Info("loaded practice content", "driver", "memory", "path", cfg.Path)
		return s, nil
	case config.ContentPostgres:
		s, err := postgres.NewStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to content store", "driver", "postgres")
		return s, nil
	case config.ContentSQLite:
		s, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("opened content store", "driver", "sqlite", "path", cfg.Path)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown content driver %q", cfg.Driver)
	}
}

// initService builds the comparison service from the providers and config.
func (a *App) initService() {
	opts := []pronounce.Option{
		pronounce.WithContentStore(a.store),
		pronounce.WithMetrics(a.metrics),
		pronounce.WithRecognitionTimeout(a.cfg.Recognition.Timeout),
		pronounce.WithExamConcurrency(a.cfg.Scoring.ExamConcurrency),
		pronounce.WithMaxTokens(a.cfg.Scoring.MaxTokens),
	}

	if a.cfg.Analysis.IsEnabled(a.providers.LLM != nil) {
		aopts := []analyzer.Option{
			analyzer.WithTimeout(a.cfg.Analysis.Timeout),
			analyzer.WithMaxTokens(a.cfg.Analysis.MaxTokens),
		}
		if t := a.cfg.Analysis.Temperature; t != nil {
			aopts = append(aopts, analyzer.WithTemperature(*t))
		}
		opts = append(opts, pronounce.WithAnalyzer(a.providers.LLMName, analyzer.New(a.providers.LLM, aopts...)))
	} else {
		slog.Info("external analysis disabled; comparisons use local analysis only")
	}

	if a.providers.Recognizer != nil {
		opts = append(opts, pronounce.WithRecognizer(a.providers.RecognizerName, a.providers.Recognizer))
	}

	a.service = pronounce.New(a.inv, opts...)
}

// initHTTP registers the API, health and metrics routes.
func (a *App) initHTTP() {
	mux := http.NewServeMux()

	api.New(a.service, api.WithMaxAudioBytes(a.cfg.Recognition.MaxAudioBytes)).Register(mux)

	checkers := []health.Checker{health.Ping("content", a.store)}
	for _, c := range a.providers.Checks {
		c.Optional = true
		checkers = append(checkers, c)
	}
	health.New(checkers...).Register(mux)

	mux.Handle("GET /metrics", observe.MetricsHandler())

	a.handler = observe.Middleware(a.metrics)(mux)
}

// Service returns the comparison service.
func (a *App) Service() *pronounce.Service { return a.service }

// Handler returns the root HTTP handler with all routes and middleware.
func (a *App) Handler() http.Handler { return a.handler }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on cfg.Server.ListenAddr and blocks until ctx is cancelled
// or the listener fails. In-flight requests get a short grace period.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is like [App.Run] but accepts connections on ln.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		if tls := a.cfg.Server.TLS; tls != nil {
			errCh <- srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	<-errCh
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
