// Command phonoscore is the main entry point for the phonoscore pronunciation
// scoring server.
//
// Usage:
//
//	phonoscore [-config config.yaml]
//	phonoscore import [-config config.yaml] -file content.yaml
//
// The import subcommand validates a YAML content document and writes it to
// the configured postgres or sqlite content store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/phonoscore/internal/app"
	"github.com/MrWong99/phonoscore/internal/config"
	"github.com/MrWong99/phonoscore/internal/content"
	"github.com/MrWong99/phonoscore/internal/health"
	"github.com/MrWong99/phonoscore/internal/observe"
	"github.com/MrWong99/phonoscore/internal/resilience"
	"github.com/MrWong99/phonoscore/pkg/phoneme"
	"github.com/MrWong99/phonoscore/pkg/provider/llm"
	"github.com/MrWong99/phonoscore/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/phonoscore/pkg/provider/llm/openai"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer/remote"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "import" {
		os.Exit(runImport(os.Args[2:]))
	}
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, ok := loadConfig(*configPath)
	if !ok {
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("phonoscore starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg, breakerConfig(cfg.Resilience, metrics))
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// runImport seeds the configured SQL content store from a YAML document.
func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	file := fs.String("file", "", "YAML content document to import")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintln(os.Stderr, "phonoscore import: -file is required")
		return 2
	}

	cfg, ok := loadConfig(*configPath)
	if !ok {
		return 1
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inv := phoneme.Default()
	if path := cfg.Phonemes.InventoryPath; path != "" {
		var err error
		if inv, err = phoneme.LoadInventory(path); err != nil {
			slog.Error("failed to load phoneme inventory", "path", path, "err", err)
			return 1
		}
	}

	f, err := os.Open(*file)
	if err != nil {
		slog.Error("failed to open content document", "err", err)
		return 1
	}
	doc, err := content.DecodeDocument(f)
	f.Close()
	if err != nil {
		slog.Error("failed to decode content document", "file", *file, "err", err)
		return 1
	}

	store, err := app.OpenContentStore(ctx, cfg.Content, inv)
	if err != nil {
		slog.Error("failed to open content store", "err", err)
		return 1
	}
	defer store.Close()

	w, ok := store.(content.Writer)
	if !ok {
		slog.Error("content driver does not support import", "driver", cfg.Content.Driver)
		return 1
	}
	n, err := content.Import(ctx, w, doc, inv)
	if err != nil {
		slog.Error("import failed", "err", err)
		return 1
	}
	slog.Info("content imported", "driver", cfg.Content.Driver, "items", n)
	return 0
}

func loadConfig(path string) (*config.Config, bool) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "phonoscore: config file %q not found; copy configs/example.yaml to get started\n", path)
		} else {
			fmt.Fprintf(os.Stderr, "phonoscore: %v\n", err)
		}
		return nil, false
	}
	return cfg, true
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		p, err := oallm.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// The any-llm-go backends take an optional API key and base URL. Ollama
	// and llama.cpp are local servers addressed by BaseURL alone.
	for _, backend := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "ollama",
	} {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(backend, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ── Recognizer ────────────────────────────────────────────────────────────
	reg.RegisterRecognizer("remote", func(entry config.ProviderEntry) (recognizer.Provider, error) {
		opts := []remote.Option{remote.WithTimeout(cfg.Recognition.Timeout)}
		if entry.Model != "" {
			opts = append(opts, remote.WithModel(entry.Model))
		}
		if entry.APIKey != "" {
			opts = append(opts, remote.WithAPIKey(entry.APIKey))
		}
		p, err := remote.New(entry.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// breakerConfig builds the circuit breaker settings shared by every provider
// group. Transitions are logged by the breaker and counted in metrics.
func breakerConfig(rc config.ResilienceConfig, m *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  rc.MaxFailures,
			ResetTimeout: rc.ResetTimeout,
			OnStateChange: func(name string, _, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}
}

// buildProviders instantiates all providers named in cfg using the registry.
// Each configured kind is wrapped in a fallback group, even without
// fallbacks, so that a failing backend trips its breaker and shows up in
// readiness.
func buildProviders(cfg *config.Config, reg *config.Registry, fc resilience.FallbackConfig) (*app.Providers, error) {
	ps := &app.Providers{}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		primary, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		group := resilience.NewLLMFallback(primary, entryName(entry), fc)
		for _, fb := range cfg.Providers.LLMFallbacks {
			p, err := reg.CreateLLM(fb)
			if err != nil {
				return nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
			}
			group.AddFallback(entryName(fb), p)
			slog.Info("provider created", "kind", "llm", "name", fb.Name, "role", "fallback")
		}
		ps.LLM = group
		ps.LLMName = entry.Name
		ps.Checks = append(ps.Checks, health.Checker{Name: "analyzer", Check: group.Check})
		slog.Info("provider created", "kind", "llm", "name", entry.Name)
	}

	if entry := cfg.Providers.Recognizer; entry.Name != "" {
		primary, err := reg.CreateRecognizer(entry)
		if err != nil {
			return nil, fmt.Errorf("create recognizer provider %q: %w", entry.Name, err)
		}
		group := resilience.NewRecognizerFallback(primary, entryName(entry), fc)
		for _, fb := range cfg.Providers.RecognizerFallbacks {
			p, err := reg.CreateRecognizer(fb)
			if err != nil {
				return nil, fmt.Errorf("create recognizer fallback %q: %w", fb.Name, err)
			}
			group.AddFallback(entryName(fb), p)
			slog.Info("provider created", "kind", "recognizer", "name", fb.Name, "role", "fallback")
		}
		ps.Recognizer = group
		ps.RecognizerName = entry.Name
		ps.Checks = append(ps.Checks, health.Checker{Name: "recognizer", Check: group.Check})
		slog.Info("provider created", "kind", "recognizer", "name", entry.Name)
	}

	return ps, nil
}

// entryName labels a provider entry in breaker logs and metrics.
func entryName(e config.ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       phonoscore startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Recognizer", cfg.Providers.Recognizer.Name, cfg.Providers.Recognizer.Model)
	fmt.Printf("║  Fallbacks       : %-19d ║\n", len(cfg.Providers.LLMFallbacks)+len(cfg.Providers.RecognizerFallbacks))
	analysis := "(disabled)"
	if cfg.Analysis.IsEnabled(cfg.Providers.LLM.Name != "") {
		analysis = cfg.Analysis.Timeout.String() + " timeout"
	}
	fmt.Printf("║  Analysis        : %-19s ║\n", analysis)
	fmt.Printf("║  Content store   : %-19s ║\n", cfg.Content.Driver)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
