package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp"},
	"recognizer": {"remote"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	errs = append(errs, validateEntries("llm", "providers.llm", cfg.Providers.LLM, cfg.Providers.LLMFallbacks)...)
	errs = append(errs, validateEntries("recognizer", "providers.recognizer", cfg.Providers.Recognizer, cfg.Providers.RecognizerFallbacks)...)
	checkRecognizerURL := func(prefix string, e ProviderEntry) {
		if e.Name == "remote" && e.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for the remote recognizer", prefix))
		}
	}
	checkRecognizerURL("providers.recognizer", cfg.Providers.Recognizer)
	for i, e := range cfg.Providers.RecognizerFallbacks {
		checkRecognizerURL(fmt.Sprintf("providers.recognizer_fallbacks[%d]", i), e)
	}

	// Analysis
	if cfg.Analysis.Enabled != nil && *cfg.Analysis.Enabled && cfg.Providers.LLM.Name == "" {
		slog.Warn("analysis.enabled is set but providers.llm is not configured; comparisons will use local analysis only")
	}
	if cfg.Analysis.Timeout < 0 {
		errs = append(errs, fmt.Errorf("analysis.timeout %s must not be negative", cfg.Analysis.Timeout))
	}
	if t := cfg.Analysis.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("analysis.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.Analysis.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_tokens %d must not be negative", cfg.Analysis.MaxTokens))
	}

	// Recognition
	if cfg.Recognition.Timeout < 0 {
		errs = append(errs, fmt.Errorf("recognition.timeout %s must not be negative", cfg.Recognition.Timeout))
	}
	if cfg.Recognition.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("recognition.max_audio_bytes %d must not be negative", cfg.Recognition.MaxAudioBytes))
	}

	// Content
	switch cfg.Content.Driver {
	case "", ContentMemory:
		if cfg.Content.DSN != "" {
			slog.Warn("content.dsn is ignored by the memory driver")
		}
	case ContentPostgres:
		if cfg.Content.DSN == "" {
			errs = append(errs, errors.New("content.dsn is required when driver is postgres"))
		}
	case ContentSQLite:
		if cfg.Content.Path == "" {
			errs = append(errs, errors.New("content.path is required when driver is sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("content.driver %q is invalid; valid values: memory, postgres, sqlite", cfg.Content.Driver))
	}

	// Scoring
	if cfg.Scoring.ExamConcurrency < 0 {
		errs = append(errs, fmt.Errorf("scoring.exam_concurrency %d must not be negative", cfg.Scoring.ExamConcurrency))
	}
	if cfg.Scoring.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("scoring.max_tokens %d must not be negative", cfg.Scoring.MaxTokens))
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures %d must not be negative", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("resilience.reset_timeout %s must not be negative", cfg.Resilience.ResetTimeout))
	}

	return errors.Join(errs...)
}

// validateEntries checks a primary provider entry and its fallbacks.
// Fallbacks without a primary and unnamed fallbacks are errors.
func validateEntries(kind, prefix string, primary ProviderEntry, fallbacks []ProviderEntry) []error {
	var errs []error
	validateProviderName(kind, primary.Name)
	if primary.Name == "" && len(fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("%s_fallbacks requires %s to be configured", prefix, prefix))
	}
	entryKey := func(e ProviderEntry) string { return e.Name + "/" + e.Model + "/" + e.BaseURL }
	seen := map[string]bool{entryKey(primary): true}
	for i, fb := range fallbacks {
		p := fmt.Sprintf("%s_fallbacks[%d]", prefix, i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", p))
			continue
		}
		validateProviderName(kind, fb.Name)
		key := entryKey(fb)
		if seen[key] {
			slog.Warn("duplicate provider entry in fallback chain", "kind", kind, "entry", p)
		}
		seen[key] = true
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
