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

// ValidProviderNames lists known provider names per kind. [Validate] warns
// about unrecognised names rather than rejecting them.
var ValidProviderNames = map[string][]string{
	"stt":        {"whisper"},
	"classifier": {"openai", "anthropic", "ollama", "groq", "mistral"},
	"tts":        {"odia"},
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config].
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

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. Credentials belong in the
// environment, not in files that end up in version control.
func ApplyEnv(cfg *Config) {
	setIfEnv(&cfg.Providers.Classifier.APIKey, "OPENAI_API_KEY")
	setIfEnv(&cfg.Providers.STT.APIKey, "OPENAI_API_KEY")
	setIfEnv(&cfg.Providers.TTS.APIKey, "TTS_API_KEY")
	setIfEnv(&cfg.Providers.TTS.BaseURL, "TTS_BASE_URL")
	setIfEnv(&cfg.Storage.Supabase.URL, "SUPABASE_URL")
	setIfEnv(&cfg.Storage.Supabase.ServiceRoleKey, "SUPABASE_SERVICE_ROLE_KEY")
	setIfEnv(&cfg.Storage.PostgresDSN, "CROSSAI_POSTGRES_DSN")
}

// setIfEnv writes the env value to dst only when the env var is set and dst
// is still empty. File values win over the environment only when the env var
// is absent; a set env var always applies to an empty field.
func setIfEnv(dst *string, key string) {
	if *dst != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// applyDefaults fills fields that have an unambiguous default.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Storage.Backend == "" {
		if cfg.Storage.Supabase.URL != "" {
			cfg.Storage.Backend = StorageSupabase
		} else if cfg.Storage.PostgresDSN != "" {
			cfg.Storage.Backend = StoragePostgres
		} else {
			cfg.Storage.Backend = StorageNone
		}
	}
	if cfg.Session.Language == "" {
		cfg.Session.Language = "english"
	}
}

// Validate checks that cfg is coherent. It returns a joined error listing
// every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("classifier", cfg.Providers.Classifier.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for i, fb := range cfg.Providers.Classifier.Fallbacks {
		validateProviderName("classifier", fb.Name)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.classifier.fallbacks[%d].name is required", i))
		}
	}

	if cfg.Providers.Classifier.Name == "" {
		slog.Warn("no classifier provider configured; classification requests will fail until one is set")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no tts provider configured; sessions will be text-only")
	}

	if !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: supabase, postgres, none", cfg.Storage.Backend))
	}
	switch cfg.Storage.Backend {
	case StorageSupabase:
		if cfg.Storage.Supabase.URL == "" {
			errs = append(errs, errors.New("storage.supabase.url is required for the supabase backend"))
		}
		if cfg.Storage.Supabase.ServiceRoleKey == "" {
			errs = append(errs, errors.New("storage.supabase.service_role_key is required for the supabase backend"))
		}
	case StoragePostgres:
		if cfg.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	case StorageNone:
		slog.Warn("storage.backend is none; emergencies will not be persisted")
	}

	if !cfg.Session.Language.IsValid() {
		errs = append(errs, fmt.Errorf("session.language %q is invalid; valid values: english, pidgin", cfg.Session.Language))
	}

	return errors.Join(errs...)
}

// validateProviderName warns when name is non-empty and not in the known list
// for the given kind.
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
