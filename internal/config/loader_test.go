package config

import (
	"errors"
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
providers:
  stt:
    name: whisper
    api_key: sk-test
    model: whisper-1
  classifier:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
    fallbacks:
      - name: groq
        api_key: gsk-test
        model: llama-3.1-8b-instant
  tts:
    name: odia
    api_key: odia-test
    voice: nigerian-female
storage:
  backend: supabase
  supabase:
    url: https://example.supabase.co
    service_role_key: service-key
session:
  language: pidgin
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Providers.Classifier.Name != "openai" {
		t.Errorf("Classifier.Name = %q", cfg.Providers.Classifier.Name)
	}
	if len(cfg.Providers.Classifier.Fallbacks) != 1 || cfg.Providers.Classifier.Fallbacks[0].Name != "groq" {
		t.Errorf("Fallbacks = %+v", cfg.Providers.Classifier.Fallbacks)
	}
	if cfg.Providers.TTS.Voice != "nigerian-female" {
		t.Errorf("TTS.Voice = %q", cfg.Providers.TTS.Voice)
	}
	if cfg.Storage.Backend != StorageSupabase {
		t.Errorf("Storage.Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Session.Language != "pidgin" {
		t.Errorf("Session.Language = %q", cfg.Session.Language)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  listen_address: ':8080'\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("default ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("default LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Storage.Backend != StorageNone {
		t.Errorf("default Storage.Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Session.Language != "english" {
		t.Errorf("default Session.Language = %q", cfg.Session.Language)
	}
}

func TestLoadFromReader_BackendInferredFromSupabaseBlock(t *testing.T) {
	yaml := `
storage:
  supabase:
    url: https://example.supabase.co
    service_role_key: service-key
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Storage.Backend != StorageSupabase {
		t.Errorf("Backend = %q; want supabase inferred from the filled block", cfg.Storage.Backend)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Server.LogLevel = "verbose"

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Fatalf("err = %v; want log_level failure", err)
	}
}

func TestValidate_SupabaseBackendRequiresCredentials(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Storage.Backend = StorageSupabase

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for supabase backend without credentials")
	}
	if !strings.Contains(err.Error(), "supabase.url") || !strings.Contains(err.Error(), "service_role_key") {
		t.Errorf("err = %v; want both missing fields reported", err)
	}
}

func TestValidate_PostgresBackendRequiresDSN(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Storage.Backend = StoragePostgres

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "postgres_dsn") {
		t.Fatalf("err = %v; want postgres_dsn failure", err)
	}
}

func TestValidate_InvalidLanguage(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Session.Language = "yoruba"

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "session.language") {
		t.Fatalf("err = %v; want session.language failure", err)
	}
}

func TestValidate_FallbackWithoutName(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Providers.Classifier.Fallbacks = []ProviderEntry{{Model: "some-model"}}

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "fallbacks[0].name") {
		t.Fatalf("err = %v; want fallback name failure", err)
	}
}

func TestApplyEnv_FillsEmptyFields(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("TTS_API_KEY", "odia-from-env")
	t.Setenv("TTS_BASE_URL", "https://tts.example.com")
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "env-service-key")
	t.Setenv("CROSSAI_POSTGRES_DSN", "postgres://env/crossai")

	cfg := &Config{}
	ApplyEnv(cfg)

	if cfg.Providers.Classifier.APIKey != "sk-from-env" {
		t.Errorf("Classifier.APIKey = %q", cfg.Providers.Classifier.APIKey)
	}
	if cfg.Providers.STT.APIKey != "sk-from-env" {
		t.Errorf("STT.APIKey = %q", cfg.Providers.STT.APIKey)
	}
	if cfg.Providers.TTS.APIKey != "odia-from-env" {
		t.Errorf("TTS.APIKey = %q", cfg.Providers.TTS.APIKey)
	}
	if cfg.Providers.TTS.BaseURL != "https://tts.example.com" {
		t.Errorf("TTS.BaseURL = %q", cfg.Providers.TTS.BaseURL)
	}
	if cfg.Storage.Supabase.URL != "https://env.supabase.co" {
		t.Errorf("Supabase.URL = %q", cfg.Storage.Supabase.URL)
	}
	if cfg.Storage.PostgresDSN != "postgres://env/crossai" {
		t.Errorf("PostgresDSN = %q", cfg.Storage.PostgresDSN)
	}
}

func TestApplyEnv_FileValueWins(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg := &Config{}
	cfg.Providers.Classifier.APIKey = "sk-from-file"
	ApplyEnv(cfg)

	if cfg.Providers.Classifier.APIKey != "sk-from-file" {
		t.Errorf("APIKey = %q; explicit file value must win", cfg.Providers.Classifier.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/crossai.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Server.LogLevel = "loud"
	cfg.Session.Language = "french"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected joined errors")
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("err is not a joined error: %v", err)
	}
	if n := len(joined.Unwrap()); n != 2 {
		t.Errorf("joined %d errors; want 2", n)
	}
}
