package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected Log.Level=info, got %q", cfg.Log.Level)
	}
	if !cfg.Root.Enabled || cfg.Root.Shell != "su" || cfg.Root.SDKLevel != 30 {
		t.Errorf("unexpected Root defaults: %+v", cfg.Root)
	}
	if cfg.Rules.SystemDir != "/data/system/ifw/" {
		t.Errorf("expected Rules.SystemDir=/data/system/ifw/, got %q", cfg.Rules.SystemDir)
	}
	if cfg.Rules.LocalDir != "/data/local/tmp/rr-ifw/ifw/" {
		t.Errorf("expected Rules.LocalDir default, got %q", cfg.Rules.LocalDir)
	}
	if cfg.Store.Path != "/data/local/tmp/rr-ifw/rules.db" || cfg.Store.BloomFPRate != 0.01 {
		t.Errorf("unexpected Store defaults: %+v", cfg.Store)
	}
	if cfg.Registry.Size != 64 {
		t.Errorf("expected Registry.Size=64, got %d", cfg.Registry.Size)
	}
	if cfg.Metrics.File != "" {
		t.Errorf("expected Metrics.File empty by default, got %q", cfg.Metrics.File)
	}
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("IFW_ENV", "dev")
	t.Setenv("IFW_LOG_LEVEL", "debug")
	t.Setenv("IFW_ROOT_ENABLED", "false")
	t.Setenv("IFW_ROOT_SHELL", "sh")
	t.Setenv("IFW_ROOT_SDK_LEVEL", "27")
	t.Setenv("IFW_RULES_SYSTEM_DIR", "/tmp/sys/ifw/")
	t.Setenv("IFW_RULES_LOCAL_DIR", "/tmp/local/ifw/")
	t.Setenv("IFW_STORE_PATH", "/tmp/rules.db")
	t.Setenv("IFW_STORE_BLOOM_FP_RATE", "0.05")
	t.Setenv("IFW_REGISTRY_SIZE", "8")
	t.Setenv("IFW_SOURCES_SIGNATURES", "/tmp/trackers.txt")
	t.Setenv("IFW_SOURCES_INVENTORY", "/tmp/packages.d/")
	t.Setenv("IFW_METRICS_FILE", "/tmp/ifw.prom")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "dev" || cfg.Log.Level != "debug" {
		t.Errorf("unexpected env/log: %q %q", cfg.Env, cfg.Log.Level)
	}
	if cfg.Root.Enabled {
		t.Errorf("expected Root.Enabled=false")
	}
	if cfg.Root.Shell != "sh" || cfg.Root.SDKLevel != 27 {
		t.Errorf("unexpected Root: %+v", cfg.Root)
	}
	if cfg.Rules.SystemDir != "/tmp/sys/ifw/" || cfg.Rules.LocalDir != "/tmp/local/ifw/" {
		t.Errorf("unexpected Rules: %+v", cfg.Rules)
	}
	if cfg.Store.Path != "/tmp/rules.db" || cfg.Store.BloomFPRate != 0.05 {
		t.Errorf("unexpected Store: %+v", cfg.Store)
	}
	if cfg.Registry.Size != 8 {
		t.Errorf("expected Registry.Size=8, got %d", cfg.Registry.Size)
	}
	if cfg.Sources.Signatures != "/tmp/trackers.txt" || cfg.Sources.Inventory != "/tmp/packages.d/" {
		t.Errorf("unexpected Sources: %+v", cfg.Sources)
	}
	if cfg.Metrics.File != "/tmp/ifw.prom" {
		t.Errorf("unexpected Metrics.File: %q", cfg.Metrics.File)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"env", "IFW_ENV", "staging"},
		{"log level", "IFW_LOG_LEVEL", "trace"},
		{"relative system dir", "IFW_RULES_SYSTEM_DIR", "data/system/ifw"},
		{"empty local dir", "IFW_RULES_LOCAL_DIR", ""},
		{"sdk not a number", "IFW_ROOT_SDK_LEVEL", "pie"},
		{"sdk zero", "IFW_ROOT_SDK_LEVEL", "0"},
		{"bloom rate", "IFW_STORE_BLOOM_FP_RATE", "1.5"},
		{"registry size", "IFW_REGISTRY_SIZE", "0"},
		{"relative metrics file", "IFW_METRICS_FILE", "ifw.prom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.val)
			}
		})
	}
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading defaults")
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading env")
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked validation error") {
		t.Fatal("expected error when registering validation")
	}
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"env":                 "env",
		"log_level":           "log.level",
		"root_sdk_level":      "root.sdk_level",
		"store_bloom_fp_rate": "store.bloom_fp_rate",
		"unknown_key":         "unknown_key",
	}
	for in, want := range cases {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidAbsPath(t *testing.T) {
	validate := validator.New()
	_ = validate.RegisterValidation("abspath", validAbsPath)

	type S struct {
		P string `validate:"abspath"`
	}
	cases := []struct {
		in   string
		want bool
	}{
		{"/data/system/ifw/", true},
		{"/tmp/x.db", true},
		{"relative/dir", false},
		{"", false},
	}
	for _, tc := range cases {
		err := validate.Struct(S{P: tc.in})
		if tc.want && err != nil {
			t.Errorf("validAbsPath(%q) = false, want true", tc.in)
		}
		if !tc.want && err == nil {
			t.Errorf("validAbsPath(%q) = true, want false", tc.in)
		}
	}
}

func TestDefaultLoader_InvalidDefault_ValidationFails(t *testing.T) {
	orig := DEFAULT_APP_CONFIG
	defer func() { DEFAULT_APP_CONFIG = orig }()

	bad := orig
	bad.Store.Path = "rules.db"
	DEFAULT_APP_CONFIG = bad

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for relative default store path")
	}
}
