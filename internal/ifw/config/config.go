package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log      LoggingConfig  `koanf:"log"`
	Root     RootConfig     `koanf:"root"`
	Rules    RulesConfig    `koanf:"rules"`
	Store    StoreConfig    `koanf:"store"`
	Registry RegistryConfig `koanf:"registry"`
	Sources  SourcesConfig  `koanf:"sources"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// LoggingConfig controls log verbosity: "debug", "info", "warn", or "error".
type LoggingConfig struct {
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// RootConfig describes the privileged execution channel.
type RootConfig struct {
	// Enabled turns on reconciliation against the enforcement location.
	Enabled bool `koanf:"enabled"`
	// Shell is the binary invoked as `<shell> -c <command>`.
	Shell string `koanf:"shell" validate:"required"`
	// SDKLevel selects `cmd package`/`cmd activity` (>= 28) over `pm`/`am`.
	SDKLevel int `koanf:"sdk_level" validate:"required,gte=1"`
}

// RulesConfig locates the enforcement and staging directories.
type RulesConfig struct {
	SystemDir string `koanf:"system_dir" validate:"required,abspath"`
	LocalDir  string `koanf:"local_dir" validate:"required,abspath"`
}

// StoreConfig configures durable rule persistence.
type StoreConfig struct {
	Path        string  `koanf:"path" validate:"required,abspath"`
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`
}

// RegistryConfig bounds the number of idle engines kept in memory.
type RegistryConfig struct {
	Size int `koanf:"size" validate:"required,gte=1"`
}

// SourcesConfig locates the tracker signature list and the package inventory.
type SourcesConfig struct {
	Signatures string `koanf:"signatures" validate:"required,abspath"`
	Inventory  string `koanf:"inventory" validate:"required,abspath"`
}

// MetricsConfig optionally names a textfile for metric export after each run.
type MetricsConfig struct {
	File string `koanf:"file" validate:"omitempty,abspath"`
}

// DEFAULT_APP_CONFIG defines the default configuration for an on-device install.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Root: RootConfig{
		Enabled:  true,
		Shell:    "su",
		SDKLevel: 30,
	},
	Rules: RulesConfig{
		SystemDir: "/data/system/ifw/",
		LocalDir:  "/data/local/tmp/rr-ifw/ifw/",
	},
	Store: StoreConfig{
		Path:        "/data/local/tmp/rr-ifw/rules.db",
		BloomFPRate: 0.01,
	},
	Registry: RegistryConfig{Size: 64},
	Sources: SourcesConfig{
		Signatures: "/data/local/tmp/rr-ifw/trackers.txt",
		Inventory:  "/data/local/tmp/rr-ifw/packages.d/",
	},
}

// sections are the nested config keys; an env var whose first segment matches one
// is split into section.key (IFW_ROOT_SDK_LEVEL -> root.sdk_level).
var sections = []string{"log", "root", "rules", "store", "registry", "sources", "metrics"}

// envKey maps a prefix-stripped, lower-cased env var name onto a koanf path.
func envKey(key string) string {
	for _, s := range sections {
		if strings.HasPrefix(key, s+"_") {
			return s + "." + strings.TrimPrefix(key, s+"_")
		}
	}
	return key
}

// validAbsPath reports whether the field holds an absolute filesystem path.
func validAbsPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return p != "" && filepath.IsAbs(p)
}

// envLoader loads environment variables with the prefix "IFW_" and can be
// replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "IFW_",
		TransformFunc: func(key, value string) (string, any) {
			key = envKey(strings.ToLower(strings.TrimPrefix(key, "IFW_")))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "abspath" tag with the validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("abspath", validAbsPath)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
