package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/haukened/rr-ifw/internal/ifw/common/clock"
	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/common/metrics"
	"github.com/haukened/rr-ifw/internal/ifw/config"
	"github.com/haukened/rr-ifw/internal/ifw/gateways/privileged"
	"github.com/haukened/rr-ifw/internal/ifw/gateways/wire"
	"github.com/haukened/rr-ifw/internal/ifw/repos/inventory"
	"github.com/haukened/rr-ifw/internal/ifw/repos/rulestore"
	"github.com/haukened/rr-ifw/internal/ifw/repos/rulestore/bloom"
	"github.com/haukened/rr-ifw/internal/ifw/repos/rulestore/bolt"
	"github.com/haukened/rr-ifw/internal/ifw/services/batch"
	"github.com/haukened/rr-ifw/internal/ifw/services/blocker"
	"github.com/haukened/rr-ifw/internal/ifw/services/classifier"
)

// Application holds all the components of the rule engine.
type Application struct {
	config     *config.AppConfig
	metrics    *metrics.Registry
	rules      *rulestore.Repository
	registry   *blocker.Registry
	inventory  *inventory.Inventory
	classifier *classifier.Classifier
	ops        *batch.Operations
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()
	m := metrics.New()

	// Build repository layer
	rules, err := buildRuleStore(cfg, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule store: %w", err)
	}

	inv, err := inventory.LoadDirectory(cfg.Sources.Inventory, logger)
	if err != nil {
		_ = rules.Close()
		return nil, fmt.Errorf("failed to load package inventory: %w", err)
	}

	signatures, err := classifier.LoadSignatures(cfg.Sources.Signatures, logger)
	if err != nil {
		log.Warn(map[string]any{"file": cfg.Sources.Signatures, "error": err.Error()}, "Tracker signatures unavailable")
		signatures = nil
	}

	// Build gateway layer
	runner := privileged.NewShellRunner(privileged.Options{
		Shell:    cfg.Root.Shell,
		Logger:   logger,
		Observer: m,
	})

	// Build service layer
	registry, err := blocker.NewRegistry(blocker.RegistryOptions{
		Engine: blocker.EngineOptions{
			SystemDir: cfg.Rules.SystemDir,
			LocalDir:  cfg.Rules.LocalDir,
			Runner:    runner,
			Commands:  privileged.NewCommands(cfg.Root.SDKLevel),
			Codec:     wire.NewIFWCodec(logger),
			Observer:  m,
			Logger:    logger,
		},
		Store:       rules,
		CacheSize:   cfg.Registry.Size,
		RootEnabled: cfg.Root.Enabled,
		Logger:      logger,
	})
	if err != nil {
		_ = rules.Close()
		return nil, fmt.Errorf("failed to build engine registry: %w", err)
	}

	cls := classifier.New(signatures, inv, logger)
	ops := batch.New(batch.Options{
		Registry:   registry,
		Classifier: cls,
		Recorder:   m,
		Logger:     logger,
	})

	log.Info(map[string]any{
		"store":      cfg.Store.Path,
		"packages":   len(inv.Packages()),
		"signatures": len(signatures),
		"root":       cfg.Root.Enabled,
	}, "Rule engine ready")

	return &Application{
		config:     cfg,
		metrics:    m,
		rules:      rules,
		registry:   registry,
		inventory:  inv,
		classifier: cls,
		ops:        ops,
	}, nil
}

// buildRuleStore opens the bolt store and wraps it with the Bloom prefilter.
func buildRuleStore(cfg *config.AppConfig, clk clock.Clock, logger log.Logger) (*rulestore.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, err
	}
	store, err := bolt.New(cfg.Store.Path, clk)
	if err != nil {
		return nil, err
	}
	repo, err := rulestore.NewRepository(store, bloom.NewFactory(), cfg.Store.BloomFPRate, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return repo, nil
}

// Flush writes the metrics textfile when one is configured.
func (app *Application) Flush() error {
	if app.config.Metrics.File == "" {
		return nil
	}
	return app.metrics.WriteTextfile(app.config.Metrics.File)
}

// Close flushes metrics and releases the rule store.
func (app *Application) Close() error {
	return multierr.Combine(app.Flush(), app.rules.Close())
}
