// Package batch drives the blocker engine across many packages. Packages are
// processed one after another; a failing package is recorded and skipped while
// fatal conditions (closed rule store, cancelled context) stop the run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
	"github.com/haukened/rr-ifw/internal/ifw/services/blocker"
)

// Operation names used for logging and metrics.
const (
	OpBlockTracking   = "block_tracking"
	OpUnblockTracking = "unblock_tracking"
	OpBlockFiltered   = "block_filtered"
	OpRevert          = "revert"
	OpApplyAll        = "apply_all"
	OpImportLocal     = "import_local"
)

// Classifier selects the components a batch acts on.
type Classifier interface {
	TrackerComponents(pkg string) (map[string]domain.ComponentType, error)
	FilteredComponents(pkg string, signatures []string) (map[string]domain.ComponentType, error)
}

// EngineRegistry hands out engines and enumerates rule-bearing packages.
type EngineRegistry interface {
	AcquireMutable(ctx context.Context, pkg string) (*blocker.Handle, error)
	Packages() ([]string, error)
	LocalRulePackages() []string
	ReadLocalRules(pkg string) (string, bool)
}

// Recorder counts per-package outcomes.
type Recorder interface {
	ObservePackage(operation string, ok bool)
}

// Options configures Operations.
type Options struct {
	Registry   EngineRegistry
	Classifier Classifier
	Recorder   Recorder
	Logger     log.Logger
}

// Operations runs batch transactions. It is not safe for concurrent use.
type Operations struct {
	registry   EngineRegistry
	classifier Classifier
	recorder   Recorder
	logger     log.Logger
	newID      func() string
}

type noopRecorder struct{}

func (noopRecorder) ObservePackage(string, bool) {}

// New returns Operations over the given collaborators.
func New(opts Options) *Operations {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	return &Operations{
		registry:   opts.Registry,
		classifier: opts.Classifier,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		newID:      uuid.NewString,
	}
}

// BlockTracking stages and enforces every tracker component of each package.
func (o *Operations) BlockTracking(ctx context.Context, pkgs []string) ([]string, error) {
	return o.run(ctx, OpBlockTracking, pkgs, func(h *blocker.Handle) error {
		comps, err := o.classifier.TrackerComponents(h.Package())
		if err != nil {
			return err
		}
		return addAll(h, comps)
	})
}

// UnblockTracking removes every tracker component of each package and enforces
// the result, re-enabling providers that were disabled.
func (o *Operations) UnblockTracking(ctx context.Context, pkgs []string) ([]string, error) {
	return o.run(ctx, OpUnblockTracking, pkgs, func(h *blocker.Handle) error {
		comps, err := o.classifier.TrackerComponents(h.Package())
		if err != nil {
			return err
		}
		for _, name := range sortedNames(comps) {
			if err := h.Remove(name); err != nil {
				return err
			}
		}
		return h.Apply(true)
	})
}

// BlockFiltered blocks the components of each package matching signatures.
func (o *Operations) BlockFiltered(ctx context.Context, pkgs []string, signatures []string) ([]string, error) {
	return o.run(ctx, OpBlockFiltered, pkgs, func(h *blocker.Handle) error {
		comps, err := o.classifier.FilteredComponents(h.Package(), signatures)
		if err != nil {
			return err
		}
		return addAll(h, comps)
	})
}

// Revert restores each package to its manifest defaults while remembering its rules.
func (o *Operations) Revert(ctx context.Context, pkgs []string) ([]string, error) {
	return o.run(ctx, OpRevert, pkgs, func(h *blocker.Handle) error {
		return h.Apply(false)
	})
}

// ApplyAll enforces the remembered rules of every package in the store.
func (o *Operations) ApplyAll(ctx context.Context) ([]string, error) {
	pkgs, err := o.registry.Packages()
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return o.run(ctx, OpApplyAll, pkgs, func(h *blocker.Handle) error {
		return h.Apply(true)
	})
}

// ImportLocalRules absorbs rule files found in the staging location and
// enforces them.
func (o *Operations) ImportLocalRules(ctx context.Context) ([]string, error) {
	pkgs := o.registry.LocalRulePackages()
	return o.run(ctx, OpImportLocal, pkgs, func(h *blocker.Handle) error {
		raw, ok := o.registry.ReadLocalRules(h.Package())
		if !ok {
			return fmt.Errorf("read local rules for %s", h.Package())
		}
		if _, err := h.Absorb(strings.NewReader(raw)); err != nil {
			return err
		}
		return h.Apply(true)
	})
}

func addAll(h *blocker.Handle, comps map[string]domain.ComponentType) error {
	for _, name := range sortedNames(comps) {
		if err := h.Add(name, comps[name]); err != nil {
			return err
		}
	}
	return h.Apply(true)
}

func sortedNames(comps map[string]domain.ComponentType) []string {
	t := domain.NewRuleTable()
	for name, ct := range comps {
		t.Set(name, ct, domain.RuleDefault)
	}
	return t.Names()
}

// run processes pkgs in order and returns the packages that failed. A fatal
// error stops the run and is returned with the failures collected so far.
func (o *Operations) run(ctx context.Context, op string, pkgs []string, fn func(*blocker.Handle) error) ([]string, error) {
	logger := log.With(o.logger, map[string]any{"run": o.newID(), "op": op})
	logger.Info(map[string]any{"packages": len(pkgs)}, "batch_start")

	var failed []string
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			logger.Warn(map[string]any{"failed": len(failed)}, "batch_cancelled")
			return failed, err
		}
		err := o.process(ctx, pkg, fn)
		o.recorder.ObservePackage(op, err == nil)
		if err == nil {
			continue
		}
		failed = append(failed, pkg)
		if IsFatal(err) {
			logger.Error(map[string]any{"package": pkg, "error": err.Error()}, "batch_aborted")
			return failed, err
		}
		logger.Warn(map[string]any{"package": pkg, "error": err.Error()}, "package_failed")
	}
	logger.Info(map[string]any{"packages": len(pkgs), "failed": len(failed)}, "batch_done")
	return failed, nil
}

// process runs one package transaction. Release always runs and its error is
// combined with the transaction error.
func (o *Operations) process(ctx context.Context, pkg string, fn func(*blocker.Handle) error) (err error) {
	h, err := o.registry.AcquireMutable(ctx, pkg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, h.Release())
	}()
	return fn(h)
}

// IsFatal reports whether err must stop a batch instead of failing one package.
func IsFatal(err error) bool {
	return errors.Is(err, domain.ErrStoreClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
