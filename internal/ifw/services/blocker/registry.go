package blocker

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Engine      EngineOptions
	Store       RuleStore
	CacheSize   int
	RootEnabled bool
	Logger      log.Logger
}

// Registry hands out engines one holder per package at a time. A package stays
// locked from Acquire until the returned Handle is released.
type Registry struct {
	opts   RegistryOptions
	store  RuleStore
	locks  *keyedMutex
	cache  engineCache
	logger log.Logger
}

// AcquireOptions selects how an engine is handed out.
type AcquireOptions struct {
	Mutable   bool // allow mutations and persist on release
	Reconcile bool // refresh from the enforcement location before returning
}

// NewRegistry builds a Registry over store.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Engine.Logger == nil {
		opts.Engine.Logger = opts.Logger
	}
	cache, err := newEngineCache(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("engine cache: %w", err)
	}
	return &Registry{
		opts:   opts,
		store:  opts.Store,
		locks:  newKeyedMutex(),
		cache:  cache,
		logger: opts.Logger,
	}, nil
}

// Acquire returns a read-only engine, reconciled when root mode is enabled.
func (r *Registry) Acquire(ctx context.Context, pkg string) (*Handle, error) {
	return r.AcquireWith(ctx, pkg, AcquireOptions{Reconcile: r.opts.RootEnabled})
}

// AcquireMutable returns an engine that accepts mutations. It does not reconcile.
func (r *Registry) AcquireMutable(ctx context.Context, pkg string) (*Handle, error) {
	return r.AcquireWith(ctx, pkg, AcquireOptions{Mutable: true})
}

// AcquireWith locks pkg and returns its engine. Reconcile is skipped when root
// mode is disabled.
func (r *Registry) AcquireWith(ctx context.Context, pkg string, o AcquireOptions) (*Handle, error) {
	if err := r.locks.Lock(ctx, pkg); err != nil {
		return nil, err
	}
	e, err := r.engine(pkg)
	if err != nil {
		r.locks.Unlock(pkg)
		return nil, err
	}
	e.mutable = o.Mutable
	if o.Reconcile && r.opts.RootEnabled {
		if err := e.Reconcile(); err != nil {
			e.mutable = false
			r.cache.Remove(pkg)
			r.locks.Unlock(pkg)
			return nil, err
		}
	}
	return &Handle{Engine: e, reg: r}, nil
}

func (r *Registry) engine(pkg string) (*Engine, error) {
	if e, ok := r.cache.Get(pkg); ok {
		return e, nil
	}
	table, err := r.store.Load(pkg)
	if err != nil {
		return nil, fmt.Errorf("load rules for %s: %w", pkg, err)
	}
	e := NewEngine(pkg, table, r.opts.Engine)
	r.cache.Put(pkg, e)
	return e, nil
}

// release persists a mutated engine and unlocks its package.
func (r *Registry) release(e *Engine) error {
	defer r.locks.Unlock(e.pkg)
	persist := e.mutable || e.dirty
	e.mutable = false
	if !persist {
		return nil
	}
	if err := r.store.Save(e.pkg, e.table); err != nil {
		// the cached table no longer matches the store
		r.cache.Remove(e.pkg)
		return fmt.Errorf("save rules for %s: %w", e.pkg, err)
	}
	return e.finishMigration()
}

// Packages lists every package with persisted rules.
func (r *Registry) Packages() ([]string, error) {
	return r.store.Packages()
}

// LocalRulePackages lists packages that have a rule file in the staging location.
func (r *Registry) LocalRulePackages() []string {
	return r.listRulePackages(r.opts.Engine.LocalDir, "*.xml")
}

// SystemRules reads every enforcement file for pkg and returns the components
// they block. Files of packages sharing the name prefix decode to nothing.
func (r *Registry) SystemRules(pkg string) map[string]domain.ComponentType {
	out := make(map[string]domain.ComponentType)
	eo := r.opts.Engine
	res := eo.Runner.Run(eo.Commands.List(path.Join(eo.SystemDir, pkg+"*.xml")))
	if !res.Success {
		return out
	}
	for _, file := range res.StdoutLines {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		body := eo.Runner.Run(eo.Commands.Cat(file))
		if !body.Success {
			r.logger.Warn(map[string]any{"package": pkg, "file": file}, "system_rules_read_failed")
			continue
		}
		for name, ct := range eo.Codec.Decode(strings.NewReader(body.RawStdout), pkg) {
			out[name] = ct
		}
	}
	return out
}

// ReadLocalRules returns the raw staging artifact of pkg through the privileged channel.
func (r *Registry) ReadLocalRules(pkg string) (string, bool) {
	eo := r.opts.Engine
	res := eo.Runner.Run(eo.Commands.Cat(path.Join(eo.LocalDir, pkg+".xml")))
	return res.RawStdout, res.Success
}

func (r *Registry) listRulePackages(dir, glob string) []string {
	eo := r.opts.Engine
	res := eo.Runner.Run(eo.Commands.List(path.Join(dir, glob)))
	if !res.Success {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, line := range res.StdoutLines {
		base := path.Base(strings.TrimSpace(line))
		pkg, ok := strings.CutSuffix(base, ".xml")
		if !ok || pkg == "" {
			continue
		}
		if _, dup := seen[pkg]; dup {
			continue
		}
		seen[pkg] = struct{}{}
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out
}

// CacheStats reports engine cache hits, misses and evictions.
func (r *Registry) CacheStats() (hits, misses, evictions uint64) { return r.cache.Stats() }

// Handle is an exclusively held engine. Release must be called exactly once;
// further calls are no-ops returning the first result.
type Handle struct {
	*Engine
	reg  *Registry
	once sync.Once
	err  error
}

// Release persists the table when it was acquired mutable (or migrated legacy
// data) and unlocks the package.
func (h *Handle) Release() error {
	h.once.Do(func() { h.err = h.reg.release(h.Engine) })
	return h.err
}
