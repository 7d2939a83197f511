package rulestore

import (
	"sync"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

// Repository composes a Store with a Bloom prefilter so that packages which
// never had rules are answered without touching the database.
type Repository struct {
	mu      sync.RWMutex
	store   Store
	bloom   BloomFilter
	factory BloomFactory
	fpRate  float64
	logger  log.Logger
}

// NewRepository wraps store and seeds the prefilter from its package index.
// fpRate is the target false-positive rate for the Bloom filter.
func NewRepository(store Store, factory BloomFactory, fpRate float64, logger log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	r := &Repository{store: store, factory: factory, fpRate: fpRate, logger: logger}
	if err := r.Rebuild(); err != nil {
		return nil, err
	}
	return r, nil
}

// Rebuild recreates the prefilter from the packages currently in the store.
func (r *Repository) Rebuild() error {
	pkgs, err := r.store.Packages()
	if err != nil {
		return err
	}
	// leave headroom for packages added during this run
	bf := r.factory.New(uint64(len(pkgs))*2+64, r.fpRate)
	for _, p := range pkgs {
		bf.Add([]byte(p))
	}
	r.mu.Lock()
	r.bloom = bf
	r.mu.Unlock()
	r.logger.Debug(map[string]any{"packages": len(pkgs)}, "rule_prefilter_rebuilt")
	return nil
}

// Load returns the persisted table for pkg, or an empty table when the package
// has never been saved.
func (r *Repository) Load(pkg string) (domain.RuleTable, error) {
	if !r.mightContain(pkg) {
		return domain.NewRuleTable(), nil
	}
	return r.store.Load(pkg)
}

// Save persists table. An empty table removes the package from the store.
func (r *Repository) Save(pkg string, table domain.RuleTable) error {
	if len(table) == 0 {
		if !r.mightContain(pkg) {
			return nil
		}
		return r.store.Delete(pkg)
	}
	if err := r.store.Save(pkg, table); err != nil {
		return err
	}
	r.mu.Lock()
	if r.bloom != nil {
		r.bloom.Add([]byte(pkg))
	}
	r.mu.Unlock()
	return nil
}

// Packages lists every package with persisted rules, sorted by name.
func (r *Repository) Packages() ([]string, error) {
	return r.store.Packages()
}

// Stats passes through the store statistics.
func (r *Repository) Stats() StoreStats { return r.store.Stats() }

// Close releases the underlying store.
func (r *Repository) Close() error { return r.store.Close() }

func (r *Repository) mightContain(pkg string) bool {
	r.mu.RLock()
	bf := r.bloom
	r.mu.RUnlock()
	if bf == nil {
		return true
	}
	return bf.MightContain([]byte(pkg))
}
