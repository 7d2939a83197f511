package rulestore

import "github.com/haukened/rr-ifw/internal/ifw/domain"

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal interface the repository needs from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds filters sized for a dataset.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// StoreStats reports lightweight store metrics and metadata.
type StoreStats struct {
	Packages    uint64 // packages with at least one persisted rule
	Rules       uint64 // total persisted rules
	UpdatedUnix int64  // last write, seconds since epoch (0 if unknown)
}

// Store persists rule tables keyed by package name.
//   - Load returns an empty table for unknown packages
//   - Save replaces the whole table of a package
//   - Errors wrap domain.ErrStoreClosed once the store has been closed
type Store interface {
	Load(pkg string) (domain.RuleTable, error)
	Save(pkg string, table domain.RuleTable) error
	Delete(pkg string) error
	Packages() ([]string, error)
	Stats() StoreStats
	Close() error
}
