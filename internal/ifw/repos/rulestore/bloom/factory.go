package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-ifw/internal/ifw/repos/rulestore"
)

// factory implements rulestore.BloomFactory using internal sizing formulas.
type factory struct {
	sizer rulestore.BloomSizer
}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() rulestore.BloomFactory { return factory{sizer: NewSizer()} }

// New constructs a filter sized for the given capacity and false-positive rate.
func (f factory) New(capacity uint64, fpRate float64) rulestore.BloomFilter {
	m, k := f.sizer.Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
