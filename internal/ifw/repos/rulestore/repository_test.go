package rulestore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

type memStore struct {
	tables  map[string]domain.RuleTable
	loads   int
	deletes int
	listErr error
	closed  bool
}

func newMemStore() *memStore { return &memStore{tables: map[string]domain.RuleTable{}} }

func (m *memStore) Load(pkg string) (domain.RuleTable, error) {
	m.loads++
	if t, ok := m.tables[pkg]; ok {
		return t.Clone(), nil
	}
	return domain.NewRuleTable(), nil
}

func (m *memStore) Save(pkg string, t domain.RuleTable) error {
	m.tables[pkg] = t.Clone()
	return nil
}

func (m *memStore) Delete(pkg string) error {
	m.deletes++
	delete(m.tables, pkg)
	return nil
}

func (m *memStore) Packages() ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []string
	for p := range m.tables {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) Stats() StoreStats { return StoreStats{Packages: uint64(len(m.tables))} }
func (m *memStore) Close() error      { m.closed = true; return nil }

// setFilter is an exact-membership stand-in for a Bloom filter.
type setFilter map[string]struct{}

func (s setFilter) Add(k []byte)                { s[string(k)] = struct{}{} }
func (s setFilter) MightContain(k []byte) bool { _, ok := s[string(k)]; return ok }

type setFactory struct{}

func (setFactory) New(uint64, float64) BloomFilter { return setFilter{} }

func TestRepository_LoadSkipsStoreForUnknownPackages(t *testing.T) {
	store := newMemStore()
	seed := domain.NewRuleTable()
	seed.Set("old.A", domain.ComponentActivity, domain.RuleBlocked)
	store.tables["old"] = seed

	repo, err := NewRepository(store, setFactory{}, 0.01, nil)
	require.NoError(t, err)

	tbl, err := repo.Load("unknown")
	require.NoError(t, err)
	assert.Empty(t, tbl)
	assert.Equal(t, 0, store.loads)

	tbl, err = repo.Load("old")
	require.NoError(t, err)
	assert.Len(t, tbl, 1)
	assert.Equal(t, 1, store.loads)
}

func TestRepository_SaveAndEmptySave(t *testing.T) {
	store := newMemStore()
	repo, err := NewRepository(store, setFactory{}, 0.01, nil)
	require.NoError(t, err)

	tbl := domain.NewRuleTable()
	tbl.Set("pkg.S", domain.ComponentService, domain.RuleBlocked)
	require.NoError(t, repo.Save("pkg", tbl))

	got, err := repo.Load("pkg")
	require.NoError(t, err)
	assert.Equal(t, domain.RuleBlocked, got["pkg.S"].State)

	// empty table on a never-saved package does not touch the store
	require.NoError(t, repo.Save("other", domain.NewRuleTable()))
	assert.Equal(t, 0, store.deletes)

	require.NoError(t, repo.Save("pkg", domain.NewRuleTable()))
	assert.Equal(t, 1, store.deletes)
	pkgs, _ := repo.Packages()
	assert.Empty(t, pkgs)
}

func TestRepository_RebuildError(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("boom")
	_, err := NewRepository(store, setFactory{}, 0.01, nil)
	assert.Error(t, err)
}

func TestRepository_StatsAndClose(t *testing.T) {
	store := newMemStore()
	repo, err := NewRepository(store, setFactory{}, 0.01, nil)
	require.NoError(t, err)
	tbl := domain.NewRuleTable()
	tbl.Set("a.A", domain.ComponentActivity, domain.RuleToBlock)
	require.NoError(t, repo.Save("a", tbl))
	assert.Equal(t, uint64(1), repo.Stats().Packages)
	require.NoError(t, repo.Close())
	assert.True(t, store.closed)
}
