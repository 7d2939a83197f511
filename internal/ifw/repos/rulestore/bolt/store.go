package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/rr-ifw/internal/ifw/common/clock"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
	"github.com/haukened/rr-ifw/internal/ifw/repos/rulestore"
)

var (
	bucketRules = []byte("rules")
	bucketMeta  = []byte("meta")
	keyUpdated  = []byte("updated")
)

// boltStore implements rulestore.Store using bbolt. Each package owns a nested
// bucket under "rules" mapping component name to a 2-byte [type, state] value.
type boltStore struct {
	db    *bbolt.DB
	clock clock.Clock
}

// bucketCreator is the subset of *bbolt.Tx used to create top-level buckets.
type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

// bucketDeleter is the subset of *bbolt.Bucket used to drop nested buckets.
type bucketDeleter interface {
	DeleteBucket(name []byte) error
}

var (
	ensureBucketsFn = ensureBuckets
	deleteBucketsFn = deleteBuckets
)

// New opens (or creates) a Bolt database at path and ensures buckets exist.
// The parent directory must already exist.
func New(path string, clk clock.Clock) (rulestore.Store, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error { return ensureBucketsFn(tx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db, clock: clk}, nil
}

func ensureBuckets(tx bucketCreator) error {
	for _, name := range [][]byte{bucketRules, bucketMeta} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return nil
}

// deleteBuckets removes each named bucket, ignoring ones that do not exist.
func deleteBuckets(b bucketDeleter, names ...[]byte) error {
	for _, name := range names {
		if err := b.DeleteBucket(name); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return err
		}
	}
	return nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// Load returns the persisted table for pkg; unknown packages yield an empty table.
func (s *boltStore) Load(pkg string) (domain.RuleTable, error) {
	table := domain.NewRuleTable()
	err := s.db.View(func(tx *bbolt.Tx) error {
		pb := tx.Bucket(bucketRules).Bucket([]byte(pkg))
		if pb == nil {
			return nil
		}
		return pb.ForEach(func(k, v []byte) error {
			e := decodeRule(string(k), v)
			table[e.Name] = e
			return nil
		})
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return table, nil
}

// Save replaces every rule of pkg with table.
func (s *boltStore) Save(pkg string, table domain.RuleTable) error {
	return wrapErr(s.db.Update(func(tx *bbolt.Tx) error {
		rb := tx.Bucket(bucketRules)
		if err := deleteBucketsFn(rb, []byte(pkg)); err != nil {
			return err
		}
		pb, err := rb.CreateBucket([]byte(pkg))
		if err != nil {
			return err
		}
		for _, name := range table.Names() {
			if err := pb.Put([]byte(name), encodeRule(table[name])); err != nil {
				return err
			}
		}
		return s.touch(tx)
	}))
}

// Delete drops every rule of pkg. Unknown packages are a no-op.
func (s *boltStore) Delete(pkg string) error {
	return wrapErr(s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteBucketsFn(tx.Bucket(bucketRules), []byte(pkg)); err != nil {
			return err
		}
		return s.touch(tx)
	}))
}

// Packages lists packages with a rule bucket, sorted by name.
func (s *boltStore) Packages() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRules).ForEachBucket(func(k []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *boltStore) Stats() rulestore.StoreStats {
	st := rulestore.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		rb := tx.Bucket(bucketRules)
		_ = rb.ForEachBucket(func(k []byte) error {
			st.Packages++
			st.Rules += uint64(rb.Bucket(k).Stats().KeyN)
			return nil
		})
		if v := tx.Bucket(bucketMeta).Get(keyUpdated); len(v) == 8 {
			st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return st
}

func (s *boltStore) touch(tx *bbolt.Tx) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(s.clock.Now().Unix()))
	return tx.Bucket(bucketMeta).Put(keyUpdated, buf)
}

func encodeRule(e domain.RuleEntry) []byte {
	return []byte{byte(e.Type), byte(e.State)}
}

// decodeRule tolerates short or unknown values: missing bytes decode as
// ComponentUnknown / RuleDefault.
func decodeRule(name string, v []byte) domain.RuleEntry {
	e := domain.RuleEntry{Name: name}
	if len(v) >= 1 {
		e.Type = domain.ComponentType(v[0])
	}
	if len(v) >= 2 {
		e.State = domain.RuleState(v[1])
	}
	if e.Type > domain.ComponentProvider {
		e.Type = domain.ComponentUnknown
	}
	if !e.State.IsValid() {
		e.State = domain.RuleDefault
	}
	return e
}

// wrapErr maps bbolt's closed-database error onto domain.ErrStoreClosed.
func wrapErr(err error) error {
	if err != nil && errors.Is(err, bberrors.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %v", domain.ErrStoreClosed, err)
	}
	return err
}
