// ABOUTME: Public handle for the historical observation store
// ABOUTME: Owns the put/merge algorithm and the per-entity read path

package histdb

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/nainya/chronostore/internal/metrics"
	"github.com/nainya/chronostore/pkg/codec"
	"github.com/nainya/chronostore/pkg/store"
	"github.com/nainya/chronostore/pkg/temporal"
)

// storeSignature identifies a chronostore keyspace in the descriptor record
const storeSignature = "chrono01"

// Meta region record ids
const (
	metaDescriptor       byte = 0x00
	metaIndexSensitive   byte = 0x01
	metaIndexInsensitive byte = 0x02
)

// DB is a handle to one store instance. All operations are synchronous
// sequences of adapter calls; the handle itself holds no caches and no locks.
// Concurrent Put calls on the same (entity, value) pair can lose updates;
// single-writer discipline per pair is left to the caller.
type DB struct {
	kv      store.Store
	variant temporal.Variant
	log     zerolog.Logger
	met     *metrics.Metrics
}

// Observation is one (entity, value, timestamp) triple.
type Observation struct {
	EntityID  uint64
	Value     []byte
	Timestamp uint32
}

type config struct {
	logger     zerolog.Logger
	inMemory   bool
	syncWrites bool
}

// Option configures a store handle.
type Option func(*config)

// WithLogger routes engine diagnostics to the given logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.logger = log }
}

// WithInMemory keeps the whole store off disk (tests, scratch stores).
func WithInMemory() Option {
	return func(c *config) { c.inMemory = true }
}

// WithSyncWrites forces an fsync on every commit.
func WithSyncWrites() Option {
	return func(c *config) { c.syncWrites = true }
}

func newConfig(opts []Option) config {
	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Open opens or creates a store at path with the given temporal variant.
// The variant is recorded in the store on first open and validated on every
// later open; reopening under a different variant fails rather than
// misreading historical values.
func Open(path string, variant temporal.Variant, opts ...Option) (*DB, error) {
	cfg := newConfig(opts)

	kv, err := store.OpenBadger(path, store.Options{
		InMemory:   cfg.inMemory,
		SyncWrites: cfg.syncWrites,
		Logger:     cfg.logger.With().Str("component", "engine").Logger(),
	})
	if err != nil {
		return nil, err
	}

	db, err := New(kv, variant, opts...)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	db.log.Info().
		Str("path", path).
		Str("variant", variant.String()).
		Bool("in_memory", cfg.inMemory).
		Msg("store opened")
	return db, nil
}

// New wraps an already-open store adapter. Most callers want Open.
func New(kv store.Store, variant temporal.Variant, opts ...Option) (*DB, error) {
	if !variant.Valid() {
		return nil, fmt.Errorf("histdb: unknown temporal variant %d", variant)
	}
	cfg := newConfig(opts)

	db := &DB{
		kv:      kv,
		variant: variant,
		log:     cfg.logger,
		met:     metrics.Get(),
	}
	if err := db.checkDescriptor(); err != nil {
		return nil, err
	}
	return db, nil
}

// Variant reports the temporal variant this store was created with.
func (db *DB) Variant() temporal.Variant { return db.variant }

// Close releases the underlying engine. The handle must not be used after.
func (db *DB) Close() error {
	db.publishSize()
	err := db.kv.Close()
	if err != nil {
		return fmt.Errorf("histdb: close: %w", err)
	}
	db.log.Info().Msg("store closed")
	return nil
}

// Put folds one observation into the entry for (entityID, value), creating
// the entry if this is the first observation of the pair. Exactly one key is
// written per call. Idempotent with respect to repeated timestamps.
func (db *DB) Put(entityID uint64, value []byte, ts uint32) (err error) {
	start := time.Now()
	defer func() { db.met.RecordOperation("put", start, err) }()

	key := codec.PrimaryKey(entityID, value)

	existing, ok, err := db.kv.Get(key)
	if err != nil {
		return err
	}

	var summary temporal.Summary
	if ok {
		summary, err = temporal.Decode(db.variant, existing)
		if err != nil {
			return err
		}
		summary.Observe(ts)
	} else {
		summary = temporal.New(db.variant, ts)
	}

	if err = db.kv.Put(key, summary.Append(nil)); err != nil {
		return err
	}
	db.met.ObservationsTotal.Inc()
	return nil
}

// PutBatch folds a batch of observations, stopping at the first failure.
func (db *DB) PutBatch(batch []Observation) error {
	for _, obs := range batch {
		if err := db.Put(obs.EntityID, obs.Value, obs.Timestamp); err != nil {
			return fmt.Errorf("histdb: batch put entity %d: %w", obs.EntityID, err)
		}
	}
	return nil
}

// Get returns every value observed for the entity with its temporal summary.
// An entity with no observations yields an empty map, not an error.
func (db *DB) Get(entityID uint64) (result map[string]temporal.Summary, err error) {
	start := time.Now()
	defer func() { db.met.RecordOperation("get", start, err) }()

	result = make(map[string]temporal.Summary)
	err = db.kv.IteratePrefix(codec.PrimaryPrefix(entityID), func(key, value []byte) error {
		_, data, err := codec.SplitPrimaryKey(key)
		if err != nil {
			return err
		}
		summary, err := temporal.Decode(db.variant, value)
		if err != nil {
			return err
		}
		result[string(data)] = summary
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Counts reports the number of distinct entities and live entries in the
// primary table. Requires a full scan.
func (db *DB) Counts() (entities, entries uint64, err error) {
	start := time.Now()
	defer func() { db.met.RecordOperation("counts", start, err) }()

	seen := make(map[uint64]struct{})
	err = db.kv.IteratePrefix([]byte{codec.TagPrimary}, func(key, _ []byte) error {
		id, _, err := codec.SplitPrimaryKey(key)
		if err != nil {
			return err
		}
		seen[id] = struct{}{}
		entries++
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return uint64(len(seen)), entries, nil
}

// Walk visits every primary entry in ascending (entity id, value) order.
// A non-nil error from fn aborts the walk and is returned unchanged.
func (db *DB) Walk(fn func(entityID uint64, value []byte, summary temporal.Summary) error) error {
	return db.kv.IteratePrefix([]byte{codec.TagPrimary}, func(key, value []byte) error {
		id, data, err := codec.SplitPrimaryKey(key)
		if err != nil {
			return err
		}
		summary, err := temporal.Decode(db.variant, value)
		if err != nil {
			return err
		}
		return fn(id, data, summary)
	})
}

// descriptor serializes the store descriptor for a variant:
// signature(8B) ++ variant(1B) ++ xxhash64 of the preceding bytes (8B BE).
func descriptor(v temporal.Variant) []byte {
	buf := make([]byte, 0, len(storeSignature)+1+8)
	buf = append(buf, storeSignature...)
	buf = append(buf, byte(v))
	return binary.BigEndian.AppendUint64(buf, xxhash.Sum64(buf))
}

// checkDescriptor writes the descriptor on first open and validates it on
// every later open.
func (db *DB) checkDescriptor() error {
	key := codec.MetaKey(metaDescriptor)

	existing, ok, err := db.kv.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return db.kv.Put(key, descriptor(db.variant))
	}

	payloadLen := len(storeSignature) + 1
	if len(existing) != payloadLen+8 || string(existing[:len(storeSignature)]) != storeSignature {
		return fmt.Errorf("%w: %d bytes", ErrCorruptDescriptor, len(existing))
	}
	if binary.BigEndian.Uint64(existing[payloadLen:]) != xxhash.Sum64(existing[:payloadLen]) {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptDescriptor)
	}

	stored := temporal.Variant(existing[len(storeSignature)])
	if stored != db.variant {
		return fmt.Errorf("%w: store holds %s, opened as %s", ErrVariantMismatch, stored, db.variant)
	}
	return nil
}

func (db *DB) publishSize() {
	if s, ok := db.kv.(interface{ Size() (int64, int64) }); ok {
		db.met.UpdateStoreSize(s.Size())
	}
}
