// Package store caches posterior draws in a local BadgerDB database so
// repeated sampling of an unchanged model returns instantly.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/vishalbelsare/causact/backend"
	"github.com/vishalbelsare/causact/draws"
	"github.com/vishalbelsare/causact/model"
)

// Key prefixes for different data types
const (
	prefixDraws = "d:" // cached sampling runs
)

// Entry is one cached sampling run.
type Entry struct {
	// RunID identifies the run that produced the draws.
	RunID string `json:"run_id"`

	// Backend is the sampling backend's name.
	Backend string `json:"backend"`

	// SampledAt records when sampling finished, in UTC.
	SampledAt time.Time `json:"sampled_at"`

	// Options are the sampling options the run used.
	Options backend.Options `json:"options"`

	// Draws holds the posterior draws.
	Draws *draws.Table `json:"draws"`
}

// Store is a BadgerDB-backed draws cache. It is safe for concurrent use.
type Store struct {
	db *badger.DB
	mu sync.RWMutex
}

// Open opens or creates the cache database at the given path.
func Open(path string, readOnly bool) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening draws cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases all resources held by the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func drawsKey(fingerprint, backendName string, opts backend.Options) []byte {
	return []byte(prefixDraws + fingerprint + ":" + backendName + ":" + opts.Key())
}

// Get returns the cached entry for the model fingerprint, backend, and
// options, or nil if the combination has not been sampled.
func (s *Store) Get(fingerprint, backendName string, opts backend.Options) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(drawsKey(fingerprint, backendName, opts))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cached draws: %w", err)
	}

	var e Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling cached draws: %w", err)
	}
	return &e, nil
}

// Put stores the draws of a finished run and returns the recorded entry.
func (s *Store) Put(fingerprint, backendName string, opts backend.Options, t *draws.Table) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &Entry{
		RunID:     uuid.NewString(),
		Backend:   backendName,
		SampledAt: time.Now().UTC(),
		Options:   opts.WithDefaults(),
		Draws:     t,
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling draws entry: %w", err)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Set(drawsKey(fingerprint, backendName, opts), data); err != nil {
		return nil, fmt.Errorf("storing draws entry: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("storing draws entry: %w", err)
	}
	return e, nil
}

// EntryCount returns the number of cached runs.
func (s *Store) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixDraws)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		count++
	}
	return count
}

// Clear deletes every cached run and returns how many were removed.
func (s *Store) Clear() (int, error) {
	count := s.EntryCount()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropPrefix([]byte(prefixDraws)); err != nil {
		return 0, fmt.Errorf("clearing draws cache: %w", err)
	}
	return count, nil
}

// Sampler wraps b with read-through caching: a hit returns the cached
// draws, a miss samples through b and stores the result.
func (s *Store) Sampler(b backend.Backend) *Sampler {
	return &Sampler{store: s, backend: b}
}

// Sampler is a caching backend.Backend.
type Sampler struct {
	store   *Store
	backend backend.Backend
}

// Name implements backend.Backend.
func (c *Sampler) Name() string { return c.backend.Name() }

// CompileAndSample implements backend.Backend. A cache read failure counts
// as a miss; a cache write failure surfaces after sampling succeeded.
func (c *Sampler) CompileAndSample(ctx context.Context, m *model.Model, opts backend.Options) (*draws.Table, error) {
	opts = opts.WithDefaults()
	fp := m.Fingerprint()

	if e, err := c.store.Get(fp, c.backend.Name(), opts); err == nil && e != nil {
		return e.Draws, nil
	}

	t, err := c.backend.CompileAndSample(ctx, m, opts)
	if err != nil {
		return nil, err
	}
	if _, err := c.store.Put(fp, c.backend.Name(), opts, t); err != nil {
		return nil, fmt.Errorf("caching draws: %w", err)
	}
	return t, nil
}
