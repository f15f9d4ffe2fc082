package receipt

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/bitfsorg/libwit-go/wit"
)

const (
	// DefaultTTL is how long a terminal receipt stays readable.
	DefaultTTL = time.Hour
	// DefaultCacheSize bounds the number of terminal receipts retained.
	DefaultCacheSize = 10_000
)

// Store holds the receipts of one session. Receipts still in flight live in
// a plain map and are never evicted; once terminal they move to a size and
// age bounded cache. Every transition of one hash is serialized by a
// per-hash lock.
type Store struct {
	mu    sync.RWMutex
	live  map[wit.Hash]*Receipt
	locks sync.Map // wit.Hash -> *sync.Mutex, never removed while the store lives

	done    *expirable.LRU[wit.Hash, *Receipt]
	backend Backend
	closed  atomic.Bool
	logger  *zap.Logger

	ttl  time.Duration
	size int
}

// Option configures a Store.
type Option func(*Store)

// WithBackend persists every write to b.
func WithBackend(b Backend) Option {
	return func(s *Store) { s.backend = b }
}

// WithTTL sets how long terminal receipts are kept.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithCacheSize bounds the number of terminal receipts kept.
func WithCacheSize(n int) Option {
	return func(s *Store) { s.size = n }
}

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		live:   make(map[wit.Hash]*Receipt),
		logger: zap.NewNop(),
		ttl:    DefaultTTL,
		size:   DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("receipt")
	s.done = expirable.NewLRU[wit.Hash, *Receipt](s.size, s.evicted, s.ttl)
	return s
}

// evicted runs with the cache locked; it must not call back into s.done.
func (s *Store) evicted(hash wit.Hash, _ *Receipt) {
	s.mu.RLock()
	_, live := s.live[hash]
	s.mu.RUnlock()
	if live {
		return
	}
	if s.backend == nil || s.closed.Load() {
		return
	}
	if err := s.backend.Delete(hash); err != nil {
		s.logger.Warn("drop evicted receipt", zap.Stringer("hash", hash), zap.Error(err))
	}
}

// Lock takes the per-hash lock and returns its release. Update takes the
// same lock, so it must not be called while holding it.
func (s *Store) Lock(hash wit.Hash) (unlock func()) {
	v, _ := s.locks.LoadOrStore(hash, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Upsert stores a copy of r, replacing any receipt with the same hash.
func (s *Store) Upsert(r *Receipt) error {
	if r == nil {
		return ErrNilReceipt
	}
	c := r.Clone()
	s.place(c)
	return s.persist(c)
}

// place files r as live or terminal. Cache calls happen outside s.mu.
func (s *Store) place(r *Receipt) {
	if r.Status.Terminal() {
		s.done.Add(r.Hash, r)
		s.mu.Lock()
		delete(s.live, r.Hash)
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.live[r.Hash] = r
	s.mu.Unlock()
	s.done.Remove(r.Hash)
}

func (s *Store) persist(r *Receipt) error {
	if s.backend == nil {
		return nil
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.backend.Put(r); err != nil {
		return fmt.Errorf("receipt: persist %s: %w", r.Hash, err)
	}
	return nil
}

func (s *Store) load(hash wit.Hash) (*Receipt, bool) {
	s.mu.RLock()
	r, ok := s.live[hash]
	s.mu.RUnlock()
	if ok {
		return r, true
	}
	return s.done.Get(hash)
}

// Get returns a copy of the receipt for hash.
func (s *Store) Get(hash wit.Hash) (*Receipt, bool) {
	r, ok := s.load(hash)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Update applies fn to a copy of the receipt for hash under its lock and
// stores the result. If fn fails nothing is stored. The updated copy is
// returned.
func (s *Store) Update(hash wit.Hash, fn func(r *Receipt) error) (*Receipt, error) {
	unlock := s.Lock(hash)
	defer unlock()

	cur, ok := s.load(hash)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Hash = hash
	if cur.Status != next.Status {
		s.logger.Debug("status change",
			zap.Stringer("hash", hash),
			zap.String("from", string(cur.Status)),
			zap.String("to", string(next.Status)))
	}
	s.place(next)
	if err := s.persist(next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// Delete drops the receipt for hash. Deleting a missing hash is not an error.
func (s *Store) Delete(hash wit.Hash) error {
	unlock := s.Lock(hash)
	s.mu.Lock()
	delete(s.live, hash)
	s.mu.Unlock()
	s.done.Remove(hash)
	unlock()
	if s.backend == nil || s.closed.Load() {
		return nil
	}
	return s.backend.Delete(hash)
}

// Hashes lists every held hash in byte order.
func (s *Store) Hashes() []wit.Hash {
	s.mu.RLock()
	hashes := make([]wit.Hash, 0, len(s.live))
	for h := range s.live {
		hashes = append(hashes, h)
	}
	s.mu.RUnlock()
	hashes = append(hashes, s.done.Keys()...)
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	return hashes
}

// Len returns the number of receipts held, live and terminal.
func (s *Store) Len() int {
	s.mu.RLock()
	n := len(s.live)
	s.mu.RUnlock()
	return n + s.done.Len()
}

// Restore loads every receipt from the backend.
func (s *Store) Restore() (int, error) {
	if s.backend == nil {
		return 0, nil
	}
	var loaded []*Receipt
	err := s.backend.ForEach(func(r *Receipt) error {
		loaded = append(loaded, r)
		return nil
	})
	if err != nil {
		return 0, err
	}
	// Placing may evict, and eviction writes to the backend.
	for _, r := range loaded {
		s.place(r)
	}
	return len(loaded), nil
}

// Close closes the backend. Receipts already held stay readable.
func (s *Store) Close() error {
	if s.closed.Swap(true) || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
