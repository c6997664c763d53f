// Package store holds the in-memory test store: a write-through cache of the
// remote tests table that notifies subscribers after every change.
package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"placement-tests/internal/domain"
	"placement-tests/internal/logger"
	"placement-tests/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TestStore mirrors the remote tests table. Reads are served from memory;
// writes go to the remote table first and touch local state only on success.
type TestStore struct {
	table RemoteTable
	log   *zap.Logger
	now   func() time.Time

	mu         sync.RWMutex
	tests      []domain.Test
	hydrated   bool
	generation uint64 // bumped by Clear and Reload to discard in-flight hydrations
	seq        uint64 // bumped by every local mutation
	loading    int
	journal    []journalEntry // mutations applied while a hydration is in flight

	hydrateTimeout time.Duration

	subMu       sync.Mutex
	subscribers []subscriber
	nextSubID   uint64

	hydrate singleflight.Group
	records *keyedMutex
}

// mutation rewrites the cached list. Mutations are replayed onto a
// hydration's snapshot, so they must be safe to apply twice.
type mutation func(tests []domain.Test) []domain.Test

type journalEntry struct {
	seq   uint64
	apply mutation
}

type subscriber struct {
	id uint64
	fn func()
}

// Option configures a TestStore.
type Option func(*TestStore)

// WithLogger sets the logger used for failures. Defaults to logger.Get().
func WithLogger(l *zap.Logger) Option {
	return func(s *TestStore) { s.log = l }
}

// WithHydrateTimeout bounds a shared remote load. Defaults to 30s.
func WithHydrateTimeout(d time.Duration) Option {
	return func(s *TestStore) {
		if d > 0 {
			s.hydrateTimeout = d
		}
	}
}

// WithClock sets the clock used to fill a missing created date.
func WithClock(now func() time.Time) Option {
	return func(s *TestStore) { s.now = now }
}

// New returns an empty, un-hydrated store backed by table.
func New(table RemoteTable, opts ...Option) *TestStore {
	s := &TestStore{
		table:   table,
		log:     logger.Get(),
		now:     time.Now,
		tests:   []domain.Test{},
		records: newKeyedMutex(),

		hydrateTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize hydrates the store from the remote table. It is a no-op once
// hydrated, and concurrent callers share a single remote read. On failure the
// store stays empty and un-hydrated; the error is logged and returned, and
// callers may retry.
//
// The shared load is not tied to any one caller: a caller whose ctx ends
// stops waiting, but the load keeps running for the others.
func (s *TestStore) Initialize(ctx context.Context) error {
	s.mu.RLock()
	hydrated, gen := s.hydrated, s.generation
	s.mu.RUnlock()
	if hydrated {
		return nil
	}
	// keyed by generation so a load started before Clear/Reload is never joined afterwards
	ch := s.hydrate.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.hydrateTimeout)
		defer cancel()
		return nil, s.load(loadCtx, gen)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return domain.NewHydrationError(ctx.Err())
	}
}

func (s *TestStore) load(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	s.loading++
	since := s.seq
	s.mu.Unlock()

	start := time.Now()
	rows, err := s.table.Select(ctx, byNewestFirst)
	metrics.RemoteLatency.WithLabelValues("select").Observe(time.Since(start).Seconds())
	metrics.Hydrations.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		s.mu.Lock()
		s.endLoadLocked()
		s.mu.Unlock()
		s.log.Error("Failed to hydrate test store", zap.Error(err))
		return domain.NewHydrationError(err)
	}

	now := s.now()
	tests := make([]domain.Test, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if seen[row.ID] {
			s.log.Warn("Skipping duplicate test row", zap.String("testID", row.ID))
			continue
		}
		seen[row.ID] = true
		tests = append(tests, toTest(row, now))
	}

	s.mu.Lock()
	if s.generation != gen || s.hydrated {
		s.endLoadLocked()
		s.mu.Unlock()
		s.log.Debug("Discarding superseded hydration", zap.Int("rows", len(rows)))
		return nil
	}
	// the snapshot may predate writes acknowledged while it was in flight
	replayed := 0
	for _, e := range s.journal {
		if e.seq > since {
			tests = e.apply(tests)
			replayed++
		}
	}
	s.tests = tests
	s.hydrated = true
	s.endLoadLocked()
	s.mu.Unlock()

	if replayed > 0 {
		s.log.Debug("Replayed mutations onto hydration", zap.Int("count", replayed))
	}

	metrics.CachedTests.Set(float64(len(tests)))
	s.log.Info("Test store hydrated", zap.Int("count", len(tests)))
	s.notify()
	return nil
}

// endLoadLocked must be called with s.mu held.
func (s *TestStore) endLoadLocked() {
	s.loading--
	if s.loading == 0 {
		s.journal = nil
	}
}

// applyLocked runs m against the cache and journals it for in-flight
// hydrations. It must be called with s.mu held.
func (s *TestStore) applyLocked(m mutation) {
	s.tests = m(s.tests)
	s.seq++
	if s.loading > 0 {
		s.journal = append(s.journal, journalEntry{seq: s.seq, apply: m})
	}
}

// Hydrated reports whether the store holds a successful remote load.
func (s *TestStore) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Reload re-reads the remote table. The current contents stay readable
// until the new load replaces them; on failure they remain but the store
// is marked un-hydrated so the next Initialize retries.
func (s *TestStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.hydrated = false
	s.generation++
	s.mu.Unlock()
	return s.Initialize(ctx)
}

// Subscribe registers fn to run after every hydration, mutation and clear.
// Each call is an independent registration; the returned func removes only this one.
func (s *TestStore) Subscribe(fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// notify runs subscribers in registration order. It must be called without
// holding s.mu or a record lock so subscribers can call back into the store.
func (s *TestStore) notify() {
	s.subMu.Lock()
	subs := append([]subscriber(nil), s.subscribers...)
	s.subMu.Unlock()

	for _, sub := range subs {
		s.invoke(sub)
	}
}

func (s *TestStore) invoke(sub subscriber) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberPanics.Inc()
			s.log.Error("Test store subscriber panicked", zap.Uint64("subscriberID", sub.id), zap.Any("panic", r))
		}
	}()
	sub.fn()
}

// GetAllTests returns a copy of every cached test, newest first.
func (s *TestStore) GetAllTests() []domain.Test {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Test, len(s.tests))
	for i, t := range s.tests {
		out[i] = t.Clone()
	}
	return out
}

// GetActiveTests returns copies of the active tests in cache order.
func (s *TestStore) GetActiveTests() []domain.Test {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Test, 0, len(s.tests))
	for _, t := range s.tests {
		if t.IsActive() {
			out = append(out, t.Clone())
		}
	}
	return out
}

// GetTestByID returns a copy of the first test with id.
func (s *TestStore) GetTestByID(id string) (domain.Test, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.tests, id); i >= 0 {
		return s.tests[i].Clone(), true
	}
	return domain.Test{}, false
}

func indexOf(tests []domain.Test, id string) int {
	for i := range tests {
		if tests[i].ID == id {
			return i
		}
	}
	return -1
}

// AddTest inserts test remotely and prepends the row the remote side returned.
func (s *TestStore) AddTest(ctx context.Context, test domain.Test) (domain.Test, error) {
	created, err := s.addLocked(ctx, test)
	if err != nil {
		return domain.Test{}, err
	}
	s.notify()
	return created, nil
}

func (s *TestStore) addLocked(ctx context.Context, test domain.Test) (domain.Test, error) {
	if test.ID != "" {
		unlock := s.records.Lock(test.ID)
		defer unlock()
	}

	start := time.Now()
	row, err := s.table.Insert(ctx, toRow(test))
	metrics.RemoteLatency.WithLabelValues("insert").Observe(time.Since(start).Seconds())
	metrics.Mutations.WithLabelValues("add", metrics.Status(err)).Inc()
	if err != nil {
		s.log.Error("Failed to add test", zap.String("title", test.Title), zap.Error(err))
		return domain.Test{}, domain.NewRemoteStoreError("insert test", err)
	}

	created := toTest(row, s.now())

	s.mu.Lock()
	s.applyLocked(func(tests []domain.Test) []domain.Test {
		// a re-used id replaces the stale entry so ids stay unique
		if i := indexOf(tests, created.ID); i >= 0 {
			tests = append(tests[:i:i], tests[i+1:]...)
		}
		return append([]domain.Test{created.Clone()}, tests...)
	})
	count := len(s.tests)
	s.mu.Unlock()

	metrics.CachedTests.Set(float64(count))
	return created.Clone(), nil
}

// UpdateTest writes the changed columns remotely and merges patch into the
// cached entry. Updates to the same id are applied in call order.
func (s *TestStore) UpdateTest(ctx context.Context, id string, patch domain.TestPatch) error {
	if patch.IsEmpty() {
		return domain.NewInvalidInputError("update must change at least one field")
	}

	found, err := s.updateLocked(ctx, id, patch)
	if err != nil {
		return err
	}
	if !found {
		s.log.Warn("Updated test is not cached; local state unchanged", zap.String("testID", id))
	}
	s.notify()
	return nil
}

func (s *TestStore) updateLocked(ctx context.Context, id string, patch domain.TestPatch) (bool, error) {
	unlock := s.records.Lock(id)
	defer unlock()

	start := time.Now()
	err := s.table.Update(ctx, id, patchColumns(patch))
	metrics.RemoteLatency.WithLabelValues("update").Observe(time.Since(start).Seconds())
	metrics.Mutations.WithLabelValues("update", metrics.Status(err)).Inc()
	if err != nil {
		s.log.Error("Failed to update test", zap.String("testID", id), zap.Error(err))
		return false, domain.NewRemoteStoreError("update test", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	found := indexOf(s.tests, id) >= 0
	s.applyLocked(func(tests []domain.Test) []domain.Test {
		if i := indexOf(tests, id); i >= 0 {
			patch.ApplyTo(&tests[i])
		}
		return tests
	})
	return found, nil
}

// DeleteTest deletes id remotely and drops it from the cache, keeping the
// order of the remaining tests.
func (s *TestStore) DeleteTest(ctx context.Context, id string) error {
	if err := s.deleteLocked(ctx, id); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *TestStore) deleteLocked(ctx context.Context, id string) error {
	unlock := s.records.Lock(id)
	defer unlock()

	start := time.Now()
	err := s.table.Delete(ctx, id)
	metrics.RemoteLatency.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	metrics.Mutations.WithLabelValues("delete", metrics.Status(err)).Inc()
	if err != nil {
		s.log.Error("Failed to delete test", zap.String("testID", id), zap.Error(err))
		return domain.NewRemoteStoreError("delete test", err)
	}

	s.mu.Lock()
	s.applyLocked(func(tests []domain.Test) []domain.Test {
		kept := make([]domain.Test, 0, len(tests))
		for _, t := range tests {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		return kept
	})
	count := len(s.tests)
	s.mu.Unlock()

	metrics.CachedTests.Set(float64(count))
	return nil
}

// Clear empties the store and marks it un-hydrated. The remote table is not touched.
func (s *TestStore) Clear() {
	s.mu.Lock()
	s.tests = []domain.Test{}
	s.hydrated = false
	s.generation++
	s.mu.Unlock()

	metrics.CachedTests.Set(0)
	s.notify()
}
