// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/metrics"
)

// Errors
var (
	// ErrLedgerClosed is returned when the ledger is closed.
	ErrLedgerClosed = errors.New("ledger is closed")

	// ErrEmptySymbol is returned when an empty symbol is provided.
	ErrEmptySymbol = errors.New("symbol cannot be empty")

	// ErrEntryNotFound is returned when a symbol has no entry.
	ErrEntryNotFound = errors.New("ledger entry not found")
)

const prefixFailure = "failure:"

// Entry is the failure record of one ticker.
type Entry struct {
	Symbol     string    `json:"symbol"`
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Attempts   int       `json:"attempts"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// Ledger stores failure entries in BadgerDB.
type Ledger struct {
	db        *badger.DB
	retention time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the ledger at cfg.Path.
func Open(cfg *config.LedgerConfig) (*Ledger, error) {
	if cfg.Path == "" {
		return nil, errors.New("ledger path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = true
	opts.Logger = nil

	l, err := open(opts, cfg.Retention)
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("path", cfg.Path).
		Dur("retention", cfg.Retention).
		Msg("Failure ledger opened")
	return l, nil
}

// OpenInMemory opens a ledger that lives only in memory. Intended for tests
// and one-off runs without a data directory.
func OpenInMemory(retention time.Duration) (*Ledger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, retention)
}

func open(opts badger.Options, retention time.Duration) (*Ledger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	l := &Ledger{db: db, retention: retention, now: time.Now}
	l.refreshGauge()
	return l, nil
}

func (l *Ledger) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLedgerClosed
	}
	return nil
}

// Record stores a failure for symbol, merging with any earlier entry.
func (l *Ledger) Record(ctx context.Context, f Failure) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if f.Symbol == "" {
		return ErrEmptySymbol
	}

	now := l.now().UTC()
	key := []byte(prefixFailure + f.Symbol)

	err := l.db.Update(func(txn *badger.Txn) error {
		entry, err := readEntry(txn, key)
		switch {
		case errors.Is(err, ErrEntryNotFound):
			entry = &Entry{Symbol: f.Symbol, FirstSeen: now}
		case err != nil:
			return err
		}

		entry.RunID = f.RunID
		entry.Kind = f.Kind
		entry.Message = f.Message
		entry.StatusCode = f.StatusCode
		entry.Attempts++
		entry.LastSeen = now

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		e := badger.NewEntry(key, data)
		if l.retention > 0 {
			e = e.WithTTL(l.retention)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("record failure %s: %w", f.Symbol, err)
	}
	return nil
}

// Clear removes the entries of symbols. Unknown symbols are ignored.
func (l *Ledger) Clear(ctx context.Context, symbols ...string) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if len(symbols) == 0 {
		return nil
	}

	err := l.db.Update(func(txn *badger.Txn) error {
		for _, sym := range symbols {
			if err := txn.Delete([]byte(prefixFailure + sym)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	return nil
}

// Get returns the entry for symbol or ErrEntryNotFound.
func (l *Ledger) Get(ctx context.Context, symbol string) (*Entry, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = readEntry(txn, []byte(prefixFailure+symbol))
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns all entries ordered by symbol.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixFailure)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Ledger failed to unmarshal entry")
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })
	return entries, nil
}

// Symbols returns the symbols with an entry, in order.
func (l *Ledger) Symbols(ctx context.Context) ([]string, error) {
	entries, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Symbol
	}
	return out, nil
}

// Count returns the number of entries.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	if err := l.checkOpen(); err != nil {
		return 0, err
	}

	n := 0
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixFailure)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Prune removes entries last seen before cutoff and returns how many were
// removed. TTL expiry covers the common case; Prune lets callers tighten the
// window after the fact.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if err := l.checkOpen(); err != nil {
		return 0, err
	}

	removed := 0
	err := l.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Collect keys first; deleting while iterating is not allowed.
		var keysToDelete [][]byte
		prefix := []byte(prefixFailure)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				continue
			}
			if entry.LastSeen.Before(cutoff) {
				keysToDelete = append(keysToDelete, item.KeyCopy(nil))
			}
		}

		for _, key := range keysToDelete {
			if err := txn.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune entries: %w", err)
	}

	if removed > 0 {
		logging.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("Ledger pruned stale entries")
	}
	l.refreshGauge()
	return removed, nil
}

// RunGC reclaims value log space until BadgerDB reports nothing to rewrite.
func (l *Ledger) RunGC() error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	for {
		err := l.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the underlying database. Safe to call more than once.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

func (l *Ledger) refreshGauge() {
	if n, err := l.Count(context.Background()); err == nil {
		metrics.LedgerEntries.Set(float64(n))
	}
}

func readEntry(txn *badger.Txn, key []byte) (*Entry, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}

	var entry Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entry)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}
