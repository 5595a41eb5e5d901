// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package universe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/models"
)

// maxArchiveSize bounds the downloaded archive.
const maxArchiveSize = 256 << 20 // 256MB

// Store receives the loaded universe.
type Store interface {
	ReplaceTickers(ctx context.Context, tickers []models.Ticker) (int, error)
}

// ErrEmptyUniverse is returned when filtering leaves no tickers. The store
// is left untouched so a broken download cannot wipe the universe.
var ErrEmptyUniverse = errors.New("universe is empty after filtering")

// Loader downloads, parses and stores the ticker universe.
type Loader struct {
	cfg    *config.UniverseConfig
	store  Store
	mapper *Mapper
	client *http.Client
}

// NewLoader creates a universe loader.
func NewLoader(cfg *config.UniverseConfig, store Store) *Loader {
	return &Loader{
		cfg:    cfg,
		store:  store,
		mapper: NewMapper(cfg),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Load downloads the archive from the configured URL and replaces the
// stored universe with it.
func (l *Loader) Load(ctx context.Context) (*LoadStats, error) {
	stats := &LoadStats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	data, err := l.download(ctx)
	if err != nil {
		return stats, err
	}
	rows, err := ReadArchive(data)
	if err != nil {
		return stats, err
	}
	return stats, l.apply(ctx, rows, stats)
}

// LoadFile loads a local archive (.zip) or plain CSV file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*LoadStats, error) {
	stats := &LoadStats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	var rows []Row
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return stats, fmt.Errorf("open universe file: %w", err)
		}
		defer f.Close()
		if rows, err = ReadCSV(f); err != nil {
			return stats, err
		}
	} else {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return stats, fmt.Errorf("read universe file: %w", err)
		}
		if rows, err = ReadArchive(data); err != nil {
			return stats, err
		}
	}
	return stats, l.apply(ctx, rows, stats)
}

func (l *Loader) apply(ctx context.Context, rows []Row, stats *LoadStats) error {
	tickers := l.mapper.Map(rows, stats)
	if len(tickers) == 0 {
		return ErrEmptyUniverse
	}

	n, err := l.store.ReplaceTickers(ctx, tickers)
	if err != nil {
		return fmt.Errorf("store universe: %w", err)
	}
	stats.Loaded = n

	logging.Ctx(ctx).Info().
		Int("rows", stats.Rows).
		Int("loaded", stats.Loaded).
		Int("invalid", stats.Invalid).
		Int("filtered", stats.Filtered).
		Int("no_history", stats.NoHistory).
		Int("duplicates", stats.Duplicates).
		Msg("Ticker universe loaded")
	return nil
}

func (l *Loader) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download universe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download universe: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("read universe archive: %w", err)
	}
	if len(data) > maxArchiveSize {
		return nil, fmt.Errorf("universe archive exceeds %d bytes", maxArchiveSize)
	}
	return data, nil
}
