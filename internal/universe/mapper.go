// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package universe

import (
	"strings"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/models"
	"github.com/tomtom215/eodsync/internal/validation"
)

// Mapper converts CSV rows to tickers and applies the configured filters.
// Filter values match case-insensitively; an empty filter matches all.
type Mapper struct {
	assetTypes map[string]struct{}
	exchanges  map[string]struct{}
	currency   string
}

// NewMapper creates a mapper from the universe configuration.
func NewMapper(cfg *config.UniverseConfig) *Mapper {
	return &Mapper{
		assetTypes: foldSet(cfg.AssetTypes),
		exchanges:  foldSet(cfg.Exchanges),
		currency:   strings.ToUpper(strings.TrimSpace(cfg.Currency)),
	}
}

func foldSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[strings.ToUpper(strings.TrimSpace(v))] = struct{}{}
	}
	return out
}

// ValidateRow checks required fields and date formats.
func (m *Mapper) ValidateRow(row *Row) error {
	return validation.ValidateStruct(row)
}

// Matches reports whether row passes the asset type, exchange and currency
// filters.
func (m *Mapper) Matches(row *Row) bool {
	if !inSet(m.assetTypes, row.AssetType) || !inSet(m.exchanges, row.Exchange) {
		return false
	}
	return m.currency == "" || strings.EqualFold(row.PriceCurrency, m.currency)
}

func inSet(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[strings.ToUpper(strings.TrimSpace(v))]
	return ok
}

// ToTicker converts a validated row. Dates were checked by ValidateRow, so
// parse errors leave the field zero.
func (m *Mapper) ToTicker(row *Row) models.Ticker {
	t := models.Ticker{
		Symbol:        models.NormalizeSymbol(row.Ticker),
		Exchange:      row.Exchange,
		AssetType:     row.AssetType,
		PriceCurrency: row.PriceCurrency,
	}
	if row.StartDate != "" {
		t.StartDate, _ = models.ParseDay(row.StartDate)
	}
	if row.EndDate != "" {
		t.EndDate, _ = models.ParseDay(row.EndDate)
	}
	return t
}

// Map runs validation, filtering and de-duplication over rows and returns
// the tickers in first-seen order. stats counts every skipped row.
func (m *Mapper) Map(rows []Row, stats *LoadStats) []models.Ticker {
	index := make(map[string]int, len(rows))
	out := make([]models.Ticker, 0, len(rows))

	for i := range rows {
		row := &rows[i]
		stats.Rows++

		if err := m.ValidateRow(row); err != nil {
			stats.Invalid++
			logging.Debug().Int("line", row.Line).Str("ticker", row.Ticker).Err(err).Msg("Skipping invalid universe row")
			continue
		}
		if !m.Matches(row) {
			stats.Filtered++
			continue
		}
		if row.StartDate == "" {
			stats.NoHistory++
			continue
		}

		t := m.ToTicker(row)
		if j, ok := index[t.Symbol]; ok {
			stats.Duplicates++
			if supersedes(t, out[j]) {
				out[j] = t
			}
			continue
		}
		index[t.Symbol] = len(out)
		out = append(out, t)
	}
	return out
}

// supersedes reports whether candidate should replace current for the same
// symbol: open-ended listings first, then the later end date.
func supersedes(candidate, current models.Ticker) bool {
	switch {
	case current.EndDate.IsZero():
		return false
	case candidate.EndDate.IsZero():
		return true
	default:
		return candidate.EndDate.After(current.EndDate)
	}
}
