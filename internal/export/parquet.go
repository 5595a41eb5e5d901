// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package export

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/database"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/metrics"
	"github.com/tomtom215/eodsync/internal/models"
)

// writerParallelism is the number of goroutines parquet-go uses to encode
// a row group.
const writerParallelism = 4

// PriceRecord is the parquet layout of one historical_prices row.
type PriceRecord struct {
	Symbol      string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Date        int32   `parquet:"name=date, type=INT32, convertedtype=DATE"`
	Close       float64 `parquet:"name=close, type=DOUBLE"`
	High        float64 `parquet:"name=high, type=DOUBLE"`
	Low         float64 `parquet:"name=low, type=DOUBLE"`
	Open        float64 `parquet:"name=open, type=DOUBLE"`
	Volume      int64   `parquet:"name=volume, type=INT64"`
	AdjClose    float64 `parquet:"name=adj_close, type=DOUBLE"`
	AdjHigh     float64 `parquet:"name=adj_high, type=DOUBLE"`
	AdjLow      float64 `parquet:"name=adj_low, type=DOUBLE"`
	AdjOpen     float64 `parquet:"name=adj_open, type=DOUBLE"`
	AdjVolume   int64   `parquet:"name=adj_volume, type=INT64"`
	DivCash     float64 `parquet:"name=div_cash, type=DOUBLE"`
	SplitFactor float64 `parquet:"name=split_factor, type=DOUBLE"`
}

func toRecord(r models.PriceRow) PriceRecord {
	return PriceRecord{
		Symbol:      r.Symbol,
		Date:        epochDays(r.Date),
		Close:       r.Close,
		High:        r.High,
		Low:         r.Low,
		Open:        r.Open,
		Volume:      r.Volume,
		AdjClose:    r.AdjClose,
		AdjHigh:     r.AdjHigh,
		AdjLow:      r.AdjLow,
		AdjOpen:     r.AdjOpen,
		AdjVolume:   r.AdjVolume,
		DivCash:     r.DivCash,
		SplitFactor: r.SplitFactor,
	}
}

func epochDays(t time.Time) int32 {
	return int32(models.Day(t).Unix() / 86400)
}

// DayFromEpoch converts a parquet DATE value back to a calendar day.
func DayFromEpoch(days int32) time.Time {
	return time.Unix(int64(days)*86400, 0).UTC()
}

// Source streams stored price rows.
type Source interface {
	ScanPrices(ctx context.Context, filter database.PriceFilter, fn func(models.PriceRow) error) error
}

// Uploader stores a local file under key in object storage.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) error
}

// Options selects what to export.
type Options struct {
	Symbols []string
	Since   *time.Time
	Until   *time.Time

	// Upload sends the file to object storage after writing it.
	Upload bool
}

// Result describes a written snapshot.
type Result struct {
	Path     string
	Key      string // object key, empty when not uploaded
	Rows     int64
	Bytes    int64
	Duration time.Duration
}

// Exporter writes parquet snapshots of historical_prices.
type Exporter struct {
	cfg      *config.ExportConfig
	src      Source
	uploader Uploader
	now      func() time.Time
}

// NewExporter creates an exporter. uploader may be nil when uploads are
// not configured.
func NewExporter(cfg *config.ExportConfig, src Source, uploader Uploader) *Exporter {
	return &Exporter{cfg: cfg, src: src, uploader: uploader, now: time.Now}
}

// Export writes one snapshot and, if requested, uploads it.
func (e *Exporter) Export(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	if opts.Upload && e.uploader == nil {
		return nil, fmt.Errorf("upload requested but object storage is not configured")
	}
	if err := os.MkdirAll(e.cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	name := "historical_prices_" + e.now().UTC().Format("20060102T150405Z") + ".parquet"
	res := &Result{Path: filepath.Join(e.cfg.Dir, name)}

	rows, err := e.write(ctx, res.Path, database.PriceFilter{
		Symbols: opts.Symbols,
		Since:   opts.Since,
		Until:   opts.Until,
	})
	if err != nil {
		_ = os.Remove(res.Path)
		return nil, err
	}
	res.Rows = rows
	metrics.ExportRows.Add(float64(rows))

	if info, err := os.Stat(res.Path); err == nil {
		res.Bytes = info.Size()
	}

	if opts.Upload {
		res.Key = path.Join(e.cfg.S3.Prefix, name)
		if err := e.uploader.Upload(ctx, res.Key, res.Path); err != nil {
			return res, fmt.Errorf("upload %s: %w", name, err)
		}
	}

	res.Duration = time.Since(start)
	logging.Ctx(ctx).Info().
		Str("path", res.Path).
		Str("key", res.Key).
		Int64("rows", res.Rows).
		Int64("bytes", res.Bytes).
		Dur("duration", res.Duration).
		Msg("Price snapshot exported")
	return res, nil
}

func (e *Exporter) write(ctx context.Context, filePath string, filter database.PriceFilter) (int64, error) {
	fw, err := local.NewLocalFileWriter(filePath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", filePath, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(PriceRecord), writerParallelism)
	if err != nil {
		return 0, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(e.cfg.Compression)

	var rows int64
	err = e.src.ScanPrices(ctx, filter, func(r models.PriceRow) error {
		if err := pw.Write(toRecord(r)); err != nil {
			return fmt.Errorf("write %s %s: %w", r.Symbol, models.FormatDay(r.Date), err)
		}
		rows++
		return nil
	})
	if err != nil {
		_ = pw.WriteStop()
		return 0, err
	}

	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("finalize parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", filePath, err)
	}
	return rows, nil
}

func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(name) {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	case "zstd":
		return parquet.CompressionCodec_ZSTD
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}
