// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/eodsync/internal/validation"
)

// Validate checks struct tags first, then the cross-section rules that tags
// cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	validators := []func() error{
		c.validateMirror,
		c.validateExport,
		c.validateLedger,
		c.validateSync,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// RequireAPIKey reports a missing data source key. Commands that talk to the
// data source call it; commands that only read the store do not.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Tiingo.APIKey) == "" {
		return fmt.Errorf("tiingo.api_key is required (set TIINGO_API_KEY)")
	}
	return nil
}

func (c *Config) validateMirror() error {
	if !c.Mirror.Enabled && !c.Sync.MirrorAfterSync {
		return nil
	}
	if c.Mirror.DSN == "" {
		return fmt.Errorf("mirror.dsn is required when the Postgres mirror is enabled (set POSTGRES_DSN)")
	}
	if len(c.Mirror.Tables) == 0 {
		return fmt.Errorf("mirror.tables must list at least one table")
	}
	return nil
}

func (c *Config) validateExport() error {
	s3 := c.Export.S3
	if !s3.Enabled {
		return nil
	}
	if s3.Bucket == "" {
		return fmt.Errorf("export.s3.bucket is required when S3 upload is enabled")
	}
	if (s3.AccessKey == "") != (s3.SecretKey == "") {
		return fmt.Errorf("export.s3.access_key and export.s3.secret_key must be set together")
	}
	return nil
}

func (c *Config) validateLedger() error {
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required when the failure ledger is enabled")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Concurrency > c.Sync.BatchSize {
		// More workers than jobs in a batch would sit idle.
		return fmt.Errorf("sync.concurrency (%d) must not exceed sync.batch_size (%d)",
			c.Sync.Concurrency, c.Sync.BatchSize)
	}
	return nil
}
