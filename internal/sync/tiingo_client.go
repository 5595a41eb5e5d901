// EODSync - Incremental End-of-Day Market Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eodsync

/*
tiingo_client.go - Daily Prices HTTP Client

Request:

	GET {base_url}/tiingo/daily/{symbol}/prices?startDate=YYYY-MM-DD&endDate=YYYY-MM-DD&format=json
	Authorization: Token <api_key>

Classification:
  - 200 with a non-empty array: records
  - 200 with an empty array: ErrNoData
  - 429, 5xx, transport error or timeout: FetchTransient (retried)
  - any other status, malformed JSON: FetchFatal

Retry:
  - up to max_retries retries after the first attempt
  - delay retry_base_delay * 2^(n-1) for retry n (1s, 2s, 4s with defaults)
  - the computed delay is capped at max_retry_delay
  - a Retry-After header replaces the delay when larger, even past the cap
  - exhausted retries surface as FetchFatal wrapping the last transient error

The API key travels in a header, so request URLs are safe to log.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/eodsync/internal/config"
	"github.com/tomtom215/eodsync/internal/logging"
	"github.com/tomtom215/eodsync/internal/metrics"
	"github.com/tomtom215/eodsync/internal/models"
)

// maxErrorBodySize limits the amount of response body read for error reporting.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Fetcher retrieves daily records for one symbol over an inclusive date range.
//
// Implementations return ErrNoData for an empty range and *FetchError for
// failures. They must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceRecord, error)
}

// TiingoClient fetches end-of-day prices from the Tiingo daily endpoint.
//
// Thread Safety: Safe for concurrent use. The rate limiter is shared by all
// callers.
type TiingoClient struct {
	baseURL        string
	apiKey         string
	userAgent      string
	client         *http.Client
	limiter        *rate.Limiter // nil = unlimited
	maxRetries     int
	retryBaseDelay time.Duration
	maxRetryDelay  time.Duration
}

// NewTiingoClient creates a client from the data source configuration.
func NewTiingoClient(cfg *config.TiingoConfig) *TiingoClient {
	dialer := &net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.MaxIdleConnsPerHost = 32

	c := &TiingoClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		userAgent:      cfg.UserAgent,
		client:         &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		maxRetryDelay:  cfg.MaxRetryDelay,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Ceil(cfg.RequestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if c.retryBaseDelay <= 0 {
		c.retryBaseDelay = time.Second
	}
	if c.maxRetryDelay < c.retryBaseDelay {
		c.maxRetryDelay = c.retryBaseDelay
	}
	return c
}

// tiingoPrice is the wire shape of one element of the prices array.
// Volumes arrive as JSON numbers that may carry a fractional part.
type tiingoPrice struct {
	Date        string   `json:"date"`
	Close       *float64 `json:"close"`
	High        *float64 `json:"high"`
	Low         *float64 `json:"low"`
	Open        *float64 `json:"open"`
	Volume      *float64 `json:"volume"`
	AdjClose    *float64 `json:"adjClose"`
	AdjHigh     *float64 `json:"adjHigh"`
	AdjLow      *float64 `json:"adjLow"`
	AdjOpen     *float64 `json:"adjOpen"`
	AdjVolume   *float64 `json:"adjVolume"`
	DivCash     *float64 `json:"divCash"`
	SplitFactor *float64 `json:"splitFactor"`
}

func (p tiingoPrice) record(symbol string) (models.PriceRecord, error) {
	date, err := models.ParseDay(p.Date)
	if err != nil {
		return models.PriceRecord{}, err
	}
	return models.PriceRecord{
		Symbol:      symbol,
		Date:        date,
		Close:       p.Close,
		High:        p.High,
		Low:         p.Low,
		Open:        p.Open,
		Volume:      roundVolume(p.Volume),
		AdjClose:    p.AdjClose,
		AdjHigh:     p.AdjHigh,
		AdjLow:      p.AdjLow,
		AdjOpen:     p.AdjOpen,
		AdjVolume:   roundVolume(p.AdjVolume),
		DivCash:     p.DivCash,
		SplitFactor: p.SplitFactor,
	}, nil
}

func roundVolume(v *float64) *int64 {
	if v == nil {
		return nil
	}
	return models.Int64(int64(math.Round(*v)))
}

// Fetch implements Fetcher.
func (c *TiingoClient) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceRecord, error) {
	began := time.Now()
	metrics.TrackFetchInFlight(true)
	defer metrics.TrackFetchInFlight(false)

	reqURL := c.pricesURL(symbol, start, end)

	var lastErr *FetchError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt, lastErr.RetryAfter)
			logging.Ctx(ctx).Debug().
				Str("symbol", symbol).
				Int("attempt", attempt).
				Int("status", lastErr.StatusCode).
				Dur("delay", delay).
				Msg("Retrying fetch")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				metrics.RecordFetch("fatal", time.Since(began))
				return nil, fatalError(symbol, 0, ctx.Err())
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				metrics.RecordFetch("fatal", time.Since(began))
				return nil, fatalError(symbol, 0, err)
			}
		}

		records, err := c.fetchOnce(ctx, symbol, reqURL)
		switch {
		case err == nil:
			metrics.RecordFetch("ok", time.Since(began))
			return records, nil
		case errors.Is(err, ErrNoData):
			metrics.RecordFetch("no_data", time.Since(began))
			return nil, ErrNoData
		}

		var fe *FetchError
		if !errors.As(err, &fe) || fe.Kind != FetchTransient {
			metrics.RecordFetch("fatal", time.Since(began))
			return nil, err
		}
		lastErr = fe
		if attempt < c.maxRetries {
			metrics.RecordFetchRetry(retryReason(fe))
		}
	}

	metrics.RecordFetch("transient", time.Since(began))
	return nil, fatalError(symbol, lastErr.StatusCode,
		fmt.Errorf("retries exhausted after %d attempts: %w", c.maxRetries+1, lastErr))
}

// fetchOnce performs a single HTTP attempt and classifies the outcome.
func (c *TiingoClient) fetchOnce(ctx context.Context, symbol, reqURL string) ([]models.PriceRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fatalError(symbol, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Caller cancellation is not something a retry can fix.
		if ctx.Err() != nil {
			return nil, fatalError(symbol, 0, ctx.Err())
		}
		return nil, transientError(symbol, 0, fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return decodePrices(symbol, resp.Body)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		body := readBodyForError(resp.Body)
		fe := transientError(symbol, resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
		fe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return nil, fe
	default:
		body := readBodyForError(resp.Body)
		return nil, fatalError(symbol, resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
	}
}

// decodePrices decodes the prices array. An empty array is ErrNoData.
func decodePrices(symbol string, body io.Reader) ([]models.PriceRecord, error) {
	var wire []tiingoPrice
	if err := json.NewDecoder(body).Decode(&wire); err != nil {
		return nil, fatalError(symbol, http.StatusOK, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(wire) == 0 {
		return nil, ErrNoData
	}

	records := make([]models.PriceRecord, 0, len(wire))
	for i, p := range wire {
		rec, err := p.record(symbol)
		if err != nil {
			return nil, fatalError(symbol, http.StatusOK, fmt.Errorf("record %d: %w", i, err))
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *TiingoClient) pricesURL(symbol string, start, end time.Time) string {
	params := url.Values{}
	params.Set("startDate", models.FormatDay(start))
	params.Set("endDate", models.FormatDay(end))
	params.Set("format", "json")
	return fmt.Sprintf("%s/tiingo/daily/%s/prices?%s", c.baseURL, url.PathEscape(symbol), params.Encode())
}

// retryDelay returns the wait before retry n (n >= 1). max_retry_delay
// bounds only the exponential delay; the server's Retry-After is honored.
func (c *TiingoClient) retryDelay(n int, retryAfter time.Duration) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < n && delay < c.maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > c.maxRetryDelay {
		delay = c.maxRetryDelay
	}
	if retryAfter > delay {
		delay = retryAfter
	}
	return delay
}

// parseRetryAfter accepts delay-seconds or an HTTP date (RFC 9110).
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func retryReason(fe *FetchError) string {
	switch {
	case fe.StatusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case fe.StatusCode >= 500:
		return "server_error"
	default:
		return "transport"
	}
}
