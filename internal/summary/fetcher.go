// Package summary fetches short prose summaries for page titles from the
// REST summary endpoint, bounded by a counting permit.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/psivak/filmwiki/internal/config"
)

// Config controls one Fetcher instance. Multiple fetchers with different
// settings can coexist in the same process.
type Config struct {
	// BaseURL is the REST summary endpoint, without a trailing slash.
	BaseURL string

	// UserAgent is sent on every request.
	UserAgent string

	// Concurrency is the hard ceiling on simultaneous in-flight requests.
	Concurrency int

	// RequestsPerSecond additionally paces request starts when > 0.
	RequestsPerSecond float64

	// Timeout applies per request.
	Timeout time.Duration
}

// FromAppConfig derives a fetcher Config from the application config.
func FromAppConfig(cfg *config.Config) Config {
	return Config{
		BaseURL:           cfg.Sources.SummaryEndpoint,
		UserAgent:         cfg.Sources.UserAgent,
		Concurrency:       cfg.Summaries.Concurrency,
		RequestsPerSecond: cfg.Summaries.RequestsPerSecond,
		Timeout:           cfg.Summaries.RequestTimeout,
	}
}

// Fetcher retrieves page summaries concurrently.
type Fetcher struct {
	cfg    Config
	logger *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		logger: logger.With("component", "summary_fetcher"),
	}
}

// result pairs a title with its fetched summary (nil on any failure).
type result struct {
	title   string
	summary *string
}

// FetchAll retrieves a summary for every title. One goroutine is launched
// per title immediately; a weighted semaphore bounds how many run their
// network call at once, so a freed permit is picked up by the next ready
// task with no idle gap. Non-200 responses and transport errors resolve to
// a nil summary for that title; one bad title never aborts the rest. There
// is no per-title retry at this layer.
//
// The returned map's content does not depend on completion order.
func (f *Fetcher) FetchAll(ctx context.Context, titles []string) (map[string]*string, error) {
	// One shared client per group fetch: connection pooling across all
	// requests against the same host.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        f.cfg.Concurrency,
		MaxIdleConnsPerHost: f.cfg.Concurrency,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &http.Client{Transport: transport, Timeout: f.cfg.Timeout}
	defer transport.CloseIdleConnections()

	sem := semaphore.NewWeighted(int64(f.cfg.Concurrency))

	var pacer *rate.Limiter
	if f.cfg.RequestsPerSecond > 0 {
		pacer = rate.NewLimiter(rate.Limit(f.cfg.RequestsPerSecond), 1)
	}

	results := make(chan result, len(titles))
	for _, title := range titles {
		go func(title string) {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- result{title: title}
				return
			}
			defer sem.Release(1)

			if pacer != nil {
				if err := pacer.Wait(ctx); err != nil {
					results <- result{title: title}
					return
				}
			}
			results <- result{title: title, summary: f.fetchOne(ctx, client, title)}
		}(title)
	}

	out := make(map[string]*string, len(titles))
	for range titles {
		select {
		case r := <-results:
			out[r.title] = r.summary
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fetched := 0
	for _, s := range out {
		if s != nil {
			fetched++
		}
	}
	f.logger.Info("summaries fetched", "titles", len(titles), "found", fetched)
	return out, nil
}

type summaryPayload struct {
	Extract string `json:"extract"`
}

// fetchOne issues a single summary request. Any failure yields nil.
func (f *Fetcher) fetchOne(ctx context.Context, client *http.Client, title string) *string {
	reqURL := fmt.Sprintf("%s/%s", f.cfg.BaseURL, url.PathEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		f.logger.Debug("summary fetch failed", "title", title, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	var payload summaryPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		f.logger.Debug("summary decode failed", "title", title, "error", err)
		return nil
	}
	if payload.Extract == "" {
		return nil
	}
	return &payload.Extract
}
