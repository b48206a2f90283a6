// Package wikidata runs batched SPARQL queries against the Wikidata
// endpoint to resolve film metadata for entity ids.
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/psivak/filmwiki/internal/config"
	"github.com/psivak/filmwiki/internal/types"
)

// Wikidata property ids used in the metadata query.
const (
	propIMDb        = "P345"
	propPublication = "P577"
	propDirector    = "P57"
	propCast        = "P161"
	propProducer    = "P162"
	propWriter      = "P58"
)

// Client executes SPARQL queries with retry and inter-batch pacing.
type Client struct {
	http      *http.Client
	endpoint  string
	userAgent string
	retries   int
	delay     time.Duration
	batchSize int
	pacer     *rate.Limiter
	logger    *slog.Logger
}

// NewClient creates a SPARQL client from config. Batch queries are paced by
// the configured interval to respect the endpoint's fair-use policy.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	pacer := rate.NewLimiter(rate.Inf, 1)
	if cfg.Fetcher.BatchInterval > 0 {
		pacer = rate.NewLimiter(rate.Every(cfg.Fetcher.BatchInterval), 1)
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Fetcher.RequestTimeout},
		endpoint:  cfg.Sources.SPARQLEndpoint,
		userAgent: cfg.Sources.UserAgent,
		retries:   cfg.Fetcher.MaxRetries,
		delay:     cfg.Fetcher.RetryDelay,
		batchSize: cfg.Fetcher.QueryBatchSize,
		pacer:     pacer,
		logger:    logger.With("component", "wikidata"),
	}
}

type sparqlResult struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// Query runs one SPARQL query and returns the bindings as flat
// variable-to-value maps, retrying with linearly increasing backoff.
func (c *Client) Query(ctx context.Context, query string) ([]map[string]string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			sleep := c.delay * time.Duration(attempt-1)
			c.logger.Warn("sparql query failed, retrying",
				"attempt", attempt, "backoff", sleep, "error", lastErr)
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		rows, err := c.queryOnce(ctx, query)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, &types.QueryError{Endpoint: c.endpoint, Err: fmt.Errorf("%w: %w", types.ErrMaxRetries, lastErr)}
}

func (c *Client) queryOnce(ctx context.Context, query string) ([]map[string]string, error) {
	form := url.Values{"query": {query}, "format": {"json"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result sparqlResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode bindings: %w", err)
	}

	rows := make([]map[string]string, len(result.Results.Bindings))
	for i, binding := range result.Results.Bindings {
		row := make(map[string]string, len(binding))
		for k, v := range binding {
			row[k] = v.Value
		}
		rows[i] = row
	}
	return rows, nil
}

// FetchMetadata resolves IMDb id, release year and associated people for
// each entity id, batching ids into VALUES clauses. A malformed binding
// never aborts its batch; a terminal transport failure does.
func (c *Client) FetchMetadata(ctx context.Context, qids []string) (map[string]*types.Metadata, error) {
	meta := make(map[string]*types.Metadata)
	batches := 0
	for start := 0; start < len(qids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(qids) {
			end = len(qids)
		}

		// Pause between batches per the endpoint's fair-use policy.
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		rows, err := c.Query(ctx, buildMetadataQuery(qids[start:end]))
		if err != nil {
			return nil, err
		}
		mergeBindings(meta, rows)
		batches++
	}

	for _, m := range meta {
		sort.Strings(m.People)
	}

	c.logger.Debug("metadata fetched", "ids", len(qids), "batches", batches, "entities", len(meta))
	return meta, nil
}

// buildMetadataQuery templates the batched metadata query for a set of
// entity ids.
func buildMetadataQuery(qids []string) string {
	var values strings.Builder
	for i, q := range qids {
		if i > 0 {
			values.WriteByte(' ')
		}
		values.WriteString("wd:")
		values.WriteString(q)
	}
	return fmt.Sprintf(`SELECT ?film ?imdb ?date ?personLabel WHERE {
  VALUES ?film { %s }
  OPTIONAL { ?film wdt:%s ?imdb. }
  OPTIONAL { ?film wdt:%s ?date. }
  OPTIONAL { ?film ?prop ?person.
             VALUES ?prop { wdt:%s wdt:%s wdt:%s wdt:%s } }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}`, values.String(), propIMDb, propPublication, propDirector, propCast, propProducer, propWriter)
}

// mergeBindings folds multi-valued result rows into per-entity metadata:
// first non-empty IMDb id, first parseable year, union of person labels.
func mergeBindings(meta map[string]*types.Metadata, rows []map[string]string) {
	for _, row := range rows {
		film := row["film"]
		qid := film[strings.LastIndex(film, "/")+1:]
		if qid == "" {
			continue
		}

		m, ok := meta[qid]
		if !ok {
			m = &types.Metadata{}
			meta[qid] = m
		}

		if m.IMDbID == nil {
			if imdb := row["imdb"]; imdb != "" {
				m.IMDbID = &imdb
			}
		}
		if m.Year == nil {
			if year, ok := parseYear(row["date"]); ok {
				m.Year = &year
			}
		}
		if person := row["personLabel"]; person != "" {
			if !contains(m.People, person) {
				m.People = append(m.People, person)
			}
		}
	}
}

// parseYear extracts the year from a Wikidata date literal such as
// "1994-05-20T00:00:00Z". Malformed values are skipped without error.
func parseYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, false
	}
	return year, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
