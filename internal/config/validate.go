package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	for name, raw := range map[string]string{
		"sources.mediawiki_api":    cfg.Sources.MediaWikiAPI,
		"sources.sparql_endpoint":  cfg.Sources.SPARQLEndpoint,
		"sources.summary_endpoint": cfg.Sources.SummaryEndpoint,
	} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if len(cfg.Sources.TargetGroups) == 0 {
		return fmt.Errorf("sources.target_groups must not be empty")
	}

	if cfg.Fetcher.MaxRetries < 1 {
		return fmt.Errorf("fetcher.max_retries must be >= 1, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.RetryDelay < 0 {
		return fmt.Errorf("fetcher.retry_delay must be >= 0")
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.IDBatchSize < 1 || cfg.Fetcher.IDBatchSize > 50 {
		// The MediaWiki API caps titles= at 50 per request.
		return fmt.Errorf("fetcher.id_batch_size must be 1-50, got %d", cfg.Fetcher.IDBatchSize)
	}
	if cfg.Fetcher.QueryBatchSize < 1 || cfg.Fetcher.QueryBatchSize > 500 {
		return fmt.Errorf("fetcher.query_batch_size must be 1-500, got %d", cfg.Fetcher.QueryBatchSize)
	}

	if cfg.Summaries.Concurrency < 1 {
		return fmt.Errorf("summaries.concurrency must be >= 1, got %d", cfg.Summaries.Concurrency)
	}
	if cfg.Summaries.Concurrency > 200 {
		return fmt.Errorf("summaries.concurrency must be <= 200, got %d", cfg.Summaries.Concurrency)
	}
	if cfg.Summaries.RequestsPerSecond < 0 {
		return fmt.Errorf("summaries.requests_per_second must be >= 0")
	}

	if cfg.Checkpoint.Dir == "" {
		return fmt.Errorf("checkpoint.dir must not be empty")
	}

	validStorageTypes := map[string]bool{
		"csv": true, "sqlite": true, "mongodb": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: csv, sqlite, mongodb)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "mongodb" && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required for storage.type mongodb")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
