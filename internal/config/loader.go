package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flag overrides are applied by the caller on the returned struct.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("FILMWIKI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("filmwiki")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".filmwiki"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("sources.mediawiki_api", cfg.Sources.MediaWikiAPI)
	v.SetDefault("sources.sparql_endpoint", cfg.Sources.SPARQLEndpoint)
	v.SetDefault("sources.summary_endpoint", cfg.Sources.SummaryEndpoint)
	v.SetDefault("sources.user_agent", cfg.Sources.UserAgent)
	v.SetDefault("sources.target_groups", cfg.Sources.TargetGroups)

	v.SetDefault("fetcher.max_retries", cfg.Fetcher.MaxRetries)
	v.SetDefault("fetcher.retry_delay", cfg.Fetcher.RetryDelay)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.id_batch_size", cfg.Fetcher.IDBatchSize)
	v.SetDefault("fetcher.query_batch_size", cfg.Fetcher.QueryBatchSize)
	v.SetDefault("fetcher.batch_interval", cfg.Fetcher.BatchInterval)

	v.SetDefault("summaries.concurrency", cfg.Summaries.Concurrency)
	v.SetDefault("summaries.requests_per_second", cfg.Summaries.RequestsPerSecond)
	v.SetDefault("summaries.request_timeout", cfg.Summaries.RequestTimeout)

	v.SetDefault("checkpoint.dir", cfg.Checkpoint.Dir)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_dir", cfg.Storage.OutputDir)
	v.SetDefault("storage.reports_dir", cfg.Storage.ReportsDir)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_db", cfg.Storage.MongoDB)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
