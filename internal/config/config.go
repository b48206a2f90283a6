package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for filmwiki.
type Config struct {
	Sources    SourcesConfig    `mapstructure:"sources"    yaml:"sources"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Summaries  SummariesConfig  `mapstructure:"summaries"  yaml:"summaries"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// SourcesConfig points at the remote knowledge-base endpoints and names the
// top-level category groups used to discover film titles.
type SourcesConfig struct {
	MediaWikiAPI    string   `mapstructure:"mediawiki_api"    yaml:"mediawiki_api"`
	SPARQLEndpoint  string   `mapstructure:"sparql_endpoint"  yaml:"sparql_endpoint"`
	SummaryEndpoint string   `mapstructure:"summary_endpoint" yaml:"summary_endpoint"`
	UserAgent       string   `mapstructure:"user_agent"       yaml:"user_agent"`
	TargetGroups    []string `mapstructure:"target_groups"    yaml:"target_groups"`
}

// FetcherConfig controls the synchronous retrying request helper shared by
// the category and identifier resolvers and the SPARQL client.
type FetcherConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"      yaml:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"      yaml:"retry_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"  yaml:"request_timeout"`
	IDBatchSize    int           `mapstructure:"id_batch_size"    yaml:"id_batch_size"`
	QueryBatchSize int           `mapstructure:"query_batch_size" yaml:"query_batch_size"`
	BatchInterval  time.Duration `mapstructure:"batch_interval"   yaml:"batch_interval"`
}

// SummariesConfig controls the concurrent summary fetcher.
type SummariesConfig struct {
	Concurrency       int           `mapstructure:"concurrency"         yaml:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"     yaml:"request_timeout"`
}

// CheckpointConfig controls stage artifact persistence.
type CheckpointConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// StorageConfig controls output sinks.
type StorageConfig struct {
	Type       string `mapstructure:"type"        yaml:"type"` // csv, sqlite, mongodb
	OutputDir  string `mapstructure:"output_dir"  yaml:"output_dir"`
	ReportsDir string `mapstructure:"reports_dir" yaml:"reports_dir"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MongoURI   string `mapstructure:"mongo_uri"   yaml:"mongo_uri"`
	MongoDB    string `mapstructure:"mongo_db"    yaml:"mongo_db"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			MediaWikiAPI:    "https://en.wikipedia.org/w/api.php",
			SPARQLEndpoint:  "https://query.wikidata.org/sparql",
			SummaryEndpoint: "https://en.wikipedia.org/api/rest_v1/page/summary",
			UserAgent:       "filmwiki/" + Version + " (https://github.com/psivak/filmwiki)",
			TargetGroups: []string{
				"Indian films by decade",
				"Indian films by genre",
				"Indian films by language",
				"Indian films by topic",
				"Indian remakes of foreign films",
				"Indian films based on plays",
			},
		},
		Fetcher: FetcherConfig{
			MaxRetries:     3,
			RetryDelay:     1500 * time.Millisecond,
			RequestTimeout: 30 * time.Second,
			IDBatchSize:    50,
			QueryBatchSize: 200,
			BatchInterval:  2 * time.Second,
		},
		Summaries: SummariesConfig{
			Concurrency:       50,
			RequestsPerSecond: 0, // unlimited; the permit alone bounds load
			RequestTimeout:    30 * time.Second,
		},
		Checkpoint: CheckpointConfig{
			Dir: "data/checkpoints",
		},
		Storage: StorageConfig{
			Type:       "csv",
			OutputDir:  "data/processed",
			ReportsDir: "data/reports",
			SQLitePath: "data/films.db",
			MongoDB:    "filmwiki",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
