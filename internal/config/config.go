// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Walker modes.
const (
	ModeDeep     = "deep"
	ModeDirected = "directed"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Wiki       WikiConfig       `mapstructure:"wiki"`
	Extractor  ExtractorConfig  `mapstructure:"extractor"`
	Walker     WalkerConfig     `mapstructure:"walker"`
	Controller ControllerConfig `mapstructure:"controller"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Publisher  PublisherConfig  `mapstructure:"publisher"`
	Server     ServerConfig     `mapstructure:"server"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// WikiConfig describes the encyclopedia being crawled and how politely.
type WikiConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// ExtractorConfig controls per-article retries.
type ExtractorConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	NoContentBackoff time.Duration `mapstructure:"no_content_backoff"`
}

// WalkerConfig selects the walk policy. A zero MaxSteps picks the mode's
// default budget.
type WalkerConfig struct {
	Mode        string        `mapstructure:"mode"`
	StepDelay   time.Duration `mapstructure:"step_delay"`
	MaxSteps    int           `mapstructure:"max_steps"`
	TargetTitle string        `mapstructure:"target_title"`
	TargetDepth int           `mapstructure:"target_depth"`
}

// ControllerConfig governs the worker pool and the job source.
type ControllerConfig struct {
	Workers           int           `mapstructure:"workers"`
	MaxSizeGB         float64       `mapstructure:"max_size_gb"`
	SizeCheckInterval time.Duration `mapstructure:"size_check_interval"`
	StartRetries      int           `mapstructure:"start_retries"`
	NoStartBackoff    time.Duration `mapstructure:"no_start_backoff"`
	MaxJobs           int           `mapstructure:"max_jobs"`
	StartArticles     []string      `mapstructure:"start_articles"`
	RandomArticles    int           `mapstructure:"random_articles"`
}

// StorageConfig picks the persistence sink.
type StorageConfig struct {
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the pgx pool.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	PathsTable      string        `mapstructure:"paths_table"`
	NodesTable      string        `mapstructure:"nodes_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PublisherConfig picks where "path stored" events go.
type PublisherConfig struct {
	Provider string       `mapstructure:"provider"`
	Topic    string       `mapstructure:"topic"`
	PubSub   PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds the Google Cloud project for the Pub/Sub publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// ServerConfig controls the status server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// FlagBinding maps a command-line flag onto a config key. Flags only
// override the key when set explicitly.
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

// Load builds a Config from defaults, an optional file, CRAWLER_-prefixed
// environment variables and bound flags, in increasing precedence.
func Load(path string, bindings ...FlagBinding) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	for _, b := range bindings {
		if b.Flag == nil {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", b.Flag.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("wiki.base_url", "https://en.wikipedia.org")
	v.SetDefault("wiki.user_agent", "WikiPathCrawler/1.0 (https://github.com/JakeFAU/wikipath-crawler)")
	v.SetDefault("wiki.request_timeout", 15*time.Second)
	v.SetDefault("wiki.respect_robots", false)
	v.SetDefault("wiki.requests_per_second", 0)
	v.SetDefault("wiki.burst", 1)
	v.SetDefault("extractor.max_attempts", 3)
	v.SetDefault("extractor.retry_backoff", 2*time.Second)
	v.SetDefault("extractor.no_content_backoff", time.Second)
	v.SetDefault("walker.mode", ModeDeep)
	v.SetDefault("walker.step_delay", 500*time.Millisecond)
	v.SetDefault("walker.max_steps", 0)
	v.SetDefault("walker.target_title", "")
	v.SetDefault("walker.target_depth", 0)
	v.SetDefault("controller.workers", 6)
	v.SetDefault("controller.max_size_gb", 2.0)
	v.SetDefault("controller.size_check_interval", 10*time.Second)
	v.SetDefault("controller.start_retries", 5)
	v.SetDefault("controller.no_start_backoff", time.Second)
	v.SetDefault("controller.max_jobs", 0)
	v.SetDefault("controller.start_articles", []string{})
	v.SetDefault("controller.random_articles", 0)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.postgres.paths_table", "wiki_paths")
	v.SetDefault("storage.postgres.nodes_table", "wiki_path_nodes")
	v.SetDefault("publisher.provider", "noop")
	v.SetDefault("publisher.topic", "wiki-paths")
	v.SetDefault("server.port", 0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Wiki.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("wiki.base_url must be an absolute http(s) URL")
	}
	if c.Wiki.RequestTimeout <= 0 {
		return fmt.Errorf("wiki.request_timeout must be > 0")
	}
	if c.Wiki.RequestsPerSecond < 0 {
		return fmt.Errorf("wiki.requests_per_second must be >= 0")
	}
	if c.Extractor.MaxAttempts <= 0 {
		return fmt.Errorf("extractor.max_attempts must be > 0")
	}
	if c.Extractor.RetryBackoff < 0 || c.Extractor.NoContentBackoff < 0 {
		return fmt.Errorf("extractor backoffs must be >= 0")
	}
	switch c.Walker.Mode {
	case ModeDeep, ModeDirected:
	default:
		return fmt.Errorf("walker.mode must be %q or %q", ModeDeep, ModeDirected)
	}
	if c.Walker.StepDelay <= 0 {
		return fmt.Errorf("walker.step_delay must be > 0")
	}
	if c.Walker.MaxSteps < 0 {
		return fmt.Errorf("walker.max_steps must be >= 0")
	}
	if c.Walker.TargetDepth < 0 {
		return fmt.Errorf("walker.target_depth must be >= 0")
	}
	if c.Controller.Workers <= 0 {
		return fmt.Errorf("controller.workers must be > 0")
	}
	if c.Controller.MaxSizeGB < 0 {
		return fmt.Errorf("controller.max_size_gb must be >= 0")
	}
	if c.Controller.NoStartBackoff < 0 {
		return fmt.Errorf("controller.no_start_backoff must be >= 0")
	}
	if c.Controller.SizeCheckInterval <= 0 {
		return fmt.Errorf("controller.size_check_interval must be > 0")
	}
	if c.Controller.MaxJobs < 0 || c.Controller.RandomArticles < 0 || c.Controller.StartRetries < 0 {
		return fmt.Errorf("controller counts must be >= 0")
	}
	switch c.Storage.Provider {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn must be set when storage.provider is postgres")
		}
	default:
		return fmt.Errorf("storage.provider must be memory or postgres")
	}
	switch c.Publisher.Provider {
	case "noop", "memory":
	case "pubsub":
		if c.Publisher.PubSub.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.pubsub.project_id and publisher.topic must be set when publisher.provider is pubsub")
		}
	default:
		return fmt.Errorf("publisher.provider must be noop, memory or pubsub")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	out := c
	if out.Storage.Postgres.DSN != "" {
		out.Storage.Postgres.DSN = redactDSN(out.Storage.Postgres.DSN)
	}
	out.Controller.StartArticles = append([]string(nil), c.Controller.StartArticles...)
	return out
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return "redacted"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
