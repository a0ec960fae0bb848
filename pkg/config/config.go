package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the fork crawler
type Config struct {
	// GitHub API settings
	GitHub GitHubConfig `yaml:"github" json:"github"`

	// Crawl window, cadence and output locations
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Retry and rate-limit wait policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Where tokens are read from
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Shared rate-limit state backend
	RateLimitState RateLimitStateConfig `yaml:"rate_limit_state" json:"rate_limit_state"`

	// Optional result mirrors
	Sinks SinksConfig `yaml:"sinks" json:"sinks"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// GitHubConfig holds GitHub-specific configuration
type GitHubConfig struct {
	APIURL     string        `yaml:"api_url" json:"api_url"`
	APIVersion string        `yaml:"api_version" json:"api_version"`
	UserAgent  string        `yaml:"user_agent" json:"user_agent"`
	PageSize   int           `yaml:"page_size" json:"page_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// CrawlConfig holds the crawl window and persistence layout
type CrawlConfig struct {
	ProjectList        string        `yaml:"project_list" json:"project_list"`
	WindowStart        time.Time     `yaml:"window_start" json:"window_start"`
	WindowEnd          time.Time     `yaml:"window_end" json:"window_end"`
	CheckpointInterval int           `yaml:"checkpoint_interval" json:"checkpoint_interval"`
	PageDelay          time.Duration `yaml:"page_delay" json:"page_delay"`
	ResultDir          string        `yaml:"result_dir" json:"result_dir"`
	CheckpointDir      string        `yaml:"checkpoint_dir" json:"checkpoint_dir"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	Strategy          string        `yaml:"strategy" json:"strategy"`
	ServerErrorDelay  time.Duration `yaml:"server_error_delay" json:"server_error_delay"`
	NetworkErrorDelay time.Duration `yaml:"network_error_delay" json:"network_error_delay"`
	MaxRateLimitWait  time.Duration `yaml:"max_rate_limit_wait" json:"max_rate_limit_wait"`
	ResetGrace        time.Duration `yaml:"reset_grace" json:"reset_grace"`
}

// CredentialsConfig controls which token stores are consulted
type CredentialsConfig struct {
	EnvPrefix     string `yaml:"env_prefix" json:"env_prefix"`
	UseKeyring    bool   `yaml:"use_keyring" json:"use_keyring"`
	EncryptedFile string `yaml:"encrypted_file" json:"encrypted_file"`
}

// RateLimitStateConfig selects where per-token quota state is kept
type RateLimitStateConfig struct {
	Backend       string `yaml:"backend" json:"backend"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix" json:"key_prefix"`
}

// SinksConfig holds optional result mirrors
type SinksConfig struct {
	SQLitePath      string `yaml:"sqlite_path" json:"sqlite_path"`
	MongoURI        string `yaml:"mongo_uri" json:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database" json:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection" json:"mongo_collection"`
}

// MetricsConfig holds the metrics listener address; empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default crawl window
var (
	DefaultWindowStart = time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	DefaultWindowEnd   = time.Date(2023, 3, 31, 23, 59, 59, 0, time.UTC)
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIURL:     "https://api.github.com",
			APIVersion: "2022-11-28",
			UserAgent:  "forkcrawl/1.0",
			PageSize:   100,
			Timeout:    30 * time.Second,
		},
		Crawl: CrawlConfig{
			ProjectList:        "top300_projects_list.txt",
			WindowStart:        DefaultWindowStart,
			WindowEnd:          DefaultWindowEnd,
			CheckpointInterval: 10,
			PageDelay:          100 * time.Millisecond,
			ResultDir:          filepath.Join("data", "fork"),
			CheckpointDir:      filepath.Join("data", "fork_checkpoint"),
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			Strategy:          "constant",
			ServerErrorDelay:  2 * time.Second,
			NetworkErrorDelay: 5 * time.Second,
			MaxRateLimitWait:  60 * time.Second,
			ResetGrace:        5 * time.Second,
		},
		Credentials: CredentialsConfig{
			EnvPrefix:  "GITHUB_TOKEN_",
			UseKeyring: true,
		},
		RateLimitState: RateLimitStateConfig{
			Backend:   "memory",
			KeyPrefix: "forkcrawl:ratelimit:",
		},
		Sinks: SinksConfig{
			MongoDatabase:   "forkcrawl",
			MongoCollection: "fork_results",
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("FORKCRAWL_API_URL"); v != "" {
		c.GitHub.APIURL = v
	}
	if v := os.Getenv("FORKCRAWL_PAGE_SIZE"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.GitHub.PageSize = val
		}
	}
	if v := os.Getenv("FORKCRAWL_PROJECT_LIST"); v != "" {
		c.Crawl.ProjectList = v
	}
	if v := os.Getenv("FORKCRAWL_WINDOW_START"); v != "" {
		t, err := ParseWindowBound(v, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("FORKCRAWL_WINDOW_START: %w", err))
		} else {
			c.Crawl.WindowStart = t
		}
	}
	if v := os.Getenv("FORKCRAWL_WINDOW_END"); v != "" {
		t, err := ParseWindowBound(v, true)
		if err != nil {
			errs = append(errs, fmt.Errorf("FORKCRAWL_WINDOW_END: %w", err))
		} else {
			c.Crawl.WindowEnd = t
		}
	}
	if v := os.Getenv("FORKCRAWL_RESULT_DIR"); v != "" {
		c.Crawl.ResultDir = v
	}
	if v := os.Getenv("FORKCRAWL_CHECKPOINT_DIR"); v != "" {
		c.Crawl.CheckpointDir = v
	}
	if v := os.Getenv("FORKCRAWL_REDIS_ADDR"); v != "" {
		c.RateLimitState.RedisAddr = v
		c.RateLimitState.Backend = "redis"
	}
	if v := os.Getenv("FORKCRAWL_SQLITE_PATH"); v != "" {
		c.Sinks.SQLitePath = v
	}
	if v := os.Getenv("FORKCRAWL_MONGO_URI"); v != "" {
		c.Sinks.MongoURI = v
	}
	if v := os.Getenv("FORKCRAWL_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("FORKCRAWL_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("FORKCRAWL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// ParseWindowBound accepts RFC3339 timestamps or plain dates. A plain date used
// as an end bound covers the whole day.
func ParseWindowBound(value string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC3339", value)
	}
	if end {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t.UTC(), nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile returns the first existing config file in the standard
// locations, or "" when there is none
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".forkcrawl.yaml",
		".forkcrawl.yml",
		filepath.Join(home, ".config", "forkcrawl", "config.yaml"),
		filepath.Join(home, ".config", "forkcrawl", "config.yml"),
		filepath.Join(home, ".forkcrawl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.GitHub.APIURL == "" {
		errs = append(errs, errors.New("GitHub API URL is required"))
	}
	if c.GitHub.PageSize < 1 || c.GitHub.PageSize > 100 {
		errs = append(errs, errors.New("page size must be between 1 and 100"))
	}
	if c.GitHub.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Crawl.WindowEnd.Before(c.Crawl.WindowStart) {
		errs = append(errs, errors.New("window end must not be before window start"))
	}
	if c.Crawl.CheckpointInterval < 1 {
		errs = append(errs, errors.New("checkpoint interval must be at least 1 page"))
	}
	if c.Crawl.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}
	if c.Crawl.ResultDir == "" {
		errs = append(errs, errors.New("result directory is required"))
	}
	if c.Crawl.CheckpointDir == "" {
		errs = append(errs, errors.New("checkpoint directory is required"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if c.Retry.ServerErrorDelay < 0 || c.Retry.NetworkErrorDelay < 0 || c.Retry.ResetGrace < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	if c.Retry.MaxRateLimitWait <= 0 {
		errs = append(errs, errors.New("max rate limit wait must be positive"))
	}
	validStrategies := map[string]bool{"constant": true, "exponential": true}
	if !validStrategies[strings.ToLower(c.Retry.Strategy)] {
		errs = append(errs, errors.New("retry strategy must be constant or exponential"))
	}

	switch strings.ToLower(c.RateLimitState.Backend) {
	case "memory":
	case "redis":
		if c.RateLimitState.RedisAddr == "" {
			errs = append(errs, errors.New("redis address is required for the redis backend"))
		}
	default:
		errs = append(errs, errors.New("rate limit state backend must be memory or redis"))
	}

	if c.Sinks.MongoURI != "" && (c.Sinks.MongoDatabase == "" || c.Sinks.MongoCollection == "") {
		errs = append(errs, errors.New("mongo database and collection are required when mongo_uri is set"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) error {
	var errs []error

	if v, ok := flags["project-list"].(string); ok && v != "" {
		c.Crawl.ProjectList = v
	}
	if v, ok := flags["result-dir"].(string); ok && v != "" {
		c.Crawl.ResultDir = v
	}
	if v, ok := flags["checkpoint-dir"].(string); ok && v != "" {
		c.Crawl.CheckpointDir = v
	}
	if v, ok := flags["window-start"].(string); ok && v != "" {
		t, err := ParseWindowBound(v, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("--window-start: %w", err))
		} else {
			c.Crawl.WindowStart = t
		}
	}
	if v, ok := flags["window-end"].(string); ok && v != "" {
		t, err := ParseWindowBound(v, true)
		if err != nil {
			errs = append(errs, fmt.Errorf("--window-end: %w", err))
		} else {
			c.Crawl.WindowEnd = t
		}
	}
	if v, ok := flags["page-size"].(int); ok && v > 0 {
		c.GitHub.PageSize = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Addr = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".forkcrawl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.MergeCommandLineFlags(flags); err != nil {
		return nil, fmt.Errorf("invalid command line flags: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
