package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the monitoring system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Detection DetectionConfig `mapstructure:"detection"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains the OpenRouter (OpenAI-compatible) provider settings
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openrouter or openai
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SourcesConfig contains the platform API client settings
type SourcesConfig struct {
	YouTube YouTubeConfig `mapstructure:"youtube"`
	Twitter TwitterConfig `mapstructure:"twitter"`
}

// YouTubeConfig contains YouTube Data API settings
type YouTubeConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Endpoint    string `mapstructure:"endpoint"`
	MaxResults  int    `mapstructure:"max_results"`
	MaxComments int    `mapstructure:"max_comments"`
}

// TwitterConfig contains Twitter API v2 settings
type TwitterConfig struct {
	BearerToken string `mapstructure:"bearer_token"`
	Endpoint    string `mapstructure:"endpoint"`
	MaxResults  int    `mapstructure:"max_results"`
}

// DetectionConfig bounds the detection pipeline
type DetectionConfig struct {
	MaxConcurrentSearches int           `mapstructure:"max_concurrent_searches"`
	MaxConcurrentAnalyses int           `mapstructure:"max_concurrent_analyses"`
	DefaultLanguage       string        `mapstructure:"default_language"`
	LookbackDays          int           `mapstructure:"lookback_days"`
	QueriesPerPlatform    int           `mapstructure:"queries_per_platform"`
	EnrichLinks           bool          `mapstructure:"enrich_links"`
	MaxLinksPerItem       int           `mapstructure:"max_links_per_item"`
	RunTimeout            time.Duration `mapstructure:"run_timeout"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Index    IndexConfig    `mapstructure:"index"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// IndexConfig contains the evidence full-text index settings
type IndexConfig struct {
	Path string `mapstructure:"path"`
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WatchConfig contains scheduler settings
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// Normalize applies defaults for unset detection values.
func (d DetectionConfig) Normalize() DetectionConfig {
	if d.MaxConcurrentSearches <= 0 {
		d.MaxConcurrentSearches = 4
	}
	if d.MaxConcurrentAnalyses <= 0 {
		d.MaxConcurrentAnalyses = 3
	}
	if d.DefaultLanguage == "" {
		d.DefaultLanguage = "en"
	}
	if d.LookbackDays <= 0 {
		d.LookbackDays = 30
	}
	if d.QueriesPerPlatform <= 0 {
		d.QueriesPerPlatform = 2
	}
	if d.MaxLinksPerItem <= 0 {
		d.MaxLinksPerItem = 2
	}
	if d.RunTimeout <= 0 {
		d.RunTimeout = 10 * time.Minute
	}
	return d
}

// LoadConfig loads config from file plus SLANDERWATCH_* / canonical env vars
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", 30*time.Second)
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("llm.provider", "openrouter")
	viper.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("llm.model", "meta-llama/llama-4-maverick:free")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("sources.youtube.endpoint", "https://www.googleapis.com/youtube/v3")
	viper.SetDefault("sources.youtube.max_results", 5)
	viper.SetDefault("sources.youtube.max_comments", 20)
	viper.SetDefault("sources.twitter.endpoint", "https://api.twitter.com/2")
	viper.SetDefault("sources.twitter.max_results", 10)
	viper.SetDefault("watch.interval", time.Hour)
	viper.SetDefault("watch.lock_ttl", 2*time.Minute)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SLANDERWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// canonical credential env vars
	_ = viper.BindEnv("sources.youtube.api_key", "YOUTUBE_API_KEY")
	_ = viper.BindEnv("sources.twitter.bearer_token", "TWITTER_BEARER_TOKEN")
	_ = viper.BindEnv("llm.api_key", "OPENROUTER_API_KEY")

	// a missing config file is fine for env-only CLI runs
	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Detection = config.Detection.Normalize()
	return &config
}
