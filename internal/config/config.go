package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "NUTRICHAT_"

// Config represents runtime configuration for the server and the terminal client.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	History     HistoryConfig             `json:"history"`
	Advice      AdviceConfig              `json:"advice"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Client      ClientConfig              `json:"client"`
}

type BasicConfig struct {
	ServerAddress     string    `json:"server_address"`
	DatabaseType      string    `json:"database_type"`
	MinWorkers        int       `json:"min_workers"`
	MaxWorkers        int       `json:"max_workers"`
	QueueSize         int       `json:"queue_size"`
	WorkerIdleTimeout int       `json:"worker_idle_timeout"` // minutes
	TokenTTL          int       `json:"token_ttl"`           // hours
	RateLimit         float64   `json:"rate_limit"`          // advice requests per second per user
	RateBurst         int       `json:"rate_burst"`
	Log               LogConfig `json:"log"`
}

type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type HistoryConfig struct {
	Backend    string `json:"backend"` // sql or pebble
	PebblePath string `json:"pebble_path"`
	CacheTTL   int    `json:"cache_ttl"` // seconds
}

type AdviceConfig struct {
	// Provider is gemini, openai, claude, or backend (the server's /api/advice).
	Provider string `json:"provider"`
	// Engine selects how gemini is reached: genai (default) or eino.
	Engine       string `json:"engine"`
	Model        string `json:"model"`
	ReplyTimeout int    `json:"reply_timeout"` // seconds, 0 waits indefinitely
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type ClientConfig struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Timeout   int    `json:"timeout"` // seconds, 0 disables; never applied to advice calls
}

// Default is the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "nutrichat.db"},
		},
		Providers: map[string]ProviderConfig{},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the provided path (defaults to $NUTRICHAT_CONFIG,
// then config.json). A .env file in the working directory is loaded first and
// NUTRICHAT_* variables override file values. A missing default config.json
// is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	explicit := path != ""
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := &Config{}
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		cfg.resolvePaths(filepath.Dir(absPath))
	case errors.Is(err, os.ErrNotExist) && !explicit:
		cfg = Default()
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	switch c.History.Backend {
	case "sql", "pebble":
	default:
		return fmt.Errorf("history backend %q must be sql or pebble", c.History.Backend)
	}
	if c.History.Backend == "pebble" && c.History.PebblePath == "" {
		return fmt.Errorf("pebble_path must be configured for the pebble history backend")
	}
	switch c.Advice.Provider {
	case "gemini", "openai", "claude", "backend":
	default:
		return fmt.Errorf("invalid advice provider: %s", c.Advice.Provider)
	}
	switch c.Advice.Engine {
	case "genai", "eino":
	default:
		return fmt.Errorf("invalid advice engine: %s", c.Advice.Engine)
	}
	if c.BasicConfig.MaxWorkers < c.BasicConfig.MinWorkers {
		return fmt.Errorf("max_workers (%d) below min_workers (%d)", c.BasicConfig.MaxWorkers, c.BasicConfig.MinWorkers)
	}
	return nil
}

// Database returns the settings for the configured database type.
func (c *Config) Database() (string, DatabaseConfig, error) {
	dbType := c.BasicConfig.DatabaseType
	dbCfg, ok := c.Databases[dbType]
	if !ok {
		return dbType, DatabaseConfig{}, fmt.Errorf("database config for %s not found", dbType)
	}
	return dbType, dbCfg, nil
}

// Provider returns the settings for the configured advice provider.
func (c *Config) Provider() ProviderConfig {
	p := c.Providers[c.Advice.Provider]
	if c.Advice.Model != "" {
		p.Model = c.Advice.Model
	}
	return p
}

func (a AdviceConfig) Timeout() time.Duration {
	return time.Duration(a.ReplyTimeout) * time.Second
}

func (c ClientConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (h HistoryConfig) CacheDuration() time.Duration {
	return time.Duration(h.CacheTTL) * time.Second
}

func (c *Config) applyDefaults() {
	b := &c.BasicConfig
	if b.ServerAddress == "" {
		b.ServerAddress = ":8090"
	}
	if b.DatabaseType == "" {
		b.DatabaseType = "sqlite3"
	}
	if b.MinWorkers <= 0 {
		b.MinWorkers = 2
	}
	if b.MaxWorkers <= 0 {
		b.MaxWorkers = 8
	}
	if b.QueueSize <= 0 {
		b.QueueSize = 64
	}
	if b.WorkerIdleTimeout <= 0 {
		b.WorkerIdleTimeout = 5
	}
	if b.TokenTTL <= 0 {
		b.TokenTTL = 24
	}
	if b.RateLimit <= 0 {
		b.RateLimit = 1
	}
	if b.RateBurst <= 0 {
		b.RateBurst = 3
	}
	if c.History.Backend == "" {
		c.History.Backend = "sql"
	}
	if c.History.CacheTTL <= 0 {
		c.History.CacheTTL = 600
	}
	if c.Advice.Provider == "" {
		c.Advice.Provider = "backend"
	}
	if c.Advice.Engine == "" {
		c.Advice.Engine = "genai"
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = "http://127.0.0.1:8090"
	}
	if c.Client.Timeout < 0 {
		c.Client.Timeout = 0
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "127.0.0.1"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("SERVER_ADDRESS", &c.BasicConfig.ServerAddress)
	str("DB", &c.BasicConfig.DatabaseType)
	str("LOG_LEVEL", &c.BasicConfig.Log.Level)
	str("LOG_FILE", &c.BasicConfig.Log.File)
	str("HISTORY_BACKEND", &c.History.Backend)
	str("PEBBLE_PATH", &c.History.PebblePath)
	str("ADVICE_PROVIDER", &c.Advice.Provider)
	str("ADVICE_MODEL", &c.Advice.Model)
	str("SERVER_URL", &c.Client.ServerURL)
	str("USERNAME", &c.Client.Username)
	str("PASSWORD", &c.Client.Password)
	str("REDIS_PASSWORD", &c.Redis.Password)

	if v, ok := lookup(envPrefix + "REDIS_ADDR"); ok && v != "" {
		host, port, found := strings.Cut(v, ":")
		c.Redis.Host = host
		if found {
			if n, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = n
			}
		}
		c.Redis.Enabled = true
	}

	setKey := func(provider, key string) {
		if c.Providers == nil {
			c.Providers = map[string]ProviderConfig{}
		}
		p := c.Providers[provider]
		p.APIKey = key
		c.Providers[provider] = p
	}
	if key, ok := lookup("GEMINI_API_KEY"); ok && key != "" {
		setKey("gemini", key)
	}
	if key, ok := lookup(envPrefix + "API_KEY"); ok && key != "" {
		setKey(c.Advice.Provider, key)
	}
}

func (c *Config) resolvePaths(dir string) {
	if db, ok := c.Databases["sqlite3"]; ok && isFilePath(db.DSN) && !filepath.IsAbs(db.DSN) {
		db.DSN = filepath.Join(dir, db.DSN)
		c.Databases["sqlite3"] = db
	}
	if p := c.History.PebblePath; p != "" && !filepath.IsAbs(p) {
		c.History.PebblePath = filepath.Join(dir, p)
	}
	if p := c.BasicConfig.Log.File; p != "" && !filepath.IsAbs(p) {
		c.BasicConfig.Log.File = filepath.Join(dir, p)
	}
}

func isFilePath(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}
