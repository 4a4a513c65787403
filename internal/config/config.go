// Package config loads the process configuration with viper: an optional
// YAML file at CONFIG_PATH, overlaid by environment variables.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/director"
	"github.com/Kocoro-lab/interplay/internal/temporal"
	"github.com/Kocoro-lab/interplay/internal/tracing"
	"github.com/Kocoro-lab/interplay/internal/workflows"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "/app/config/interplay.yaml"

// Config is the full process configuration.
type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Store       StoreConfig      `mapstructure:"store"`
	Postgres    PostgresConfig   `mapstructure:"postgres"`
	Temporal    temporal.Config  `mapstructure:"temporal"`
	Sources     SourcesConfig    `mapstructure:"sources"`
	LLM         LLMConfig        `mapstructure:"llm"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Research    ResearchConfig   `mapstructure:"research"`
	Workflow    WorkflowConfig   `mapstructure:"workflow"`
	Schedules   SchedulesConfig  `mapstructure:"schedules"`
	Director    DirectorConfig   `mapstructure:"director"`
	Encryption  EncryptionConfig `mapstructure:"encryption"`
	Tracing     tracing.Config   `mapstructure:"tracing"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	AdminToken  string `mapstructure:"admin_token"`
}

// StoreConfig selects the report store backend.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // postgres | sqlite
	SQLitePath string `mapstructure:"sqlite_path"`
}

// PostgresConfig holds connection parts for the Postgres store.
type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN renders a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// SourcesConfig locates the data-source API. FixturePath switches to a
// local JSON fixture instead.
type SourcesConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryBase   time.Duration `mapstructure:"retry_base"`
	FixturePath string        `mapstructure:"fixture_path"`
}

// LLMConfig selects and tunes the text generator.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"` // http | gemini | scripted
	ServiceURL   string        `mapstructure:"service_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	GeminiModel  string        `mapstructure:"gemini_model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	// ScriptedPath is a JSON object of agent ID to canned response.
	ScriptedPath string `mapstructure:"scripted_path"`
}

// RedisConfig locates the optional page cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ResearchConfig tunes page fetching.
type ResearchConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	PerHostRPS   float64       `mapstructure:"per_host_rps"`
	PerHostBurst int           `mapstructure:"per_host_burst"`
	LocalCache   int           `mapstructure:"local_cache_size"`
}

// WorkflowConfig tunes activity execution.
type WorkflowConfig struct {
	DataFetchAttempts int           `mapstructure:"data_fetch_attempts"`
	StageTimeout      time.Duration `mapstructure:"stage_timeout"`
	AgentTimeout      time.Duration `mapstructure:"agent_timeout"`
	WorkerActivities  int           `mapstructure:"worker_activities"`
	WorkerWorkflows   int           `mapstructure:"worker_workflows"`
	DefaultDays       int           `mapstructure:"default_days"`
}

// SchedulesConfig bounds cron schedules.
type SchedulesConfig struct {
	MinInterval  time.Duration `mapstructure:"min_interval"`
	Timezone     string        `mapstructure:"timezone"`
	MaxPerClient int           `mapstructure:"max_per_client"`
}

// DirectorConfig tunes synthesis.
type DirectorConfig struct {
	Narrative bool             `mapstructure:"narrative"`
	Factors   director.Factors `mapstructure:"factors"`
}

// EncryptionConfig holds the stage-output key, 32 bytes as hex or base64.
type EncryptionConfig struct {
	Key string `mapstructure:"key"`
}

// KeyBytes decodes the key. An empty key returns nil.
func (e EncryptionConfig) KeyBytes() ([]byte, error) {
	k := strings.TrimSpace(e.Key)
	if k == "" {
		return nil, nil
	}
	if b, err := hex.DecodeString(k); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(k); err == nil && len(b) == 32 {
		return b, nil
	}
	return nil, errors.New("encryption key must be 32 bytes, hex or base64 encoded")
}

// Database returns the connection settings of the selected store driver.
func (c *Config) Database() db.Config {
	if c.Store.Driver == db.DriverSQLite {
		return db.Config{Driver: db.DriverSQLite, DSN: c.Store.SQLitePath}
	}
	return db.Config{
		Driver:          db.DriverPostgres,
		DSN:             c.Postgres.DSN(),
		MaxConnections:  c.Postgres.MaxOpenConns,
		IdleConnections: c.Postgres.MaxIdleConns,
		MaxLifetime:     5 * time.Minute,
	}
}

// WorkflowOptions returns the per-run activity options.
func (c *Config) WorkflowOptions() workflows.Options {
	return workflows.Options{
		DataFetchAttempts: int32(c.Workflow.DataFetchAttempts),
		StageTimeout:      c.Workflow.StageTimeout,
		AgentTimeout:      c.Workflow.AgentTimeout,
	}
}

// legacyEnv maps config keys to the unprefixed variables deployments
// already set.
var legacyEnv = map[string]string{
	"log_level":             "LOG_LEVEL",
	"environment":           "ENVIRONMENT",
	"server.http_port":      "HTTP_PORT",
	"server.metrics_port":   "METRICS_PORT",
	"server.admin_token":    "ADMIN_TOKEN",
	"postgres.host":         "POSTGRES_HOST",
	"postgres.port":         "POSTGRES_PORT",
	"postgres.user":         "POSTGRES_USER",
	"postgres.password":     "POSTGRES_PASSWORD",
	"postgres.database":     "POSTGRES_DB",
	"postgres.sslmode":      "POSTGRES_SSLMODE",
	"temporal.host_port":    "TEMPORAL_HOST",
	"temporal.namespace":    "TEMPORAL_NAMESPACE",
	"llm.service_url":       "LLM_SERVICE_URL",
	"llm.gemini_api_key":    "GEMINI_API_KEY",
	"redis.addr":            "REDIS_ADDR",
	"redis.password":        "REDIS_PASSWORD",
	"encryption.key":        "STAGE_ENCRYPTION_KEY",
	"tracing.enabled":       "OTEL_ENABLED",
	"tracing.otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.http_port", 8081)
	v.SetDefault("server.metrics_port", 2112)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "interplay.db")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "interplay")
	v.SetDefault("postgres.password", "interplay")
	v.SetDefault("postgres.database", "interplay")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 25)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("temporal.host_port", "temporal:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "interplay-reports")
	v.SetDefault("sources.base_url", "http://data-source:8080")
	v.SetDefault("sources.timeout", "30s")
	v.SetDefault("sources.max_retries", 2)
	v.SetDefault("sources.retry_base", "500ms")
	v.SetDefault("llm.provider", "http")
	v.SetDefault("llm.service_url", "http://llm-service:8000")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.gemini_model", "gemini-2.5-flash")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("redis.db", 0)
	v.SetDefault("research.user_agent", "InterplayResearcher/1.0")
	v.SetDefault("research.cache_ttl", "6h")
	v.SetDefault("research.per_host_rps", 2.0)
	v.SetDefault("research.per_host_burst", 2)
	v.SetDefault("research.local_cache_size", 512)
	v.SetDefault("workflow.data_fetch_attempts", 1)
	v.SetDefault("workflow.stage_timeout", "5m")
	v.SetDefault("workflow.agent_timeout", "10m")
	v.SetDefault("workflow.worker_activities", 10)
	v.SetDefault("workflow.worker_workflows", 10)
	v.SetDefault("workflow.default_days", 30)
	v.SetDefault("schedules.min_interval", "1h")
	v.SetDefault("schedules.timezone", "UTC")
	v.SetDefault("schedules.max_per_client", 5)
	v.SetDefault("director.narrative", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "interplay")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
}

// Load reads CONFIG_PATH (or DefaultPath). A missing file is not an error;
// defaults and environment variables still apply. Every key can also be
// set as INTERPLAY_<SECTION>_<KEY>.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("INTERPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "INTERPLAY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Director.Factors.Revenue == nil {
		c.Director.Factors = director.DefaultFactors()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want postgres or sqlite", c.Store.Driver))
	}
	switch c.LLM.Provider {
	case "http", "gemini", "scripted":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q: want http, gemini or scripted", c.LLM.Provider))
	}
	if c.LLM.Provider == "gemini" && c.LLM.GeminiAPIKey == "" {
		errs = append(errs, errors.New("llm.gemini_api_key is required for the gemini provider"))
	}
	if c.LLM.Provider == "scripted" && c.LLM.ScriptedPath == "" {
		errs = append(errs, errors.New("llm.scripted_path is required for the scripted provider"))
	}
	if c.Workflow.DataFetchAttempts < 1 {
		errs = append(errs, errors.New("workflow.data_fetch_attempts must be at least 1"))
	}
	if c.Workflow.DefaultDays < 1 || c.Workflow.DefaultDays > 365 {
		errs = append(errs, errors.New("workflow.default_days must be within 1..365"))
	}
	if _, err := c.Encryption.KeyBytes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
