// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Cache         CacheConfig             `mapstructure:"cache"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Documents     DocumentsConfig         `mapstructure:"documents"`
	Bureau        BureauConfig            `mapstructure:"bureau"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Server        ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	// ProcessID is the BPMN process started by POST /applications.
	ProcessID string `mapstructure:"process_id"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	// ConnectAttempts bounds the startup ping loop for each store.
	ConnectAttempts int `mapstructure:"connect_attempts"`
	ConnectDelay    int `mapstructure:"connect_delay"` // milliseconds
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	ConnLifetime   int    `mapstructure:"conn_lifetime"` // milliseconds
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	URL        string   `mapstructure:"url"`
	// Index receives one document per verdict.
	Index string `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type CacheConfig struct {
	StatusTTL int    `mapstructure:"status_ttl"` // seconds
	KeyPrefix string `mapstructure:"key_prefix"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// PipelineConfig tunes the evaluator pipeline.
type PipelineConfig struct {
	// Seed makes stochastic evaluators reproducible. Zero uses the clock.
	Seed             int64              `mapstructure:"seed"`
	ExternalTimeout  int                `mapstructure:"external_timeout"` // milliseconds
	PersistTimeout   int                `mapstructure:"persist_timeout"`  // milliseconds
	BatchConcurrency int                `mapstructure:"batch_concurrency"`
	BureauEvaluator  bool               `mapstructure:"bureau_evaluator"`
	Weights          map[string]float64 `mapstructure:"weights"`
}

type DocumentsConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	URLPrefix string `mapstructure:"url_prefix"`
}

// BureauConfig points at an HTTP credit bureau. An empty BaseURL selects the
// built-in mock.
type BureauConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// NotificationConfig holds settings for the notify-loan-decision worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}
