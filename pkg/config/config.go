package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"DWML/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"5s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Logger struct {
		Level   string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format  string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output  string `yaml:"output" default:"stdout"`
		Collect bool   `yaml:"collect"`
		Topic   string `yaml:"topic" default:"logs.dwml"`
	} `yaml:"logger"`
	Kraken struct {
		BaseURL  string            `yaml:"base_url" default:"https://api.kraken.com" validate:"url"`
		Quote    string            `yaml:"quote" default:"USD"`
		Timeout  time.Duration     `yaml:"timeout" default:"10s" validate:"gt=0"`
		RetryMax int               `yaml:"retry_max" default:"2" validate:"gte=0,lte=5"`
		Aliases  map[string]string `yaml:"aliases"`
	} `yaml:"kraken"`
	Analysis struct {
		Window          int           `yaml:"window" default:"4" validate:"gte=1"`
		ResultMaxAge    time.Duration `yaml:"result_max_age" default:"168h"`
		SaveResults     bool          `yaml:"save_results" default:"true"`
		QueryLogBackend string        `yaml:"query_log_backend" default:"sql" validate:"oneof=sql kafka"`
		AverageStore    string        `yaml:"average_store" default:"tiered" validate:"oneof=sql cache tiered"`
		Interval        int           `yaml:"interval" default:"10080" validate:"oneof=60 1440 10080"`
	} `yaml:"analysis"`
	Database struct {
		Driver           string        `yaml:"driver" default:"sqlite" validate:"oneof=sqlite clickhouse"`
		DSN              string        `yaml:"dsn"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"dwml"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"database"`
	Cache struct {
		Backend       string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"10000"`
		Cleanup       time.Duration `yaml:"cleanup_interval" default:"5m"`
		L1TTL         time.Duration `yaml:"l1_ttl" default:"1m"`
		TaskTTL       time.Duration `yaml:"task_ttl" default:"24h"`
	} `yaml:"cache"`
	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Addr         string        `yaml:"addr" default:"localhost:6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		Timeout      time.Duration `yaml:"timeout" default:"3s"`
		Prefix       string        `yaml:"prefix" default:"dwml"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"dwml.query_log"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled" default:"true"`
			GroupID    string        `yaml:"group_id" default:"dwml-query-log"`
			Offset     string        `yaml:"auto_offset_reset" default:"earliest" validate:"oneof=earliest latest"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"dwml.query_log.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Queue struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		Backend    string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
		QueueSize  int           `yaml:"queue_size" default:"1000"`
		RetryLimit int           `yaml:"retry_limit" default:"3" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"60s"`
	} `yaml:"queue"`
	RateLimit struct {
		Enabled  bool          `yaml:"enabled" default:"true"`
		Requests int           `yaml:"requests" default:"60" validate:"gte=1"`
		Window   time.Duration `yaml:"window" default:"60s" validate:"gt=0"`
	} `yaml:"ratelimit"`
	Scheduler struct {
		Enabled     bool          `yaml:"enabled"`
		WarmCron    string        `yaml:"warm_cron" default:"@every 6h"`
		WarmSymbols []string      `yaml:"warm_symbols" default:"[\"BTC\",\"ETH\"]"`
		WarmTimeout time.Duration `yaml:"warm_timeout" default:"5m"`
	} `yaml:"scheduler"`
	Metrics struct {
		Enabled bool `yaml:"enabled" default:"true"`
	} `yaml:"metrics"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
// Keys missing from the file keep their default value.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, then .env, and overrides with environment
// variables. An empty path skips the file.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
			}
		}
	}
	list := func(dst *[]string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = util.SplitCSV(v)
		}
	}

	str(&c.Environment, "DWML_ENV")
	str(&c.Logger.Level, "DWML_LOG_LEVEL")
	str(&c.Logger.Format, "DWML_LOG_FORMAT")
	str(&c.Kraken.BaseURL, "KRAKEN_BASE_URL", "DWML_KRAKEN_BASE_URL")
	str(&c.Analysis.QueryLogBackend, "DWML_QUERY_LOG_BACKEND")
	str(&c.Analysis.AverageStore, "DWML_AVERAGE_STORE")
	str(&c.Database.Driver, "DWML_DB_DRIVER")
	str(&c.Database.Password, "DWML_DB_PASSWORD")
	str(&c.Cache.Backend, "DWML_CACHE_BACKEND")
	str(&c.Queue.Backend, "DWML_QUEUE_BACKEND")
	str(&c.Redis.Password, "REDIS_PASSWORD")
	str(&c.Scheduler.WarmCron, "DWML_WARM_CRON")
	list(&c.Scheduler.WarmSymbols, "DWML_WARM_SYMBOLS")

	if v, ok := lookup("DWML_SCHEDULER_ENABLED"); ok {
		c.Scheduler.Enabled = util.ParseBoolDefault(v, c.Scheduler.Enabled)
	}
	if v, ok := lookup("DWML_RATELIMIT_ENABLED"); ok {
		c.RateLimit.Enabled = util.ParseBoolDefault(v, c.RateLimit.Enabled)
	}
	if v, ok := lookup("DWML_RESULT_MAX_AGE"); ok {
		c.Analysis.ResultMaxAge = util.ParseDurationDefault(v, c.Analysis.ResultMaxAge)
	}
	if v, ok := lookup("DWML_QUEUE_WORKERS"); ok {
		c.Queue.Workers = util.ParseIntDefault(v, c.Queue.Workers)
	}

	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.DSN = v
		if strings.HasPrefix(v, "clickhouse://") {
			c.Database.Driver = "clickhouse"
		}
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v, ok := lookup("DWML_KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
		c.Kafka.Enabled = true
	}

	for _, key := range []string{"PORT", "DWML_SERVER_PORT"} {
		if v, ok := lookup(key); ok && v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			c.Server.Port = port
		}
	}
	return nil
}

// Validate checks field rules and the cross-section requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if (c.Cache.Backend != "memory" || c.Queue.Backend == "redis") && !c.Redis.Enabled {
		return fmt.Errorf("redis.enabled is required for cache.backend=%s queue.backend=%s", c.Cache.Backend, c.Queue.Backend)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Analysis.QueryLogBackend == "kafka" && !c.Kafka.Enabled {
		return fmt.Errorf("analysis.query_log_backend=kafka needs kafka.enabled")
	}
	if c.Scheduler.Enabled && c.Scheduler.WarmCron == "" {
		return fmt.Errorf("scheduler.warm_cron is required")
	}
	return nil
}
