package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// WindowSpec is one entry of the time-window catalog. Exactly one of
// offset_minutes / anchor is meaningful; tolerance_minutes overrides the
// pipeline default for this window when > 0.
type WindowSpec struct {
	Name             string `yaml:"name" validate:"required"`
	OffsetMinutes    int    `yaml:"offset_minutes"`
	Anchor           string `yaml:"anchor"`
	ToleranceMinutes int    `yaml:"tolerance_minutes"`
}

// BenchmarkGroup maps one benchmark name to its constituent tickers
// (e.g. several index ETFs averaged into one group return).
type BenchmarkGroup struct {
	Name    string   `yaml:"name" validate:"required"`
	Tickers []string `yaml:"tickers" validate:"required,min=1"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8087"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"alphaforge"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		BarsTablePrefix  string        `yaml:"bars_table_prefix" default:"bars"`
		FeatureTable     string        `yaml:"feature_table" default:"event_features"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"alphaforge.features"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	Export struct {
		// Backend selects the feature sink: "clickhouse" or "kafka".
		Backend string `yaml:"backend" default:"clickhouse" validate:"oneof=clickhouse kafka"`
	} `yaml:"export"`
	Events struct {
		// Source selects event intake: "file" (JSONL batch), "stream"
		// (websocket push from the extraction service) or "queue" (Redis
		// queue fed by upstream jobs).
		Source         string        `yaml:"source" default:"file" validate:"oneof=file stream queue"`
		FilePath       string        `yaml:"file_path"`
		StreamURL      string        `yaml:"stream_url"`
		StreamToken    string        `yaml:"stream_token"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxRPS         int           `yaml:"max_rps" default:"10"`
		BufferSize     int           `yaml:"buffer_size" default:"500"`
	} `yaml:"events"`
	Pipeline struct {
		BatchID                 string        `yaml:"batch_id"`
		Workers                 int           `yaml:"workers" default:"8" validate:"min=1"`
		DefaultToleranceMinutes int           `yaml:"default_tolerance_minutes" default:"5" validate:"min=0"`
		StoreTimeout            time.Duration `yaml:"store_timeout" default:"15s"`
		RetryLimit              int           `yaml:"retry_limit" default:"3" validate:"min=0"`
		RetryBackoff            time.Duration `yaml:"retry_backoff" default:"500ms"`
		VolumeSpikeThreshold    float64       `yaml:"volume_spike_threshold" default:"3.0"`
		TrailingVolumeDays      int           `yaml:"trailing_volume_days" default:"20" validate:"min=1"`
		RegimeLookbackDays      int           `yaml:"regime_lookback_days" default:"30" validate:"min=1"`
		RegimeBullThresholdPct  float64       `yaml:"regime_bull_threshold_pct" default:"5.0"`
		RegimeBearThresholdPct  float64       `yaml:"regime_bear_threshold_pct" default:"-5.0"`
	} `yaml:"pipeline"`
	Aggregation struct {
		// Defaults substituted for numeric factor fields that no record
		// measured; every substitution is flagged in the completeness map.
		NumericDefaults map[string]float64 `yaml:"numeric_defaults"`
	} `yaml:"aggregation"`
	Calendar struct {
		MIC      string `yaml:"mic" default:"xnys"`
		Timezone string `yaml:"timezone" default:"America/New_York"`
		Open     string `yaml:"open" default:"09:30"`
		Close    string `yaml:"close" default:"16:00"`
	} `yaml:"calendar"`
	Windows struct {
		Version string       `yaml:"version" default:"v1"`
		Catalog []WindowSpec `yaml:"catalog" validate:"required,min=1,dive"`
	} `yaml:"windows"`
	Benchmarks struct {
		// Primary names the group used for regime and relative volatility.
		Primary string           `yaml:"primary" validate:"required"`
		Groups  []BenchmarkGroup `yaml:"groups" validate:"required,min=1,dive"`
	} `yaml:"benchmarks"`
}

// Load reads, defaults, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("EXPORT_BACKEND"); v != "" {
		c.Export.Backend = v
	}
	if v := os.Getenv("BATCH_ID"); v != "" {
		c.Pipeline.BatchID = v
	}
	if v := os.Getenv("EVENTS_FILE"); v != "" {
		c.Events.FilePath = v
	}
	if v := os.Getenv("STREAM_TOKEN"); v != "" {
		c.Events.StreamToken = v
	}

	return c, nil
}

// Validate checks structural validity. Catalog semantics (unique names,
// known anchors) are validated where the catalog is compiled.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Export.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required for kafka export backend")
	}
	if c.Events.Source == "file" && c.Events.FilePath == "" {
		return fmt.Errorf("events.file_path required for file source")
	}
	if c.Events.Source == "stream" && c.Events.StreamURL == "" {
		return fmt.Errorf("events.stream_url required for stream source")
	}
	return nil
}
