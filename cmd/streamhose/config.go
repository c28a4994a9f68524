package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	cmdmetrics "github.com/loykin/streamhose/cmd/streamhose/metrics"
	"github.com/loykin/streamhose/cmd/streamhose/sink/clickhouse"
	"github.com/loykin/streamhose/cmd/streamhose/sink/common"
	"github.com/loykin/streamhose/cmd/streamhose/sink/console"
	"github.com/loykin/streamhose/cmd/streamhose/sink/firehose"
	"github.com/loykin/streamhose/cmd/streamhose/sink/opensearch"
	"github.com/loykin/streamhose/internal/coordinator"
)

// Gzip detection modes for local and S3 sources.
const (
	GzipAuto   = "auto"
	GzipAlways = "always"
	GzipNever  = "never"
)

// SinkConfig selects and configures the batch-ingestion backend.
type SinkConfig struct {
	Type   string            `mapstructure:"type"` // "console", "file", "firehose", "clickhouse", "opensearch"
	Host   string            `mapstructure:"host"` // override host; default os.Hostname()
	Labels map[string]string `mapstructure:"labels"`

	Retry      common.RetryConfig `mapstructure:"retry"`
	Console    console.Config     `mapstructure:"console"`
	File       console.FileConfig `mapstructure:"file"`
	Firehose   firehose.Config    `mapstructure:"firehose"`
	ClickHouse clickhouse.Config  `mapstructure:"clickhouse"`
	OpenSearch opensearch.Config  `mapstructure:"opensearch"`
}

// S3Config configures the s3:// source opener.
type S3Config struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // e.g. http://localhost:9000 for MinIO; implies path-style
}

type SourceConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

// LogConfig controls the process-wide slog logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`   // empty logs to stderr
	MaxSizeMB  int    `mapstructure:"max-size-mb"`
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAgeDays int    `mapstructure:"max-age-days"`
	Compress   bool   `mapstructure:"compress"`
}

// StoreConfig configures the delivery ledger.
type StoreConfig struct {
	Enable        bool   `mapstructure:"enable"`
	DBPath        string `mapstructure:"db-path"`
	SkipCompleted bool   `mapstructure:"skip-completed"`
}

// Config holds all configuration options for the streamhose application
type Config struct {
	// Optional config file path (flag/env only)
	ConfigFile string
	// Optional dotenv file loaded before the environment is read
	EnvFile string

	Job     coordinator.Config `mapstructure:"job"`
	Include []string           `mapstructure:"include"`
	Exclude []string           `mapstructure:"exclude"`
	Gzip    string             `mapstructure:"gzip"`

	Source     SourceConfig      `mapstructure:"source"`
	Sink       SinkConfig        `mapstructure:"sink"`
	Log        LogConfig         `mapstructure:"log"`
	Store      StoreConfig       `mapstructure:"store"`
	Prometheus cmdmetrics.Config `mapstructure:"prometheus"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	cfg := &Config{
		Include: []string{},
		Exclude: []string{},
		Gzip:    GzipAuto,
		Sink: SinkConfig{
			Type:    "console",
			Labels:  map[string]string{},
			Console: console.Config{Stream: "stdout"},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Store:      StoreConfig{DBPath: "streamhose.db"},
		Prometheus: cmdmetrics.Config{Enable: false, Addr: ":2112"},
	}
	cfg.Job.Default()
	cfg.Sink.Retry.Default()
	return cfg
}

// flagKeys maps flag names to their nested config keys where they differ.
var flagKeys = map[string]string{
	"destination":     "job.destination",
	"flush-threshold": "job.flush-threshold",
	"max-batch-size":  "job.max-batch-size",
	"failure-policy":  "job.failure-policy",
	"chunk-size":      "job.chunk-size",
	"separator":       "job.separator",
	"concurrency":     "job.concurrency",
}

// envOnlyKeys are settings without flags that may still come from the environment
// (STREAMHOSE_SINK_TYPE, STREAMHOSE_SINK_FIREHOSE_REGION, ...).
var envOnlyKeys = []string{
	"sink.type", "sink.host",
	"sink.retry.max-attempts", "sink.retry.initial-interval", "sink.retry.max-interval",
	"sink.console.stream", "sink.file.path",
	"sink.firehose.region", "sink.firehose.endpoint", "sink.firehose.append-newline",
	"sink.clickhouse.addr", "sink.clickhouse.database", "sink.clickhouse.user", "sink.clickhouse.password",
	"sink.opensearch.url", "sink.opensearch.user", "sink.opensearch.password",
	"source.s3.region", "source.s3.endpoint",
}

// LoadFromViper binds flags to viper, reads dotenv/file/env, and populates the Config fields via mapstructure.
// Precedence: flags, then environment, then config file, then defaults.
func (c *Config) LoadFromViper(cmd *cobra.Command) error {
	if c.EnvFile != "" {
		if err := godotenv.Load(c.EnvFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("STREAMHOSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if k, ok := flagKeys[f.Name]; ok {
			key = k
		}
		bindErr = errors.Join(bindErr, v.BindPFlag(key, f))
	})
	if bindErr != nil {
		return bindErr
	}
	for _, k := range envOnlyKeys {
		if err := v.BindEnv(k); err != nil {
			return err
		}
	}
	// the delivery stream variable of the original Lambda deployment
	if err := v.BindEnv("job.destination", "STREAMHOSE_JOB_DESTINATION", "FIREHOSE_STREAM_NAME"); err != nil {
		return err
	}

	// Determine config file path: --config flag or STREAMHOSE_CONFIG env; no auto-defaults
	if c.ConfigFile == "" {
		c.ConfigFile = v.GetString("config")
	}
	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v.Unmarshal(c)
}

// SetupFlags adds the flags shared by every command as persistent flags on root.
func (c *Config) SetupFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Path to config file (yaml/json/toml)")
	f.StringVar(&c.EnvFile, "env-file", c.EnvFile, "Path to a .env file loaded into the environment")

	dc := &c.Job.Pipeline.Dispatcher
	f.StringVar(&dc.Destination, "destination", dc.Destination, "Destination passed to every sink call (stream, table or index)")
	f.IntVar(&dc.FlushThreshold, "flush-threshold", dc.FlushThreshold, "Pending records that trigger a flush")
	f.IntVar(&dc.MaxBatchSize, "max-batch-size", dc.MaxBatchSize, "Maximum records per sink call")
	f.StringVar(&dc.FailurePolicy, "failure-policy", dc.FailurePolicy, "On sink call failure: abort or continue")
	f.IntVar(&c.Job.Pipeline.ChunkSize, "chunk-size", c.Job.Pipeline.ChunkSize, "Read size in bytes")
	f.StringVar(&c.Job.Pipeline.Separator, "separator", c.Job.Pipeline.Separator, "Record separator (supports multi-byte like \"\\r\\n\" or tokens like <END>)")
	f.IntVar(&c.Job.Concurrency, "concurrency", c.Job.Concurrency, "Sources processed at once (0 = all)")

	f.StringVar(&c.Log.Level, "log.level", c.Log.Level, "Log level (debug, info, warn, error)")
	f.StringVar(&c.Log.Format, "log.format", c.Log.Format, "Log format (text or json)")
	f.StringVar(&c.Log.File, "log.file", c.Log.File, "Write logs to a rotated file instead of stderr")

	f.BoolVar(&c.Store.Enable, "store.enable", c.Store.Enable, "Record per-source outcomes in a SQLite ledger")
	f.StringVar(&c.Store.DBPath, "store.db-path", c.Store.DBPath, "Path to the delivery ledger")
	f.BoolVar(&c.Store.SkipCompleted, "store.skip-completed", c.Store.SkipCompleted, "Skip sources the ledger reports as delivered")

	// Sink options are intentionally not exposed as command-line flags.
	// Configure the backend via config file or environment variables
	// (STREAMHOSE_SINK_TYPE, STREAMHOSE_SINK_FIREHOSE_REGION, etc.).

	f.BoolVar(&c.Prometheus.Enable, "prometheus.enable", c.Prometheus.Enable, "Enable Prometheus metrics HTTP endpoint")
	f.StringVar(&c.Prometheus.Addr, "prometheus.addr", c.Prometheus.Addr, "Prometheus metrics listen address (e.g., :2112)")
}

// SetupRunFlags adds source selection flags to the run command.
func (c *Config) SetupRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&c.Include, "include", "I", c.Include, "Include patterns or directories (e.g., ./log, /var/log/*.gz)")
	cmd.Flags().StringSliceVarP(&c.Exclude, "exclude", "E", c.Exclude, "Exclude patterns (e.g., *.tmp)")
	cmd.Flags().StringVar(&c.Gzip, "gzip", c.Gzip, "Gzip detection: auto (.gz suffix), always or never")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Job.Validate(); err != nil {
		return fmt.Errorf("invalid job config: %w", err)
	}
	switch c.Gzip {
	case GzipAuto, GzipAlways, GzipNever:
	default:
		return fmt.Errorf("invalid gzip mode: %s", c.Gzip)
	}

	switch c.Sink.Type {
	case "console":
		if err := c.Sink.Console.Validate(); err != nil {
			return err
		}
	case "file":
		if err := c.Sink.File.Validate(); err != nil {
			return err
		}
	case "firehose":
		if c.Job.Pipeline.Dispatcher.MaxBatchSize > firehose.MaxRecordsPerCall {
			return fmt.Errorf("job.max-batch-size %d exceeds the firehose cap of %d",
				c.Job.Pipeline.Dispatcher.MaxBatchSize, firehose.MaxRecordsPerCall)
		}
	case "clickhouse":
		if err := c.Sink.ClickHouse.Validate(); err != nil {
			return err
		}
	case "opensearch":
		if err := c.Sink.OpenSearch.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid sink.type: %s", c.Sink.Type)
	}
	if err := c.Sink.Retry.Validate(); err != nil {
		return err
	}

	if err := validateLog(c.Log); err != nil {
		return err
	}
	if c.Store.Enable && c.Store.DBPath == "" {
		return fmt.Errorf("store.db-path must be set when store.enable is true")
	}
	return c.Prometheus.Validate()
}

func validateLog(l LogConfig) error {
	if _, err := parseLevel(l.Level); err != nil {
		return err
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	if l.File != "" && l.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max-size-mb must be > 0")
	}
	return nil
}
