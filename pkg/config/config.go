package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/lookout/pkg/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LOOKOUT_LISTEN_ADDR
const EnvPrefix = "LOOKOUT"

// Config is the server configuration
type Config struct {
	ApplicationID      string        `mapstructure:"application_id"`
	ListenAddr         string        `mapstructure:"listen_addr"`
	DataDir            string        `mapstructure:"data_dir"`
	ReadOnly           bool          `mapstructure:"read_only"`
	RateLimit          float64       `mapstructure:"rate_limit"`
	DiscardEventsAfter time.Duration `mapstructure:"discard_events_after"`
	Heartbeat          time.Duration `mapstructure:"heartbeat"`

	// Resources is an optional resource file applied at startup
	Resources string `mapstructure:"resources"`

	Nightly NightlyConfig `mapstructure:"nightly"`
	Log     LogConfig     `mapstructure:"log"`
}

// NightlyConfig selects the nightly jobs
type NightlyConfig struct {
	Restart   bool          `mapstructure:"restart"`
	Reload    bool          `mapstructure:"reload"`
	MaxJitter time.Duration `mapstructure:"max_jitter"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level string        `mapstructure:"level"`
	JSON  bool          `mapstructure:"json"`
	File  LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables a rotated log file when Path is set
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("application_id", "lookout")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("data_dir", "./lookout-data")
	v.SetDefault("read_only", false)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("discard_events_after", time.Hour)
	v.SetDefault("heartbeat", 30*time.Second)
	v.SetDefault("resources", "")

	v.SetDefault("nightly.restart", true)
	v.SetDefault("nightly.reload", true)
	v.SetDefault("nightly.max_jitter", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", log.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", log.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", log.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)
}

// Load reads the configuration. envFiles are loaded into the environment
// first (".env" when none are given, ignored if missing); then path, if set,
// is read; LOOKOUT_* variables override both.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load(".env")
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit)
	}
	if c.DiscardEventsAfter <= 0 {
		return fmt.Errorf("discard_events_after must be positive, got %s", c.DiscardEventsAfter)
	}
	switch log.Level(strings.ToLower(c.Log.Level)) {
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel:
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// LogConfig converts the log section for log.Init
func (c *Config) LogConfig() log.Config {
	lc := log.Config{
		Level:      log.ParseLevel(strings.ToLower(c.Log.Level)),
		JSONOutput: c.Log.JSON,
	}
	if c.Log.File.Path != "" {
		lc.File = &log.FileConfig{
			Path:       c.Log.File.Path,
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxBackups: c.Log.File.MaxBackups,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			Compress:   c.Log.File.Compress,
		}
	}
	return lc
}
