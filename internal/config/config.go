package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"settle/internal/backend"
	"settle/internal/debouncer"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	OngoingInterval     time.Duration `mapstructure:"ongoing_interval"`
	FileIDCache         bool          `mapstructure:"file_id_cache"`
	Backend             string        `mapstructure:"backend"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	PollCompareContents bool          `mapstructure:"poll_compare_contents"`
	DrainOnStop         bool          `mapstructure:"drain_on_stop"`
	DaemonPort          int           `mapstructure:"daemon_port"`
	BufferSize          int           `mapstructure:"buffer_size"`
	IgnoreList          []string      `mapstructure:"ignore_list"`
	DBPath              string        `mapstructure:"db_path"`
	HistoryRetention    time.Duration `mapstructure:"history_retention"`
	LogFile             string        `mapstructure:"log_file"`
}

var Default = Config{
	Timeout:          debouncer.DefaultTimeout,
	OngoingInterval:  debouncer.DefaultTimeout,
	FileIDCache:      true,
	Backend:          string(backend.KindFsnotify),
	PollInterval:     2 * time.Second,
	DaemonPort:       9101,
	BufferSize:       debouncer.DefaultBufferSize,
	IgnoreList:       []string{".git", ".DS_Store", "*.tmp", "*.swp"},
	DBPath:           "settle.db",
	HistoryRetention: 7 * 24 * time.Hour,
}

// Dir returns the directory holding the config file, the database and the
// log file.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".settle"), nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	cfg, err := load(v)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(configDir, cfg.DBPath)
	}
	return cfg, nil
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("timeout", Default.Timeout)
	v.SetDefault("tick_interval", Default.TickInterval)
	v.SetDefault("ongoing_interval", Default.OngoingInterval)
	v.SetDefault("file_id_cache", Default.FileIDCache)
	v.SetDefault("backend", Default.Backend)
	v.SetDefault("poll_interval", Default.PollInterval)
	v.SetDefault("poll_compare_contents", Default.PollCompareContents)
	v.SetDefault("drain_on_stop", Default.DrainOnStop)
	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("buffer_size", Default.BufferSize)
	v.SetDefault("ignore_list", Default.IgnoreList)
	v.SetDefault("db_path", Default.DBPath)
	v.SetDefault("history_retention", Default.HistoryRetention)
	v.SetDefault("log_file", Default.LogFile)

	v.SetEnvPrefix("SETTLE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// ongoing_interval follows timeout unless set
	if !v.InConfig("ongoing_interval") {
		if _, ok := os.LookupEnv("SETTLE_ONGOING_INTERVAL"); !ok {
			cfg.OngoingInterval = cfg.Timeout
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.HistoryRetention < 0 {
		return fmt.Errorf("history_retention must not be negative, got %s", c.HistoryRetention)
	}
	if c.TickInterval > c.Timeout {
		return fmt.Errorf("%w: tick_interval %s, timeout %s", debouncer.ErrInvalidTickInterval, c.TickInterval, c.Timeout)
	}

	for _, k := range backend.Kinds() {
		if backend.Kind(c.Backend) == k {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", backend.ErrUnknownBackend, c.Backend)
}

func (c *Config) DebouncerOptions() []debouncer.Option {
	opts := []debouncer.Option{
		debouncer.WithTimeout(c.Timeout),
		debouncer.WithTickInterval(c.TickInterval),
		debouncer.WithOngoingInterval(c.OngoingInterval),
		debouncer.WithFileIDCache(c.FileIDCache),
		debouncer.WithBufferSize(c.BufferSize),
	}
	if c.DrainOnStop {
		opts = append(opts, debouncer.WithDrainOnStop())
	}
	return opts
}

func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		BufferSize:      c.BufferSize,
		PollInterval:    c.PollInterval,
		CompareContents: c.PollCompareContents,
	}
}
