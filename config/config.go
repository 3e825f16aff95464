// Package config contains go-peerdid configuration definitions.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/spacemeshos/go-peerdid/repo"
	"github.com/spacemeshos/go-peerdid/syncsim"
)

const (
	defaultConfigFileName = "peerdid.toml"
	defaultDataDirName    = "peerdid"
)

// Config defines the top level configuration of the peerdid tool.
type Config struct {
	BaseConfig `mapstructure:"main"`
	Repo       RepoConfig     `mapstructure:"repo"`
	Sim        syncsim.Config `mapstructure:"sim"`
	LOGGING    LoggerConfig   `mapstructure:"logging"`
}

// BaseConfig holds settings shared by all commands.
type BaseConfig struct {
	// DataDir is the repository container.
	DataDir string `mapstructure:"data-folder"`

	ConfigFile string `mapstructure:"config"`

	CollectMetrics    bool          `mapstructure:"metrics"`
	MetricsAddr       string        `mapstructure:"metrics-addr"`
	MetricsPush       string        `mapstructure:"metrics-push"`
	MetricsPushPeriod time.Duration `mapstructure:"metrics-push-period"`
}

// RepoConfig configures the document repository.
type RepoConfig struct {
	Backend         repo.Backend `mapstructure:"backend"`
	CacheSize       int          `mapstructure:"cache-size"`
	LatencyMetering bool         `mapstructure:"latency-metering"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseConfig: defaultBaseConfig(),
		Repo: RepoConfig{
			Backend:   repo.BackendFiles,
			CacheSize: 256,
		},
		Sim:     syncsim.DefaultConfig(),
		LOGGING: defaultLoggingConfig(),
	}
}

func defaultBaseConfig() BaseConfig {
	dataDir := defaultDataDirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, "."+defaultDataDirName)
	}
	return BaseConfig{
		DataDir:           dataDir,
		MetricsAddr:       "127.0.0.1:1010",
		MetricsPushPeriod: time.Minute,
	}
}

// LoadConfig reads the config file into vip. A missing default config file
// is not an error, an explicitly named one is.
func LoadConfig(fileLocation string, vip *viper.Viper) error {
	explicit := fileLocation != ""
	if !explicit {
		fileLocation = defaultConfigFileName
	}
	vip.SetConfigFile(fileLocation)
	if err := vip.ReadInConfig(); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %v: %w", fileLocation, err)
	}
	return nil
}

// Load overrides cfg with the values of the config file at path.
func Load(cfg *Config, path string) error {
	v := viper.New()
	if err := LoadConfig(path, v); err != nil {
		return err
	}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(hook),
		WithIgnoreUntagged(),
		WithErrorUnused(),
	}
	if err := v.Unmarshal(cfg, opts...); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func WithIgnoreUntagged() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.IgnoreUntaggedFields = true
	}
}

func WithErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}
