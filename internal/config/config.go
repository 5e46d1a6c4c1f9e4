// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const FileName = "config.json"

type Config struct {
	Server struct {
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		Compression struct {
			MinSize int `mapstructure:"min_size"` // bytes; smaller responses are sent raw
			Level   int `mapstructure:"level"`    // 1=fastest, 4=best
		} `mapstructure:"compression"`
	} `mapstructure:"server"`

	Storage struct {
		CacheSize int `mapstructure:"cache_size"`
	} `mapstructure:"storage"`

	DefaultBranch string `mapstructure:"default_branch"`
	LogLevel      string `mapstructure:"log_level"` // debug, info, warn, error
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, FileName))
	v.SetConfigType("json")

	v.SetEnvPrefix("TWIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.compression.min_size", 1024)
	v.SetDefault("server.compression.level", 2)
	v.SetDefault("storage.cache_size", 1000)
	v.SetDefault("default_branch", "master")
	v.SetDefault("log_level", "warn")
	return v
}

// Load reads dir/config.json, falling back to defaults when the file is
// missing. TWIG_* environment variables override both.
func Load(dir string) (*Config, error) {
	v := newViper(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// WriteDefaults writes a config file holding every default into dir.
func WriteDefaults(dir string) error {
	v := newViper(dir)
	if err := v.WriteConfigAs(filepath.Join(dir, FileName)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
