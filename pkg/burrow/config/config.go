package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application. Values are read by
// viper from a config file or environment variables and injected into
// constructors; nothing reads the process environment at call time.
type Config struct {
	Port    string `mapstructure:"PORT"`
	DBPath  string `mapstructure:"DB_PATH"`
	BaseURL string `mapstructure:"BASE_URL"`

	// Single-file snapshot service. Archiving is disabled entirely when the
	// URL is empty.
	SinglefileURL     string        `mapstructure:"SINGLEFILE_URL"`
	SinglefileTimeout time.Duration `mapstructure:"SINGLEFILE_TIMEOUT"`

	// When true, an archive is created for every newly saved link as a
	// best-effort background step.
	AutoArchive bool `mapstructure:"AUTO_ARCHIVE"`

	FetchTimeout time.Duration `mapstructure:"FETCH_TIMEOUT"`
}

// Load reads configuration from a config file in path (optional) or from
// environment variables prefixed with BURROW_.
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("BURROW")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DB_PATH", "burrow.db")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("SINGLEFILE_URL", "")
	viper.SetDefault("SINGLEFILE_TIMEOUT", 30*time.Second)
	viper.SetDefault("AUTO_ARCHIVE", false)
	viper.SetDefault("FETCH_TIMEOUT", 30*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; environment variables and defaults apply.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}

	return config, nil
}

// ArchiveEnabled reports whether a snapshot service endpoint is configured.
func (c Config) ArchiveEnabled() bool {
	return c.SinglefileURL != ""
}
