package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds application-wide configuration
type Config struct {
	REST    RESTConfig    `mapstructure:"rest"`
	History HistoryConfig `mapstructure:"history"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type RESTConfig struct {
	PG         PGConfig         `mapstructure:"pg"`
	ListenAddr string           `mapstructure:"listenAddr"`
	BaseURL    string           `mapstructure:"baseURL"`
	Schema     string           `mapstructure:"schema"`
	Pagination PaginationConfig `mapstructure:"pagination"`
}

type PGConfig struct {
	ConnString string `mapstructure:"connString"`
}

type PaginationConfig struct {
	DefaultLimit int `mapstructure:"defaultLimit"`
	MaxLimit     int `mapstructure:"maxLimit"`
}

// HistoryConfig declares tracked entities and where change records go.
type HistoryConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Entities []EntityConfig `mapstructure:"entities"`
	Sinks    []SinkConfig   `mapstructure:"sinks"`
}

type EntityConfig struct {
	Name    string   `mapstructure:"name"`
	Base    string   `mapstructure:"base"`
	PKField string   `mapstructure:"pkField"`
	History *bool    `mapstructure:"history"`
	M2M     []string `mapstructure:"m2m"`
}

// SinkConfig selects a change sink by kind (log, postgres, nats); Options
// are decoded by the sink itself.
type SinkConfig struct {
	Kind    string         `mapstructure:"kind"`
	Options map[string]any `mapstructure:"options"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

func DefaultRESTConfig() RESTConfig {
	return RESTConfig{
		ListenAddr: ":8080",
		Schema:     "public",
		Pagination: PaginationConfig{
			DefaultLimit: 20,
			MaxLimit:     1000,
		},
	}
}

// Load reads config from file or environment
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pgbind")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PGBIND")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		fmt.Println("Using config file:", v.ConfigFileUsed())
	}

	cfg := Config{REST: DefaultRESTConfig()}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
