package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Connection is a saved database connection profile.
type Connection struct {
	Name     string `mapstructure:"name"`
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// URL builds the canonical connection URL for this profile.
func (c Connection) URL() string {
	return BuildURL(c.Driver, c.Database, c.User, c.Password, c.Host, c.Port)
}

// Config holds all connection profiles.
type Config struct {
	Connections []Connection `mapstructure:"connections"`
	Default     string       `mapstructure:"default"`
}

// Load reads connection profiles from a config file (YAML, TOML or JSON,
// decided by extension). A .env file in the working directory is loaded
// first so profile fields may reference values exported there.
func Load(path string) (*Config, error) {
	godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Resolve returns the named profile, or the default profile when name is
// empty.
func (cfg *Config) Resolve(name string) (Connection, error) {
	if name == "" {
		name = cfg.Default
	}
	for _, c := range cfg.Connections {
		if c.Name == name {
			return c, nil
		}
	}
	return Connection{}, fmt.Errorf("no connection profile named %q", name)
}

// URLFromEnv returns the connection URL from DBMAN_URL or DATABASE_URL,
// preferring the former. Empty when neither is set.
func URLFromEnv() string {
	godotenv.Load()
	if url := os.Getenv("DBMAN_URL"); url != "" {
		return url
	}
	return os.Getenv("DATABASE_URL")
}
