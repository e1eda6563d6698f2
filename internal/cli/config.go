package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/ormql/internal/dialect"
	"github.com/roach88/ormql/internal/store"
)

const (
	maxWalkDepth = 25
)

// Config represents the ormql configuration from ormql.yaml.
type Config struct {
	Schema       string `mapstructure:"schema" json:"schema"`
	Dialect      string `mapstructure:"dialect" json:"dialect"`
	ScenariosDir string `mapstructure:"scenarios_dir" json:"scenarios_dir"`

	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Query    QueryConfig    `mapstructure:"query" json:"query"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" json:"dsn,omitempty"`
	Path   string `mapstructure:"path" json:"path"`
}

// QueryConfig holds translation settings.
type QueryConfig struct {
	// InListLimit overrides the dialect's IN-list slice size when positive.
	InListLimit int `mapstructure:"in_list_limit" json:"in_list_limit"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ORMQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

// DefaultConfig returns the configuration used when no file or
// environment sets anything.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schema", "schema.yaml")
	v.SetDefault("dialect", dialect.SQLite)
	v.SetDefault("scenarios_dir", "scenarios")

	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.path", "ormql.db")

	v.SetDefault("query.in_list_limit", 0)
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for ormql.yaml or ormql.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"ormql.yaml", "ormql.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// DSN returns the database connection string.
// If database.dsn is set, it's returned directly. SQLite falls back to
// database.path.
func (c *Config) DSN() (string, error) {
	if c.Database.DSN != "" {
		return c.Database.DSN, nil
	}
	if c.Database.Driver == store.DriverSQLite && c.Database.Path != "" {
		return c.Database.Path, nil
	}
	return "", fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
}

// LookupDialect returns the named dialect, or the configured one when name
// is empty, with the configured IN-list limit applied.
func (c *Config) LookupDialect(name string) (*dialect.Dialect, error) {
	if name == "" {
		name = c.Dialect
	}
	d, err := dialect.Lookup(name)
	if err != nil {
		return nil, err
	}
	if c.Query.InListLimit > 0 {
		d = d.WithInListLimit(c.Query.InListLimit)
	}
	return d, nil
}
