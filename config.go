package bookkeeper

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix prefixes environment overrides, e.g. BOOKKEEPER_DSN.
const envPrefix = "BOOKKEEPER"

// DefaultTableName is the logical migrations table name used when none is
// configured.
const DefaultTableName = "migrations"

// Config holds the settings needed to bootstrap the bookkeeping tables.
type Config struct {
	// Driver is the database/sql driver name: sqlite, pgx, postgres or mysql.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	TableName  string `mapstructure:"table_name"`
	SchemaName string `mapstructure:"schema_name"`

	// LoadExtensions are stripped from legacy migration names.
	LoadExtensions []string `mapstructure:"load_extensions"`
	AdvisoryLock   bool     `mapstructure:"advisory_lock"`
}

// LoadConfig reads configuration from the optional file at path, then
// applies BOOKKEEPER_* environment overrides.
//
// Parameters:
//   - path: A config file in any format viper reads, or empty.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: An error if reading, decoding or validation fails.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "")
	v.SetDefault("table_name", DefaultTableName)
	v.SetDefault("schema_name", "")
	v.SetDefault("load_extensions", DefaultLoadExtensions)
	v.SetDefault("advisory_lock", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to bootstrap.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return ErrMissingDSN
	}
	if c.TableName == "" {
		return ErrEmptyTableName
	}
	if _, err := DialectForDriver(c.Driver); err != nil {
		return err
	}
	return nil
}

// Bootstrapper returns a Bootstrapper configured from c. A nil
// LoadExtensions means DefaultLoadExtensions; an empty, non-nil list
// disables name normalization.
//
// Parameters:
//   - d: The dialect of the opened database.
//
// Returns:
//   - *Bootstrapper: A new Bootstrapper.
func (c *Config) Bootstrapper(d Dialect) *Bootstrapper {
	exts := c.LoadExtensions
	if exts == nil {
		exts = DefaultLoadExtensions
	}
	return NewBootstrapper(d).
		WithNormalizer(NewExtensionNormalizer(exts)).
		WithAdvisoryLock(c.AdvisoryLock)
}
