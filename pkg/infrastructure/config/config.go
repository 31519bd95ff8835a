package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/vsinha/stocktransfer/pkg/domain/entities"
)

type Config struct {
	Output struct {
		Format string
	} `mapstructure:"output"`

	Staging struct {
		Mode string
	} `mapstructure:"staging"`

	Log struct {
		Level  string
		Format string
	} `mapstructure:"log"`

	Database struct {
		Path string
	} `mapstructure:"database"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

// EntryMode parses the configured staging mode.
func (c Config) EntryMode() (entities.EntryMode, error) {
	return entities.ParseEntryMode(c.Staging.Mode)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.format", "text")
	v.SetDefault("staging.mode", "combine")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("database.path", "")
	v.SetDefault("metrics.enabled", false)
}

// Load reads configuration from path, when given, with TRANSFER_* environment
// overrides (TRANSFER_STAGING_MODE, TRANSFER_DATABASE_PATH, ...).
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TRANSFER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Output.Format) {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output.Format)
	}
	if _, err := c.EntryMode(); err != nil {
		return err
	}
	return nil
}
