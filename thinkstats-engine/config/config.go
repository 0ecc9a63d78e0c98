package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/nsfg"
)

// EnvPrefix prefixes environment overrides, e.g. THINKSTATS_DAT_FILE.
const EnvPrefix = "THINKSTATS"

// Config holds the settings shared by all commands.
// Viper uses mapstructure under the hood for unmarshaling values.
type Config struct {
	DctFile         string `mapstructure:"dct_file"`
	DatFile         string `mapstructure:"dat_file"`
	NRows           int    `mapstructure:"nrows"`
	LogLevel        string `mapstructure:"log_level"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// Load reads configuration into a new Config. path names an explicit config
// file; when empty, thinkstats.{yaml,json,toml} is looked up in . and
// ./configs and may be absent. flags, when non-nil, override everything
// else for the flags the user actually set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("thinkstats")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.NRows < 0 {
		return nil, fmt.Errorf("nrows must not be negative, got %d", cfg.NRows)
	}
	return cfg, nil
}

// flagKeys maps config keys to command-line flag names.
var flagKeys = map[string]string{
	"dct_file":         "dct",
	"dat_file":         "dat",
	"nrows":            "nrows",
	"log_level":        "log-level",
	"metrics_textfile": "metrics-textfile",
}

// setDefaults only applies when no value is provided via file, env or flag.
func setDefaults(v *viper.Viper) {
	v.SetDefault("dct_file", nsfg.DefaultDctFile)
	v.SetDefault("dat_file", nsfg.DefaultDatFile)
	v.SetDefault("nrows", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_textfile", "")
}

// FemRespOptions converts the settings into loader options.
func (c *Config) FemRespOptions() []nsfg.Option {
	return []nsfg.Option{
		nsfg.WithDctFile(c.DctFile),
		nsfg.WithDatFile(c.DatFile),
		nsfg.WithNRows(c.NRows),
	}
}
