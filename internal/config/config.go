// Package config loads controlmaps settings from a YAML file, defaults and
// CONTROLMAPS_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ayusman/controlmaps/internal/capability"
	"github.com/ayusman/controlmaps/internal/depth"
	"github.com/ayusman/controlmaps/internal/maps"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONTROLMAPS"

type Config struct {
	Maps         string          `mapstructure:"maps"`
	MaxDimension int             `mapstructure:"max_dimension"`
	Log          LogConfig       `mapstructure:"log"`
	Depth        DepthConfig     `mapstructure:"depth"`
	Landmarks    LandmarksConfig `mapstructure:"landmarks"`
	History      HistoryConfig   `mapstructure:"history"`
	Server       ServerConfig    `mapstructure:"server"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

type DepthConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	ModelSize   string   `mapstructure:"model_size"`
	Checkpoints []string `mapstructure:"checkpoints"`
	Devices     []string `mapstructure:"devices"`
}

type LandmarksConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Script  string `mapstructure:"script"`
	Python  string `mapstructure:"python"`
}

type HistoryConfig struct {
	// Path of the sqlite database. Empty disables run history.
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	OutputRoot string `mapstructure:"output_root"`
}

// Load reads configuration. An empty path uses defaults and environment
// variables only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration without file or environment input.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("maps", maps.FormatKinds(maps.DefaultKinds))
	v.SetDefault("max_dimension", 1024)

	v.SetDefault("log.mode", "debug")

	v.SetDefault("depth.enabled", true)
	v.SetDefault("depth.model_size", depth.SizeSmall)
	v.SetDefault("depth.checkpoints", []string{})
	v.SetDefault("depth.devices", []string{string(capability.DeviceCUDA), string(capability.DeviceOpenCL), string(capability.DeviceCPU)})

	v.SetDefault("landmarks.enabled", true)
	v.SetDefault("landmarks.script", "")
	v.SetDefault("landmarks.python", "")

	v.SetDefault("history.path", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.output_root", "./runs")
}

// Kinds returns the configured default map request.
func (c *Config) Kinds() []maps.Kind {
	return maps.ParseKinds(c.Maps)
}

// Checkpoints returns the configured checkpoint candidates, or the default
// locations for the configured model size.
func (c *Config) Checkpoints() []string {
	if len(c.Depth.Checkpoints) > 0 {
		return c.Depth.Checkpoints
	}
	return depth.DefaultCheckpoints(depth.NormalizeSize(c.Depth.ModelSize))
}
