// Package config defines how urdfcapsule is configured: a TOML file whose values fill in defaults and
// are in turn overridden by command line flags.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/a8m/envsubst"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"go.viam.com/urdfcapsule/optimizer"
	"go.viam.com/urdfcapsule/ros"
)

// DefaultConfigPath is read when no config file is named and it exists.
const DefaultConfigPath = "~/.config/urdfcapsule/config.toml"

// ErrInvalidConfig is returned for config files that cannot be parsed or hold unusable values.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full urdfcapsule configuration.
type Config struct {
	Optimizer Optimizer `toml:"optimizer"`
	Cache     Cache     `toml:"cache"`
	ROS       ROS       `toml:"ros"`
	Logging   Logging   `toml:"logging"`

	// ConfigFilePath is where the config was read from, empty when only defaults apply.
	ConfigFilePath string `toml:"-"`
}

// Optimizer configures the external capsule fitter.
type Optimizer struct {
	Executable string   `toml:"executable"`
	Timeout    Duration `toml:"timeout"`
	Retries    int      `toml:"retries"`
}

// Cache configures where capsule stores are kept.
type Cache struct {
	// Dir holds every store when set; otherwise a store sits next to its mesh.
	Dir string `toml:"dir"`
}

// ROS configures package:// resolution.
type ROS struct {
	// PackagePath lists package roots, ROS_PACKAGE_PATH when empty.
	PackagePath []string `toml:"package_path"`
}

// Logging configures log output.
type Logging struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string such as "90s" in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Optimizer: Optimizer{
			Executable: optimizer.DefaultExecutable,
			Timeout:    Duration(optimizer.DefaultTimeout),
		},
		Logging: Logging{Level: zapcore.InfoLevel.String()},
	}
}

// Read loads the config at path on top of the defaults. An empty path reads DefaultConfigPath if it
// exists and falls back to the defaults otherwise; a named file must exist. Environment variables
// such as ${HOME} in the file are substituted before parsing.
func Read(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving config path %q", path)
	}

	buf, err := envsubst.ReadFile(expanded)
	switch {
	case err == nil:
	case !explicit && os.IsNotExist(err):
		return FromReader(bytes.NewReader(nil))
	default:
		return nil, errors.Wrap(err, "open config")
	}

	cfg, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", expanded)
	}
	cfg.ConfigFilePath = expanded
	return cfg, nil
}

// FromReader loads a config from r on top of the defaults.
func FromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, err
	}
	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(c); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "parse config: %v", err)
	}
	return nil
}

// Ensure expands paths, fills in derived defaults and validates the result. It is safe to call again
// after flags have been applied.
func (c *Config) Ensure() error {
	var err error
	if c.Optimizer.Executable == "" {
		c.Optimizer.Executable = optimizer.DefaultExecutable
	}
	if c.Optimizer.Executable, err = homedir.Expand(c.Optimizer.Executable); err != nil {
		return errors.Wrap(err, "optimizer.executable")
	}
	if c.Cache.Dir, err = homedir.Expand(c.Cache.Dir); err != nil {
		return errors.Wrap(err, "cache.dir")
	}
	if len(c.ROS.PackagePath) == 0 {
		c.ROS.PackagePath = ros.RootsFromEnv()
	}
	for i, root := range c.ROS.PackagePath {
		if c.ROS.PackagePath[i], err = homedir.Expand(root); err != nil {
			return errors.Wrapf(err, "ros.package_path[%d]", i)
		}
	}

	if c.Optimizer.Timeout <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "optimizer.timeout must be positive, got %s", time.Duration(c.Optimizer.Timeout))
	}
	if c.Optimizer.Retries < 0 {
		return errors.Wrapf(ErrInvalidConfig, "optimizer.retries must not be negative, got %d", c.Optimizer.Retries)
	}
	if _, err := c.Logging.ZapLevel(); err != nil {
		return err
	}
	return nil
}

// ZapLevel returns the configured log level.
func (l Logging) ZapLevel() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return zapcore.InfoLevel, errors.Wrapf(ErrInvalidConfig, "logging.level: %v", err)
	}
	return level, nil
}

// Marshal renders the config as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
