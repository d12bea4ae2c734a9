// Package config loads process configuration from defaults, an optional
// YAML file and SFTPGATE_* environment variables, in ascending precedence.
package config

import (
	"strings"

	"sftpgate/internal/common/validators"

	"github.com/go-faster/errors"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP  HTTPConfig  `mapstructure:"http"`
	SFTP  SFTPConfig  `mapstructure:"sftp"`
	Store StoreConfig `mapstructure:"store"`
	Debug bool        `mapstructure:"debug"`
}

// HTTPConfig configures the management API listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// SFTPConfig configures the toggled SFTP server. Host and Port are where
// it binds when enabled, RootDir is the exposed subtree.
type SFTPConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	RootDir string `mapstructure:"root_dir"`
}

// StoreConfig configures the sqlite event store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// Load builds the configuration. An empty path skips the file layer and
// uses defaults plus environment only; a non-empty path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http.addr", "0.0.0.0:3000")
	v.SetDefault("sftp.host", "0.0.0.0")
	v.SetDefault("sftp.port", 2222)
	v.SetDefault("sftp.root_dir", "./sftp_root_dir")
	v.SetDefault("store.path", "sftpgate.db")
	v.SetDefault("debug", false)

	// SFTPGATE_SFTP_PORT overrides sftp.port and so on
	v.SetEnvPrefix("SFTPGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if !validators.ValidateAddr(c.HTTP.Addr) {
		return errors.Errorf("invalid http address: %s", c.HTTP.Addr)
	}
	if !validators.ValidateHost(c.SFTP.Host) {
		return errors.Errorf("invalid sftp host: %s", c.SFTP.Host)
	}
	if !validators.ValidatePort(c.SFTP.Port) {
		return errors.Errorf("invalid sftp port: %d", c.SFTP.Port)
	}
	if c.SFTP.RootDir == "" {
		return errors.New("sftp root directory must not be empty")
	}
	if c.Store.Path == "" {
		return errors.New("event store path must not be empty")
	}
	return nil
}
