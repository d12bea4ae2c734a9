package cmd

import (
	"sftpgate/internal/common/logger"
	"sftpgate/internal/common/utils"
	"sftpgate/internal/config"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Cmd struct {
	ConfigPath string
	HttpAddr   string
	SftpHost   string
	SftpPort   int
	RootDir    string
	DbPath     string
	Debug      bool

	ApiAddr string

	cfg *config.Config
}

func (c *Cmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ConfigPath, "config", "c", "", "config file path")
	fs.StringVar(&c.HttpAddr, "http", "", "management API listen address")
	fs.StringVar(&c.SftpHost, "sftp-host", "", "SFTP bind host")
	fs.IntVar(&c.SftpPort, "sftp-port", 0, "SFTP bind port")
	fs.StringVarP(&c.RootDir, "root", "r", "", "directory served over SFTP")
	fs.StringVar(&c.DbPath, "db", "", "event store path")
	fs.BoolVar(&c.Debug, "debug", false, "enable debug logging")
}

func (c *Cmd) RegisterStatusFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ApiAddr, "api", "http://127.0.0.1:3000", "management API base URL")
}

func (c *Cmd) PreRunE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lg := logger.FromContext(ctx).Named("cmd")

	if c.Debug {
		logger.SetDebug()
	}

	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	// explicit flags win over file and environment
	fs := cmd.Flags()
	if fs.Changed("http") {
		cfg.HTTP.Addr = c.HttpAddr
	}
	if fs.Changed("sftp-host") {
		cfg.SFTP.Host = c.SftpHost
	}
	if fs.Changed("sftp-port") {
		cfg.SFTP.Port = c.SftpPort
	}
	if fs.Changed("root") {
		cfg.SFTP.RootDir = c.RootDir
	}
	if fs.Changed("db") {
		cfg.Store.Path = c.DbPath
	}
	if cfg.Debug {
		logger.SetDebug()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create served directory if it doesn't exist
	if err := utils.EnsureDir(cfg.SFTP.RootDir); err != nil {
		return errors.Wrap(err, "prepare root directory")
	}
	lg.Debugf("Serving directory %s", cfg.SFTP.RootDir)

	c.cfg = cfg
	return nil
}
