package cmd

import (
	"time"

	"sftpgate/internal/api"
	"sftpgate/internal/common/constants"
	"sftpgate/internal/common/logger"
	"sftpgate/internal/metrics"
	"sftpgate/internal/service"
	"sftpgate/internal/sshd"
	"sftpgate/internal/store"
	"sftpgate/internal/supervisor"
	"sftpgate/internal/toggle"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (c *Cmd) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lg := logger.FromContext(ctx)
	cfg := c.cfg

	// initialize event store
	st, err := store.NewStore(ctx, cfg.Store.Path)
	if err != nil {
		lg.Errorf("Failed to initialize event store: %v", err)
		return err
	}
	defer st.Close()

	state := toggle.NewState(cfg.SFTP.RootDir)
	m := metrics.New()

	// one host key per process, reused across enable cycles
	hostKey, err := sshd.NewEd25519Key()
	if err != nil {
		return errors.Wrap(err, "generate host key")
	}
	fingerprint, err := hostKey.Fingerprint()
	if err != nil {
		return errors.Wrap(err, "fingerprint host key")
	}
	lg.Infof("Host key fingerprint: %s", fingerprint)

	svc := service.NewService(ctx, state, st, m, cfg.SFTP.Host, cfg.SFTP.Port)

	sshConfig := &sshd.Config{
		Host:    cfg.SFTP.Host,
		Port:    cfg.SFTP.Port,
		Timeout: time.Duration(constants.SshIdleTimeout) * time.Second,
	}
	sup := supervisor.NewSupervisor(ctx, state, hostKey.Signer(), st, m, sshConfig)

	mgmt := api.NewAPI(ctx, svc, st, m, cfg.HTTP.Addr)

	lg.Infof("SFTP toggle target is %s:%d, root %s", cfg.SFTP.Host, cfg.SFTP.Port, cfg.SFTP.RootDir)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgmt.Start(ctx) })
	g.Go(func() error { return sup.Run(ctx) })
	return g.Wait()
}
