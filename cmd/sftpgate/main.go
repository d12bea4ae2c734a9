package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sftpgate/cmd/sftpgate/internal/cmd"
	"sftpgate/internal/common/constants"
	"sftpgate/internal/common/logger"
	"sftpgate/internal/common/utils"

	"github.com/spf13/cobra"
)

func main() {
	// Initialize context and logger
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg, err := logger.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	ctx = logger.WithLogger(ctx, lg)

	c := &cmd.Cmd{}

	appRoot := &cobra.Command{
		Use:     "sftpgate [command]",
		Short:   "Toggleable SFTP server with a management API",
		Version: constants.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	appRoot.SetHelpFunc(utils.CobraHelp)

	appRun := &cobra.Command{
		Use:     "run [flags]",
		Short:   "Run the management API and the SFTP supervisor",
		PreRunE: c.PreRunE,
		RunE:    c.Run,
	}
	c.RegisterFlags(appRun.Flags())
	appRoot.AddCommand(appRun)

	appStatus := &cobra.Command{
		Use:   "status [flags]",
		Short: "Query a running instance over its management API",
		RunE:  c.Status,
	}
	c.RegisterStatusFlags(appStatus.Flags())
	appRoot.AddCommand(appStatus)

	if err := appRoot.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
