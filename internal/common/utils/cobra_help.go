package utils

import (
	"sftpgate/internal/common/pprint"

	"github.com/spf13/cobra"
)

// CobraHelp renders command help in the pprint palette. Installed with
// SetHelpFunc on the root command and inherited by subcommands.
func CobraHelp(cmd *cobra.Command, args []string) {
	cmd.Println("USAGE:")
	cmd.Printf("  %s\n", cmd.UseLine())
	cmd.Println()

	if cmd.HasExample() {
		cmd.Println("EXAMPLE:")
		cmd.Printf("  %s\n", cmd.Example)
		cmd.Println()
	}

	if cmd.HasAvailableSubCommands() {
		maxNameLen := 0
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() && len(c.Name()) > maxNameLen {
				maxNameLen = len(c.Name())
			}
		}

		cmd.Println("COMMANDS:")
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				// pad before coloring, escape codes break %-*s widths
				cmd.Printf("  %s    %s\n", pprint.InfoColor.Sprintf("%-*s", maxNameLen, c.Name()), c.Short)
			}
		}
		cmd.Println()
	}

	if cmd.HasAvailableFlags() {
		cmd.Println("FLAGS:")
		cmd.Println(cmd.Flags().FlagUsages())
	}

	cmd.Println("Use '-h / --help' for more information about a command")
}
