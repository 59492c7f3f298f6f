package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the linkauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "linkauth",
		Short:         "Passwordless and password authentication from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `linkauth runs the goLinkAuth engine against Redis and a credential store.
Magic links and one-time codes are delivered through the configured mail provider;
the default "log" provider prints them to stderr.`,
	}

	registerFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSignUpCmd())
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewSendOTPCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewAuthCmd())
	cmd.AddCommand(NewCompleteCmd())

	return cmd
}
