package commands

import (
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "credctl",
		Short:         "Operator tooling for the credential registry",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(tokenCmd(), hashCmd())
	return root
}
