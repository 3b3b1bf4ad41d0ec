package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func newVersionCmd() *cobra.Command {
	var banner bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if banner {
				displayAppname(cmd, "dashctl")
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "dashctl %s\n", version)
			return err
		},
	}
	cmd.Flags().BoolVar(&banner, "banner", false, "print the ASCII banner first")
	return cmd
}
