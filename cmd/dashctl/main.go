package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("dashctl command failed")
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Command line client for the restaurant dashboard API",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level from config")

	root.AddCommand(newLoginCmd(flags))
	root.AddCommand(newLogoutCmd(flags))
	root.AddCommand(newWhoamiCmd(flags))
	root.AddCommand(newRefreshCmd(flags))
	root.AddCommand(newOverviewCmd(flags))
	for _, method := range []string{"get", "post", "patch", "put", "delete"} {
		root.AddCommand(newRequestCmd(flags, method))
	}
	root.AddCommand(newMockServerCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := jsonEncoder(cmd.OutOrStdout())
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("[dashctl printJSON] %w", err)
	}
	return nil
}
