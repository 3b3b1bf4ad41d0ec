package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-dashboard-client/mockapi"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newMockServerCmd(flags *rootFlags) *cobra.Command {
	var addr string
	var accessTTL time.Duration
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve a local fake of the dashboard API with seeded accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.GetMockAddr()
			}
			if accessTTL == 0 {
				accessTTL = cfg.GetMockAccessTokenTTL()
			}

			api, err := mockapi.New(
				mockapi.WithAPIPrefix(cfg.GetAPIPrefix()),
				mockapi.WithSecret(cfg.GetMockSecret()),
				mockapi.WithAccessTokenTTL(accessTTL),
				mockapi.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			displayAppname(cmd, cfg.GetAppName())
			fmt.Fprintf(cmd.OutOrStdout(), "owner %s / staff %s, password %s\n\n", mockapi.OwnerEmail, mockapi.StaffEmail, mockapi.SeedPassword)
			server := &http.Server{Addr: addr, Handler: api, ReadHeaderTimeout: 10 * time.Second}
			return serveUntilDone(cmd.Context(), server, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to mock.addr)")
	cmd.Flags().DurationVar(&accessTTL, "access-ttl", 0, "access token lifetime (defaults to mock.access_token_ttl)")
	return cmd
}

// serveUntilDone runs server until ctx ends, then shuts it down gracefully
func serveUntilDone(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	errs := make(chan error, 1)
	go func() {
		errs <- listenAndServe(server, logger)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	if err := shutdown(server); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(cmd *cobra.Command, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(cmd.OutOrStdout(), myFigure.String())
}
