package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-dashboard-client/session"
	"github.com/spf13/cobra"
)

func newLoginCmd(flags *rootFlags) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			profile, err := a.client.Auth.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.logger.Info().Str("email", profile.Email).Str("role", profile.Role).Msg("signed in")
			return printJSON(cmd, profile)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()
			return a.client.Auth.Logout(cmd.Context())
		},
	}
}

func newWhoamiCmd(flags *rootFlags) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			if remote {
				profile, err := a.client.Auth.Me(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, profile)
			}
			profile, err := a.client.Auth.StoredUser(cmd.Context())
			if err != nil {
				return err
			}
			if profile == nil {
				return fmt.Errorf("not signed in")
			}
			return printJSON(cmd, profile)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the API instead of reading the stored profile")
	return cmd
}

func newRefreshCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.client.Auth.Refresh(cmd.Context()); err != nil {
				if session.IsTerminal(err) {
					return fmt.Errorf("session ended: %w", err)
				}
				return err
			}
			a.logger.Info().Msg("access token renewed")
			return nil
		},
	}
}

func newOverviewCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Print today's KPIs and upcoming bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			overview, err := a.client.Overview.Get(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, overview)
		},
	}
}

// newRequestCmd sends a raw call through the session, e.g. `dashctl patch /bookings/4/confirm`
func newRequestCmd(flags *rootFlags, method string) *cobra.Command {
	upper := strings.ToUpper(method)
	maxArgs := 1
	use := method + " <path>"
	if method != "get" && method != "delete" {
		maxArgs = 2
		use += " [json-body]"
	}
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Send an authenticated %s request relative to the API prefix", upper),
		Args:  cobra.RangeArgs(1, maxArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(upper, args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := a.session.Request(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, data)
		},
	}
}

func buildRequest(method string, args []string) (session.Request, error) {
	path := args[0]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req := session.Request{Method: method, Path: path}
	if len(args) > 1 && method != http.MethodGet && method != http.MethodDelete {
		body := json.RawMessage(args[1])
		if !json.Valid(body) {
			return req, fmt.Errorf("request body is not valid JSON")
		}
		req.Body = body
	}
	return req, nil
}
