package main

import (
	"errors"
	"fmt"
	"time"

	authclient "github.com/cronos-bakery/authclient"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, code string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			ctx := cmd.Context()

			user, err := p.orPrompt(username, "Username")
			if err != nil {
				return err
			}
			password, err := p.secret("Password")
			if err != nil {
				return err
			}

			creds := authclient.Credentials{Username: user, Password: password, TwoFactorCode: code}
			res, err := a.client.Login(ctx, creds)
			if errors.Is(err, authclient.ErrTwoFactorRequired) {
				if res != nil && res.Message != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), res.Message)
				}
				if creds.TwoFactorCode, err = p.line("Authentication code"); err != nil {
					return err
				}
				res, err = a.client.Login(ctx, creds)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (session valid for %s)\n",
				res.User.Username, res.ExpiresIn.Round(time.Second))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVar(&code, "code", "", "one-time code, if two-factor is enabled")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !a.client.RestoreSession(ctx) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			a.client.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			u, _ := a.client.CurrentUser()
			out, err := yaml.Marshal(map[string]any{
				"id":       u.ID,
				"username": u.Username,
				"email":    u.Email,
				"roles":    u.Roles,
			})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}
			if err := a.client.Refresh(ctx); err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			if d, ok := a.client.AccessTokenExpiresIn(ctx); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Access token renewed, valid for %s\n", d.Round(time.Second))
			}
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Describe the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a.client.RestoreSession(ctx)

			st := a.client.State()
			report := map[string]any{"state": st.Kind().String()}
			if u, ok := st.User(); ok {
				report["user"] = u.Username
			}
			if d, ok := a.client.AccessTokenExpiresIn(ctx); ok {
				report["access_token_expires_in"] = d.Round(time.Second).String()
			}
			if t, ok := a.client.SessionStart(ctx); ok {
				report["session_start"] = t.Format(time.RFC3339)
			}
			if t, ok := a.client.LastActivity(ctx); ok {
				report["last_activity"] = t.Format(time.RFC3339)
			}
			report["storage"] = map[string]any{
				"medium":     a.cfg.Storage.Medium,
				"durability": string(a.cfg.Storage.Durability),
			}

			out, err := yaml.Marshal(report)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
