package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	authclient "github.com/cronos-bakery/authclient"
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "GET an API path with the session and print the JSON answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}

			var out json.RawMessage
			if err := a.client.DoJSON(ctx, http.MethodGet, args[0], nil, &out); err != nil {
				return err
			}
			if len(out) == 0 {
				return nil
			}
			pretty, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var req authclient.RegisterRequest
	var roles string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			var err error
			if req.Username, err = p.orPrompt(req.Username, "Username"); err != nil {
				return err
			}
			if req.Email, err = p.orPrompt(req.Email, "Email"); err != nil {
				return err
			}
			if req.Password, err = p.secret("Password"); err != nil {
				return err
			}
			if roles != "" {
				req.Roles = strings.Split(roles, ",")
			}

			acc, err := a.client.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %s (id %d)\n", acc.Username, acc.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Username, "username", "u", "", "account name")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.FirstName, "first-name", "", "first name")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.StringVar(&req.PhoneNumber, "phone", "", "phone number")
	f.StringVar(&roles, "roles", "", "comma separated roles")
	return cmd
}

func newForgotPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Request a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.ForgotPassword(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the address is known, a reset link is on its way.")
			return nil
		},
	}
}

func newResetPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <token>",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			password, err := p.secret("New password")
			if err != nil {
				return err
			}
			if err := a.client.ResetPassword(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
			return nil
		},
	}
}
