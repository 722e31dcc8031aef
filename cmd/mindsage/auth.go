package main

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"mindsage/internal/client"
	"mindsage/internal/identity"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in against the identity provider and keep the session in --session-file.

The password is read from the first line of standard input when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.identityURL == "" {
				return errors.New("--identity-url (or IDENTITY_URL) is required to sign in")
			}
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			observer := a.session()
			if err := observer.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}
			creds, _ := observer.Credentials()
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", creds.Email, creds.UserID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.session().SignOut()
			if a.sessionFile != "" {
				if err := identity.SaveCredentials(a.sessionFile, nil); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newAuthCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth-check",
		Short: "Ask the API who the current token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, http.MethodGet, "/api/auth-check", nil, client.RequireAuth(true))
		},
	}
}
