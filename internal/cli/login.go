package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskfuse/internal/api"
)

func newLoginCommand(f *flags) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(f)
			stderrLogger(cfg)

			if email == "" {
				email = cfg.Email
			}
			if password == "" {
				password = cfg.Password
			}
			if email == "" || password == "" {
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().Title("Email").Value(&email).Validate(requireText("email")),
						huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password).Validate(requireText("password")),
					),
				)
				if err := form.RunWithContext(cmd.Context()); err != nil {
					return fmt.Errorf("login form: %w", err)
				}
			}

			tok, err := api.Login(cmd.Context(), cfg.BaseURL, strings.TrimSpace(email), password)
			if errors.Is(err, api.ErrUnauthorized) {
				return errors.New("login failed: wrong email or password, or the account is blocked")
			}
			if err != nil {
				return err
			}
			creds := api.Credentials{BaseURL: cfg.BaseURL, Email: strings.TrimSpace(email), Token: tok}
			if err := api.SaveCredentials(cfg.TokenFile, creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (token saved to %s)\n", creds.Email, cfg.TokenFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func requireText(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
