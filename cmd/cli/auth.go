package main

import (
	"fmt"

	"coin-tracker/internal/auth"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Run the browser consent flow and store the user token",
	Long: `auth obtains a user token for the configured scopes using the client
secrets file, and stores it in the token file for later runs. An existing
token is refreshed if possible instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		p := auth.NewStoredTokenProvider(cfg.Auth.TokenFile, cfg.Auth.ClientSecretsFile, cfg.Auth.Scopes, logger)
		p.Authorizer = &auth.LoopbackAuthorizer{Out: cmd.ErrOrStderr()}
		creds, err := p.Credentials(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "token stored in %s (valid: %t)\n", cfg.Auth.TokenFile, creds.Valid())
		return nil
	},
}
