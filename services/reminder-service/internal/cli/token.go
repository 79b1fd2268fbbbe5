package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/vasapolrittideah/reminder-app/shared/auth"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	TTL time.Duration
}

type tokenConfig struct {
	Audience      string `env:"JWT_AUDIENCE"       envDefault:"reminder-app"`
	Issuer        string `env:"JWT_ISSUER"         envDefault:"reminder-app"`
	ServiceSecret string `env:"JWT_SERVICE_SECRET"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a service token for POST /v1/dispatch/run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.ParseAs[tokenConfig]()
			if err != nil {
				return fmt.Errorf("failed to parse environment variables: %w", err)
			}
			if cfg.ServiceSecret == "" {
				return errors.New("missing JWT_SERVICE_SECRET environment variable")
			}

			jwtAuth := auth.NewJWTAuthenticator(cfg.Audience, cfg.Issuer)
			token, err := jwtAuth.GenerateToken("", "dispatch", cfg.ServiceSecret, opts.TTL)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")

	return cmd
}
