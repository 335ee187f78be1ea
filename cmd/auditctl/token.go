package main

import (
	"fmt"
	"time"

	httpadapter "github.com/auditflow/auditflow/internal/adapter/http"
	"github.com/auditflow/auditflow/internal/config"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the configured JWT secret",
		Long: `Mint a bearer token for local use. The secret is read from JWT_SECRET
(or .env) exactly as the server reads it; the subject becomes the acting user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return codeError(2, "--subject is required")
			}
			if ttl <= 0 {
				return codeError(2, "--ttl must be positive, got %s", ttl)
			}
			cfg, err := config.Load()
			if err != nil {
				return codeError(2, "loading configuration: %s", err)
			}
			token, err := httpadapter.NewTokenVerifier(cfg.Security.JWTSecret).IssueToken(subject, ttl)
			if err != nil {
				return codeError(1, "signing token: %s", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "user id carried as the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
