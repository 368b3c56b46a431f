package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bellhop-dev/bellhop/internal/auth"
)

// tokenCmd mints a development token with the hub's signing secret.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for local development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				secret = os.Getenv("AUTH_JWT_SECRET")
			}
			if secret == "" {
				return errors.New("no signing secret: set --secret or AUTH_JWT_SECRET")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := auth.NewJWTValidator(secret).Sign(args[0], ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().String("secret", "", "JWT signing secret (defaults to AUTH_JWT_SECRET)")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	return cmd
}
