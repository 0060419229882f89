package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/support-desk/internal/auth"
	"github.com/suPer8Hu/support-desk/internal/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token",
		Long:  `Sign an HS256 token with JWT_SECRET for a customer or staff identity.`,
		RunE:  runToken,
	}
	cmd.Flags().String("id", "", "identity id (required)")
	cmd.Flags().String("username", "", "display name")
	cmd.Flags().String("role", string(auth.RoleCustomer), "customer or staff")
	cmd.Flags().Duration("ttl", 0, "token lifetime (default TOKEN_TTL)")
	cmd.Flags().String("secret", "", "signing secret (default JWT_SECRET)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	id, _ := cmd.Flags().GetString("id")
	username, _ := cmd.Flags().GetString("username")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	secret, _ := cmd.Flags().GetString("secret")

	if secret == "" || ttl <= 0 {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if secret == "" {
			secret = cfg.JWTSecret
		}
		if ttl <= 0 {
			ttl = cfg.TokenTTL
		}
	}

	identity := auth.Identity{
		ID:       strings.TrimSpace(id),
		Username: username,
		Role:     auth.Role(strings.ToLower(strings.TrimSpace(role))),
	}
	tok, err := auth.SignJWT(identity, secret, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	return nil
}
