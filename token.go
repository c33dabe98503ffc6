package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/access"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/auth"
)

// tokenCmd issues a bearer token signed with the configured secret, for local testing.
func tokenCmd(flags *rootFlags) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue a signed bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			r, err := access.ParseRole(role)
			if err != nil {
				return err
			}
			stores, pool, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}
			authn, err := auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, stores.Scopes)
			if err != nil {
				return err
			}
			tok, err := authn.Issue(args[0], r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(access.RoleCustomer), "customer, staff or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
