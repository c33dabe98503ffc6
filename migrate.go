package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zhima-Mochi/minishop-storefront/internal/config"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/postgres"
)

func migrateCmd(flags *rootFlags) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return errors.New("migrate: store.driver must be postgres")
			}

			if down {
				if err := postgres.MigrateDown(cfg.Store.DSN); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back all migrations")
				return nil
			}
			changed, err := postgres.Migrate(cfg.Store.DSN)
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration instead")
	return cmd
}
