package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zhima-Mochi/minishop-storefront/internal/bootstrap"
	"github.com/Zhima-Mochi/minishop-storefront/internal/config"
)

func seedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Load stock levels and catalog prices from a YAML file",
		Long: `Load stock levels and catalog prices from a YAML file into Postgres.

Quantities are set, not added, so re-running the same file is safe.
For the memory store use "serve --seed" instead.

Example file:
  items:
    - product_id: tee
      variant: M
      name: Logo tee
      unit_price: 1999
      quantity: 40`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return errors.New("seed: store.driver must be postgres; use serve --seed for the memory store")
			}
			f, err := bootstrap.LoadSeed(args[0])
			if err != nil {
				return err
			}

			stores, pool, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := bootstrap.Seed(cmd.Context(), stores, f)
			if err != nil {
				return fmt.Errorf("seed: %d of %d items loaded: %w", n, len(f.Items), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d items\n", n)
			return nil
		},
	}
}
