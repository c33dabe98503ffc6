package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zhima-Mochi/minishop-storefront/internal/config"
)

var Version = "dev"

type rootFlags struct {
	configPath string
	envFile    string
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront core: stock ledger, orders, payments, returns and audit",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before STOREFRONT_* overrides")

	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(migrateCmd(flags))
	rootCmd.AddCommand(seedCmd(flags))
	rootCmd.AddCommand(tokenCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (f *rootFlags) load() (config.Config, error) {
	return config.Load(f.configPath, f.envFile)
}
