package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/etotom/safarov-shop/internal/config"
	"github.com/etotom/safarov-shop/internal/database"
	"github.com/etotom/safarov-shop/internal/logger"
	"github.com/etotom/safarov-shop/internal/seed"
	"github.com/etotom/safarov-shop/internal/store"
)

// shopctl migrate [up|down]
var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the postgres schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Store.Backend != config.BackendPostgres {
			return fmt.Errorf("migrate needs STORE_BACKEND=postgres, got %q", cfg.Store.Backend)
		}

		db, err := database.NewConnection(cmd.Context(), &cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := database.Migrate(cmd.Context(), db, direction)
		if err != nil {
			return err
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations %s complete\n", direction)
		return nil
	},
}

// shopctl seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo accounts, categories and products",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.New(cfg.App.Env)

		backend, err := database.OpenBackend(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		st := store.New(backend, store.Options{Currency: cfg.Payment.Currency, Logger: log})
		defer st.Close()

		sum, err := seed.Run(cmd.Context(), st, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d categories, %d products\n", sum.Users, sum.Categories, sum.Products)
		return nil
	},
}
