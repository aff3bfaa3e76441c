package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shaiso/cronfleet/internal/repo"
)

func main() {
	var dsn string

	rootCmd := &cobra.Command{
		Use:           "cronfleet-migrate",
		Short:         "Manage the cronfleet database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env не обязателен
			_ = godotenv.Load()
			if dsn == "" {
				dsn = os.Getenv("DB_URL")
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&dsn, "db", "", "Database connection string (default: $DB_URL or local dev DSN)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := repo.MigrateUp(dsn); err != nil {
					return err
				}
				fmt.Println("Migrations applied successfully")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := repo.MigrateDown(dsn); err != nil {
					return err
				}
				fmt.Println("Migrations rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				v, dirty, err := repo.MigrationVersion(dsn)
				if err != nil {
					return err
				}
				if v == 0 {
					fmt.Println("No migrations applied")
					return nil
				}
				fmt.Printf("Version: %d (dirty: %t)\n", v, dirty)
				return nil
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
