package cmd

import (
	"context"
	"fmt"
	"log"

	"tablebook-backend/config"
	"tablebook-backend/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(); err != nil {
				return err
			}

			ctx := context.Background()
			conn, err := database.Connect(ctx)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Close()

			if err := conn.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}
			if err := database.Migrate(conn.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := database.CreateDefaultAdmin(conn.DB); err != nil {
				log.Printf("Warning: Could not create default admin: %v", err)
			}
			if seed {
				if err := database.SeedCatalog(conn.DB); err != nil {
					return fmt.Errorf("seed: %w", err)
				}
			}

			log.Println("Migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "insert the starter catalog when the restaurants table is empty")
	return cmd
}
