package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roadgrid/network-registry/internal/db"
	"github.com/roadgrid/network-registry/pkg/apikey"
)

// newAPIKeyCmd administers tenants and API keys directly against the
// database, for bootstrapping before any key exists.
func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Administer tenants and API keys (direct database access)",
	}
	cmd.AddCommand(newAPIKeyCreateCmd())
	return cmd
}

func newAPIKeyCreateCmd() *cobra.Command {
	var tenantName, dbType, dbDSN string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant (if needed) and issue an API key for it",
		Long: `Create issues a new API key for the named tenant, creating the tenant on
first use. Only the key's hash is stored; the plaintext token is printed
once and cannot be recovered later.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbDSN == "" {
				dbDSN = os.Getenv("DATABASE_DSN")
			}
			if dbType == "" {
				dbType = os.Getenv("DATABASE_TYPE")
				if dbType == "" {
					dbType = db.TypePostgres
				}
			}

			quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			gormDB, err := db.Connect(dbType, dbDSN, quiet)
			if err != nil {
				return err
			}

			store := apikey.NewStore(gormDB)
			if err := store.AutoMigrate(); err != nil {
				return err
			}

			tenant, err := store.EnsureTenant(tenantName)
			if err != nil {
				return err
			}
			token, err := store.IssueKey(tenant.ID)
			if err != nil {
				return err
			}

			fmt.Printf("tenant: %s (%s)\n", tenant.Name, tenant.ID)
			fmt.Printf("api key: %s\n", token)
			fmt.Println("store this key now; it is not recoverable")
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant name (required)")
	cmd.Flags().StringVar(&dbType, "db-type", "", "Database type (postgres or sqlite)")
	cmd.Flags().StringVar(&dbDSN, "db-dsn", "", "Database connection string (defaults to DATABASE_DSN)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
