package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/ledgersync/internal/infra/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Manage the PostgreSQL schema",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "version"},
	Run:       runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}

	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("database.url is required for migrations")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	switch action {
	case "up":
		err = db.Migrate(ctx)
	case "down":
		err = db.MigrateDown(ctx)
	case "version":
		var v int64
		v, err = db.MigrationVersion(ctx)
		if err == nil {
			fmt.Printf("Schema version %d\n", v)
		}
	default:
		err = fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		slog.Error("Migration failed", "action", action, "error", err)
		os.Exit(1)
	}
}
