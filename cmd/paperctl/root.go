package main

import (
	"database/sql"
	"fmt"
	"io"

	"paperlib-sync-server/internal/config"
	"paperlib-sync-server/internal/database"
	"paperlib-sync-server/internal/repository"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/pkg/logger"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	DBPath string
	cfg    *config.Config
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "paperctl",
		Short:         "Administer a paper library sync server",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if opts.DBPath == "" {
				opts.DBPath = cfg.Database.Path
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (default $DB_PATH)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewWipeCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) openDB() (*sql.DB, error) {
	dbOpts := database.DefaultOptions(o.DBPath)
	if o.cfg != nil {
		dbOpts.BusyTimeout = o.cfg.Database.BusyTimeout
	}
	return database.Open(dbOpts)
}

// syncService opens the database and returns a service with no notifier
// or event mirror attached. The caller closes the returned db.
func (o *RootOptions) syncService() (*service.SyncService, *sql.DB, error) {
	db, err := o.openDB()
	if err != nil {
		return nil, nil, err
	}
	return service.NewSyncService(repository.NewStore(db), service.SyncOptions{}, logger.Discard()), db, nil
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}
