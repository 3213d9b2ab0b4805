package main

import (
	"errors"
	"fmt"
	"time"

	"paperlib-sync-server/internal/database"
	"paperlib-sync-server/pkg/jwt"

	"github.com/spf13/cobra"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := database.SchemaVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d at %s\n", version, opts.DBPath)
			return nil
		},
	}
}

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a user's checkpoint and record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := opts.syncService()
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := svc.Status(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), status)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.MarkFlagRequired("user")
	return cmd
}

func NewEventsCommand(opts *RootOptions) *cobra.Command {
	var (
		userID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List a user's most recent sync events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := opts.syncService()
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := svc.Events(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), events)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events")
	cmd.MarkFlagRequired("user")
	return cmd
}

func NewWipeCommand(opts *RootOptions) *cobra.Command {
	var (
		userID  string
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Permanently delete a user's library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to wipe without --yes")
			}

			svc, db, err := opts.syncService()
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := svc.Wipe(cmd.Context(), userID, "paperctl")
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the wipe")
	cmd.MarkFlagRequired("user")
	return cmd
}

// NewTokenCommand issues a bearer token for local development. Production
// tokens come from the identity provider in front of the server.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = opts.cfg.JWT.Expiration
			}

			token, err := jwt.GenerateToken(userID, ttl, opts.cfg.JWT.Secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default $JWT_EXPIRATION)")
	cmd.MarkFlagRequired("user")
	return cmd
}
