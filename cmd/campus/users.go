// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
	authpg "github.com/randiU/cse340-practice-umphrey/internal/auth/postgres"
	"github.com/randiU/cse340-practice-umphrey/internal/config"
)

// newUsersCmd creates the users subcommand.
func newUsersCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and remove registered users",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered users, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd, deps, func(ctx context.Context, cfg *config.Config, db Database, logger *slog.Logger) error {
					svc, err := registrationService(cfg, db, logger)
					if err != nil {
						return err
					}
					return runUsersList(ctx, cmd, svc)
				})
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete the user with the given id",
			Long: `Delete a user account. Sessions the user already holds stay in the
store; they are logged out on their next dashboard visit.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id <= 0 {
					return oops.Code("INVALID_USER_ID").With("input", args[0]).Errorf("user id must be a positive integer: %q", args[0])
				}
				return withDatabase(cmd, deps, func(ctx context.Context, cfg *config.Config, db Database, logger *slog.Logger) error {
					svc, err := registrationService(cfg, db, logger)
					if err != nil {
						return err
					}
					return runUsersDelete(ctx, cmd, svc, id)
				})
			},
		},
	)

	return cmd
}

func registrationService(cfg *config.Config, db Database, logger *slog.Logger) (*auth.RegistrationService, error) {
	users := authpg.NewUserRepository(db, cfg.Database.Timeout)
	return auth.NewRegistrationService(users, auth.NewBcryptHasher(auth.DefaultBcryptCost), logger)
}

func runUsersList(ctx context.Context, cmd *cobra.Command, svc *auth.RegistrationService) error {
	users, err := svc.List(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		cmd.Println("No registered users")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE\tREGISTERED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Phone, u.CreatedAt.UTC().Format(time.DateTime))
	}
	return tw.Flush()
}

func runUsersDelete(ctx context.Context, cmd *cobra.Command, svc *auth.RegistrationService, id int64) error {
	if err := svc.Delete(ctx, id); err != nil {
		return err
	}
	cmd.Printf("Deleted user %d\n", id)
	return nil
}
