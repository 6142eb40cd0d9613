// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docpress/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	var down, status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(cmd.Context(), a.cfg.DSN(), nil)
			if err != nil {
				return err
			}
			defer db.Close()

			switch {
			case status:
			case down:
				err = database.Rollback(db.DB)
			default:
				err = database.Migrate(db.DB)
			}
			if err != nil {
				return err
			}
			v, err := database.Version(db.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	cmd.Flags().BoolVar(&status, "status", false, "only print the current version")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}
