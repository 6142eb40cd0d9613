// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docpress/internal/database"
	"docpress/internal/idmap"
	"docpress/internal/query"
	"docpress/internal/schema"
	"docpress/internal/store"
)

func newResolveCmd(a *app) *cobra.Command {
	var locale string
	var published bool
	cmd := &cobra.Command{
		Use:   "resolve <uid> <documentId>",
		Short: "Print the row id of a document version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := schema.LoadDir(a.cfg.Schema.Dir)
			if err != nil {
				return err
			}
			db, err := database.Connect(cmd.Context(), a.cfg.DSN(), nil)
			if err != nil {
				return err
			}
			defer db.Close()

			if locale == "" {
				locale = a.cfg.I18n.DefaultLocale
			}
			return resolve(cmd, store.NewEntryStore(db, registry), registry, idmap.Key{
				UID:        args[0],
				DocumentID: args[1],
				Locale:     locale,
				IsDraft:    !published,
			})
		},
	}
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "locale (default: the configured default locale)")
	cmd.Flags().BoolVarP(&published, "published", "p", false, "resolve the published version")
	return cmd
}

func resolve(cmd *cobra.Command, engine query.Engine, provider schema.Provider, k idmap.Key) error {
	id, _, err := idmap.New(engine, provider, nil).Resolve(cmd.Context(), k, false)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
