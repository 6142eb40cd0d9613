// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"docpress/internal/document"
	"docpress/internal/models"
	"docpress/internal/transform"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		locale    string
		published bool
		populate  []string
	)
	cmd := &cobra.Command{
		Use:   "get <uid> <documentId>",
		Short: "Print one version of a document as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			p := document.Params{DocumentID: args[1], Locale: locale}
			if published {
				p.Status = models.StatusPublished
			}
			if len(populate) > 0 {
				p.Populate = transform.Populate{}
				for _, name := range populate {
					p.Populate[name] = nil
				}
			}
			return get(cmd, s.docs, args[0], p)
		},
	}
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "locale (default: the configured default locale)")
	cmd.Flags().BoolVarP(&published, "published", "p", false, "read the published version")
	cmd.Flags().StringSliceVar(&populate, "populate", nil, "relations to populate, or * for all")
	return cmd
}

func get(cmd *cobra.Command, docs *document.Service, uid string, p document.Params) error {
	doc, err := docs.FindOne(cmd.Context(), uid, p)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s not found in %s", p.DocumentID, uid)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
