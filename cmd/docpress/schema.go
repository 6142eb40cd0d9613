// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docpress/internal/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect content type definitions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [dir]",
		Short: "Validate a schema directory and list its models",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Schema.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			registry, err := schema.LoadDir(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, uid := range registry.UIDs() {
				m, _ := registry.Model(uid)
				fmt.Fprintf(out, "%-32s %-15s draftAndPublish=%-5t localized=%-5t attributes=%d\n",
					uid, m.Kind, m.HasDraftAndPublish(), m.Localized, len(m.Attributes))
			}
			return nil
		},
	})
	return cmd
}
