package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/victornm/avidquiz/internal/catalog"
)

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "List the catalog categories and their lesson counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		lessons, err := catalog.LoadFiles(c.Catalog.Files)
		if err != nil {
			return err
		}

		cc := catalog.Config{Lessons: lessons}
		if p := c.Catalog.SQLitePath; p != "" {
			st, err := catalog.NewSQLiteStore(p)
			if err != nil {
				return err
			}
			defer st.Close()
			cc.Store = st
		}

		cat, err := catalog.New(context.Background(), cc)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tLESSONS")
		byCategory := cat.ByCategory()
		for _, name := range cat.Categories() {
			fmt.Fprintf(w, "%s\t%d\n", name, len(byCategory[name]))
		}
		fmt.Fprintf(w, "total\t%d\n", cat.Len())
		return w.Flush()
	},
}
