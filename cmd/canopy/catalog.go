package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/canopy/internal/appconfig"
	"pkt.systems/canopy/internal/catalog"
	"pkt.systems/pslog"
)

func newCatalogCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the catalog database",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	cmd.AddCommand(newCatalogInitCmd(&cfgPath))
	cmd.AddCommand(newCatalogLsCmd(&cfgPath))

	return cmd
}

func newCatalogInitCmd(cfgPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create and seed the demo catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			existing, err := store.ListDatabases(cmd.Context())
			if err != nil {
				return err
			}
			if len(existing) > 0 && !force {
				logger.Info("catalog already seeded", "path", store.Path(), "databases", len(existing))
				return nil
			}
			seed := catalog.DemoSeed()
			if err := store.Seed(cmd.Context(), seed); err != nil {
				return err
			}
			logger.Info("catalog seeded", "path", store.Path(), "databases", len(seed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reseed even when the catalog is not empty")
	return cmd
}

func newCatalogLsCmd(cfgPath *string) *cobra.Command {
	var database string
	var table string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List catalog databases, tables, or columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			if table != "" && database == "" {
				return errors.New("--table requires --database")
			}
			store, err := catalog.Open(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			switch {
			case table != "":
				columns, err := store.TableColumns(cmd.Context(), database, table)
				if err != nil {
					return err
				}
				for _, column := range columns {
					_, _ = fmt.Fprintln(out, formatColumn(column))
				}
			case database != "":
				tables, err := store.ListTables(cmd.Context(), database)
				if err != nil {
					return err
				}
				for _, name := range tables {
					_, _ = fmt.Fprintln(out, name)
				}
			default:
				databases, err := store.ListDatabases(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range databases {
					_, _ = fmt.Fprintln(out, name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&database, "database", "", "list tables of this database")
	cmd.Flags().StringVar(&table, "table", "", "list columns of this table (requires --database)")
	return cmd
}

func formatColumn(column catalog.Column) string {
	parts := []string{column.Name, column.Type}
	if column.PrimaryKey {
		parts = append(parts, "primary key")
	}
	if column.Nullable {
		parts = append(parts, "nullable")
	}
	if column.ForeignKey != "" {
		parts = append(parts, "-> "+column.ForeignKey)
	}
	return strings.Join(parts, " ")
}
