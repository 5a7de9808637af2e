package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brickbot/clifile/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <assembly> <database>",
	Short: "Export metadata tables to a SQLite database",
	Long: `Write every present metadata table of an image to a SQLite database,
one SQL table per metadata table, together with the derived tables meta,
types, methods and user_strings. Existing tables of the same name are
replaced.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	img, err := openImage(args[0])
	if err != nil {
		return err
	}
	if err := export.SQLite(cmd.Context(), img, args[1]); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	fmt.Fprintf(output, "Exported %s to %s\n", args[0], args[1])
	return nil
}
