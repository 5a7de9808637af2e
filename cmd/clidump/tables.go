package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brickbot/clifile/metadata"
)

var (
	tablesName  string
	tablesLimit int
)

var tablesCmd = &cobra.Command{
	Use:   "tables <assembly>",
	Short: "List metadata tables or the rows of one table",
	Long: `List the metadata tables present in the image with their row counts.

Use --table to print the raw column values of one table, for example
--table TypeDef. String and blob columns are heap offsets.`,
	Args: cobra.ExactArgs(1),
	RunE: runTables,
}

func init() {
	tablesCmd.Flags().StringVarP(&tablesName, "table", "t", "", "print the rows of this table")
	tablesCmd.Flags().IntVarP(&tablesLimit, "limit", "n", 0, "limit number of rows shown (0 = unlimited)")
}

func runTables(cmd *cobra.Command, args []string) error {
	img, err := openImage(args[0])
	if err != nil {
		return err
	}

	if tablesName != "" {
		id, ok := metadata.TableByName(tablesName)
		if !ok {
			return fmt.Errorf("unknown table: %s", tablesName)
		}
		return printTableRows(img.Table(id))
	}

	fmt.Fprintf(output, "%-4s %-24s %-8s %-8s %s\n", "ID", "TABLE", "ROWS", "ROWSIZE", "SORTED")
	printRule(60)
	for id := metadata.TableID(0); id < metadata.NumTables; id++ {
		t := img.Table(id)
		if t == nil || t.Rows() == 0 {
			continue
		}
		fmt.Fprintf(output, "0x%02X %-24s %-8d %-8d %v\n", uint8(id), id, t.Rows(), t.RowSize(), t.Sorted())
	}
	return nil
}

func printTableRows(t *metadata.Table) error {
	cols := t.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = fmt.Sprintf("%-12s", c.Name)
	}
	fmt.Fprintf(output, "%-12s %s\n", "TOKEN", strings.Join(names, " "))
	printRule(13 + 13*len(cols))

	for row := uint32(1); row <= t.Rows(); row++ {
		if tablesLimit > 0 && int(row) > tablesLimit {
			fmt.Fprintf(output, "... (%d more rows)\n", t.Rows()-row+1)
			break
		}
		values, err := t.Row(row)
		if err != nil {
			return err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = fmt.Sprintf("%-12s", formatColumn(cols[i], v))
		}
		tok := metadata.MakeToken(t.ID(), row)
		fmt.Fprintf(output, "%s %s\n", render(tokenStyle, fmt.Sprintf("0x%08X  ", uint32(tok))), strings.Join(cells, " "))
	}
	return nil
}

func formatColumn(c metadata.Column, v uint32) string {
	switch c.Kind {
	case metadata.ColumnTable:
		if v == 0 {
			return "-"
		}
		return metadata.MakeToken(c.Table, v).String()
	case metadata.ColumnCoded:
		tok, err := metadata.DecodeCoded(c.Coded, v)
		if err != nil {
			return fmt.Sprintf("bad:0x%X", v)
		}
		if tok.IsNil() {
			return "-"
		}
		return tok.String()
	}
	return fmt.Sprintf("0x%X", v)
}
