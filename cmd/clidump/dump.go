package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brickbot/clifile/internal/export"
)

var dumpFormat string

var dumpCmd = &cobra.Command{
	Use:   "dump <assembly>",
	Short: "Dump a summary of the image",
	Long: `Dump the streams, tables, types and methods of an image.

Supported formats:
  - text: Human-readable text (default)
  - json: JSON format
  - cbor: Canonical CBOR, for use with --output`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "", "output format (text, json, cbor); default from config")
}

func runDump(cmd *cobra.Command, args []string) error {
	img, err := openImage(args[0])
	if err != nil {
		return err
	}
	s, err := export.Summarize(img)
	if err != nil {
		return err
	}

	format := dumpFormat
	if format == "" {
		format = cfg.Output.Format
	}
	switch format {
	case "json":
		return export.EncodeJSON(output, s)
	case "cbor":
		return export.EncodeCBOR(output, s)
	case "text":
		dumpText(s)
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func dumpText(s *export.Summary) {
	printHeader("Image")
	printField("File", s.Path)
	printField("Assembly", s.Assembly)
	printField("Metadata", s.MetadataVersion)
	printField("Table Stream", s.TableStream)
	printField("PE32+", s.PE32Plus)
	if s.EntryPoint != "" {
		printField("Entry Point", s.EntryPoint)
	}
	printField("User Strings", s.UserStrings)

	fmt.Fprintln(output)
	printHeader("Tables")
	for _, t := range s.Tables {
		sorted := ""
		if t.Sorted {
			sorted = " (sorted)"
		}
		fmt.Fprintf(output, "  %-24s %d%s\n", t.Name, t.Rows, sorted)
	}

	fmt.Fprintln(output)
	printHeader("Types")
	for _, t := range s.Types {
		line := t.Name
		if t.Extends != "" {
			line += " : " + t.Extends
		}
		fmt.Fprintf(output, "%s %s\n", render(tokenStyle, fmt.Sprintf("0x%08X", t.Token)), line)
		for _, m := range t.Methods {
			body := "no body"
			if m.RVA != 0 {
				body = fmt.Sprintf("rva 0x%X, %d bytes, maxstack %d", m.RVA, m.CodeSize, m.MaxStack)
				if m.Clauses > 0 {
					body += fmt.Sprintf(", %d handlers", m.Clauses)
				}
			}
			fmt.Fprintf(output, "    %s %s %s %s\n", render(dimStyle, fmt.Sprintf("0x%08X", m.Token)), m.Name, m.Signature, render(dimStyle, "("+body+")"))
		}
	}
}
