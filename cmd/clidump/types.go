package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brickbot/clifile/metadata"
	"github.com/brickbot/clifile/signature"
)

var (
	typesFilter  string
	typesMembers bool
	typesLimit   int
)

var typesCmd = &cobra.Command{
	Use:   "types <assembly>",
	Short: "List types defined in the image",
	Long: `List the TypeDef rows of an image with their base types.

Use --members to include fields and methods with their signatures.`,
	Args: cobra.ExactArgs(1),
	RunE: runTypes,
}

func init() {
	typesCmd.Flags().StringVarP(&typesFilter, "filter", "f", "", "only show types whose name contains this text")
	typesCmd.Flags().BoolVarP(&typesMembers, "members", "m", false, "show fields and methods")
	typesCmd.Flags().IntVarP(&typesLimit, "limit", "n", 0, "limit number of types shown (0 = unlimited)")
}

func runTypes(cmd *cobra.Command, args []string) error {
	img, err := openImage(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "%-12s %-10s %s\n", "TOKEN", "FLAGS", "NAME")
	printRule(80)

	count := 0
	c := img.TypeDefs()
	for c.Next() {
		tok := c.Token()
		name, err := img.TypeName(tok)
		if err != nil {
			name = fmt.Sprintf("<%v>", err)
		}
		if typesFilter != "" && !strings.Contains(name, typesFilter) {
			continue
		}
		if typesLimit > 0 && count >= typesLimit {
			fmt.Fprintf(output, "... (limit reached)\n")
			break
		}
		count++

		line := name
		if base, err := c.Extends(); err == nil && !base.IsNil() {
			if baseName, err := img.TypeName(base); err == nil {
				line += " : " + baseName
			}
		}
		fmt.Fprintf(output, "%s 0x%08X %s\n", render(tokenStyle, fmt.Sprintf("0x%08X  ", uint32(tok))), uint32(c.Flags()), line)

		if typesMembers {
			if err := printMembers(img, tok.Row()); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(output, "\nTotal: %d types\n", count)
	return nil
}

func printMembers(img *metadata.Image, row uint32) error {
	fields, err := img.FieldRange(row)
	if err != nil {
		return err
	}
	for tok := range fields.Tokens() {
		name, _ := img.MemberName(tok)
		typ := "?"
		if t, err := signature.ForField(img, tok); err == nil {
			typ = signature.TypeString(img, t)
		}
		fmt.Fprintf(output, "    %s field %s %s\n", render(dimStyle, tok.String()), typ, name)
	}

	methods, err := img.MethodRange(row)
	if err != nil {
		return err
	}
	for tok := range methods.Tokens() {
		name, _ := img.MemberName(tok)
		fmt.Fprintf(output, "    %s method %s\n", render(dimStyle, tok.String()), formatMethod(img, tok, name))
	}
	return nil
}

// formatMethod renders a method token as "name(sig)" using its signature.
func formatMethod(img *metadata.Image, tok metadata.Token, name string) string {
	sig, err := signature.ForMethod(img, tok)
	if err != nil {
		return name + " <" + err.Error() + ">"
	}
	return signature.FormatMethod(sig, signature.ImageNamer(img), name)
}
