package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brickbot/clifile/il"
	"github.com/brickbot/clifile/metadata"
	"github.com/brickbot/clifile/signature"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <assembly> <query>",
	Short: "Look up a token, type or member",
	Long: `Look up metadata in an image.

Query can be:
  - Token: lookup app.dll 0x02000002
  - Type name: lookup app.dll MyApp.Program
  - Member: lookup app.dll MyApp.Program::Main`,
	Args: cobra.ExactArgs(2),
	RunE: runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	img, err := openImage(args[0])
	if err != nil {
		return err
	}
	query := args[1]

	if tok, ok := parseToken(query); ok {
		return lookupToken(img, tok)
	}

	if typeName, member, ok := strings.Cut(query, "::"); ok {
		return lookupMember(img, typeName, member)
	}

	tok, err := img.FindType(query)
	if err != nil {
		return err
	}
	if tok.IsNil() {
		fmt.Fprintf(output, "No type found matching %q\n", query)
		return nil
	}
	return lookupToken(img, tok)
}

func lookupMember(img *metadata.Image, typeName, member string) error {
	typ, err := img.FindType(typeName)
	if err != nil {
		return err
	}
	if typ.IsNil() {
		fmt.Fprintf(output, "No type found matching %q\n", typeName)
		return nil
	}

	found := 0
	ranges := []func(uint32) (metadata.Range, error){img.MethodRange, img.FieldRange}
	for _, members := range ranges {
		r, err := members(typ.Row())
		if err != nil {
			return err
		}
		for tok := range r.Tokens() {
			if name, err := img.MemberName(tok); err == nil && name == member {
				if found > 0 {
					fmt.Fprintln(output)
				}
				if err := lookupToken(img, tok); err != nil {
					return err
				}
				found++
			}
		}
	}
	if found == 0 {
		fmt.Fprintf(output, "No member %q in %s\n", member, typeName)
	}
	return nil
}

func lookupToken(img *metadata.Image, tok metadata.Token) error {
	printHeader(tok.String())
	printField("Table", tok.Table())
	printField("Row", tok.Row())

	switch tok.Table() {
	case metadata.TableUserString:
		s, err := img.UserStrings().Get(tok.Row())
		if err != nil {
			return err
		}
		printField("Value", strconv.Quote(s))
		return nil

	case metadata.TableTypeDef, metadata.TableTypeRef, metadata.TableTypeSpec:
		t, err := il.TypeOf(img, tok)
		if err != nil {
			return err
		}
		printField("Type", signature.TypeString(img, t))
		if name, err := img.AssemblyQualifiedName(tok); err == nil {
			printField("Qualified", name)
		}
		if tok.Table() == metadata.TableTypeDef {
			fields, err := img.FieldRange(tok.Row())
			if err != nil {
				return err
			}
			methods, err := img.MethodRange(tok.Row())
			if err != nil {
				return err
			}
			printField("Fields", fields.Len())
			printField("Methods", methods.Len())
		}

	case metadata.TableMethodDef, metadata.TableMemberRef, metadata.TableField:
		name, err := img.FullMemberName(tok)
		if err != nil {
			return err
		}
		printField("Name", name)
		if img.IsFieldToken(tok) {
			if t, err := signature.ForField(img, tok); err == nil {
				printField("Field Type", signature.TypeString(img, t))
			}
		} else {
			short, _ := img.MemberName(tok)
			printField("Signature", formatMethod(img, tok, short))
		}
		if tok.Table() == metadata.TableMethodDef {
			if body, err := il.ReadBody(img, tok.Row()); err == nil {
				printField("RVA", fmt.Sprintf("0x%08X", body.RVA))
				printField("Code Size", len(body.Code()))
			}
		}
	}

	t := img.Table(tok.Table())
	if t == nil {
		return fmt.Errorf("unknown table in token %s", tok)
	}
	values, err := t.Row(tok.Row())
	if err != nil {
		return err
	}
	fmt.Fprintln(output)
	for i, c := range t.Columns() {
		printField(c.Name, formatColumn(c, values[i]))
	}
	return nil
}
