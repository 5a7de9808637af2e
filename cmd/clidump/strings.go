package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	stringsFilter string
	stringsLimit  int
)

var stringsCmd = &cobra.Command{
	Use:   "strings <assembly>",
	Short: "List the user strings of an image",
	Long:  `List the literals of the #US heap with the ldstr token that refers to each.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runStrings,
}

func init() {
	stringsCmd.Flags().StringVarP(&stringsFilter, "filter", "f", "", "only show strings containing this text")
	stringsCmd.Flags().IntVarP(&stringsLimit, "limit", "n", 0, "limit number of strings shown (0 = unlimited)")
}

func runStrings(cmd *cobra.Command, args []string) error {
	img, err := openImage(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "%-12s %s\n", "TOKEN", "VALUE")
	printRule(60)

	count := 0
	for off, s := range img.UserStrings().All() {
		if stringsFilter != "" && !strings.Contains(s, stringsFilter) {
			continue
		}
		if stringsLimit > 0 && count >= stringsLimit {
			fmt.Fprintf(output, "... (limit reached)\n")
			break
		}
		count++
		fmt.Fprintf(output, "%s %s\n", render(tokenStyle, fmt.Sprintf("0x%08X  ", 0x70000000|off)), strconv.Quote(s))
	}

	fmt.Fprintf(output, "\nTotal: %d strings\n", count)
	return nil
}
