package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brickbot/clifile/metadata"
)

var infoCmd = &cobra.Command{
	Use:   "info <assembly>",
	Short: "Display image information",
	Long:  `Display general information about an image: PE kind, CLI header, metadata version, streams and heap sizes.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]

	img, err := openImage(path)
	if err != nil {
		return err
	}

	printHeader("Image")
	printField("File", path)
	if name, err := img.AssemblyName(); err == nil {
		printField("Assembly", name)
	} else {
		printField("Assembly", "(none: "+err.Error()+")")
	}

	f := img.PE()
	kind := "PE32"
	if f.Is64() {
		kind = "PE32+"
	}
	printField("Format", kind)
	hdr := f.CLIHeader()
	printField("Runtime", fmt.Sprintf("%d.%d", hdr.MajorRuntimeVersion, hdr.MinorRuntimeVersion))
	printField("CLI Flags", fmt.Sprintf("0x%08X", hdr.Flags))
	if ep := img.EntryPoint(); !ep.IsNil() {
		entry := ep.String()
		if name, err := img.FullMemberName(ep); err == nil {
			entry += " " + name
		}
		printField("Entry Point", entry)
	}

	fmt.Fprintln(output)
	printHeader("Metadata")
	printField("Version", img.Version())
	major, minor := img.TableStreamVersion()
	printField("Table Stream", fmt.Sprintf("%d.%d", major, minor))
	printField("Compressed", img.Compressed())
	printField("Heap Sizes", fmt.Sprintf("0x%02X", img.HeapSizes()))
	printField("#Strings Index", img.Strings().IndexSize())
	printField("#GUID Index", img.GUID().IndexSize())
	printField("#Blob Index", img.Blob().IndexSize())

	fmt.Fprintln(output)
	printHeader("Streams")
	fmt.Fprintf(output, "%-12s %-10s %s\n", "NAME", "OFFSET", "SIZE")
	printRule(36)
	for _, h := range img.Streams() {
		fmt.Fprintf(output, "%-12s 0x%08X %d\n", h.Name, h.Offset, h.Size)
	}

	tables := 0
	for id := metadata.TableID(0); id < metadata.NumTables; id++ {
		if t := img.Table(id); t != nil && t.Rows() > 0 {
			tables++
		}
	}
	fmt.Fprintln(output)
	printField("Tables Present", tables)
	return nil
}
