package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/brickbot/clifile/internal/config"
	"github.com/brickbot/clifile/metadata"
)

var (
	outputFile string
	configFile string
	verbose    bool
	noColor    bool

	output io.Writer
	cfg    *config.Config
	cache  *metadata.Cache
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "clidump",
	Short: "CLI metadata and IL viewer",
	Long: `clidump is a command-line tool for inspecting .NET assemblies.

It reads the ECMA-335 metadata of a PE image and can list its tables,
types, methods and user strings, disassemble method bodies and export
the metadata to JSON, CBOR or SQLite.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configFile != "" {
			cfg, err = config.Load(configFile)
		} else {
			cfg, err = config.FindAndLoad(".")
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logger, err = newLogger(); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		metadata.SetLogger(logger)
		if cfg.Path != "" {
			logger.Debug("config loaded", zap.String("path", cfg.Path))
		}

		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			output = f
		} else {
			output = os.Stdout
		}
		setStyled(outputFile == "" && !noColor && cfg.ColorEnabled() && term.IsTerminal(int(os.Stdout.Fd())))

		cache = metadata.NewCache(cfg.Cache.Capacity, metadata.WithEvictHook(func(path string, _ *metadata.Image) {
			logger.Debug("image evicted", zap.String("path", path))
		}))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if f, ok := output.(*os.File); ok && f != os.Stdout {
			f.Close()
		}
		if cache != nil {
			cache.Purge()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: nearest "+config.FileName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log decoding details to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable styled output")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(ilCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(stringsCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(exportCmd)
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	return zc.Build()
}

// openImage opens path through the shared cache.
func openImage(path string) (*metadata.Image, error) {
	img, err := cache.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return img, nil
}
