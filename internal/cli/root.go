// Package cli implements the Cobra-based command-line interface for notero.
//
// The CLI provides the webhook server (serve) and the bootstrap commands
// that establish initial sync state (bootstrap seed, bootstrap snapshot).
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noterosync/notero/internal/config"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags.
	cfgFile string

	// Loaded configuration.
	cfg *config.Config
)

// SetVersion sets the version information for the CLI.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "notero",
	Short: "One-way reverse sync from Notion to Zotero",
	Long: `notero propagates curated edits made in a Notion database back to the
Zotero items the pages reference: tags, collections and scalar fields are
three-way merged, and blocks under a "Zotero Notes" heading become child
notes on the item.

Run 'notero serve' to receive Notion webhooks, or 'notero bootstrap' to
establish initial sync state for an existing database.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; environment variables take precedence)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("notero %s (commit: %s, built: %s)\n", version, commit, date))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bootstrapCmd)
}

// newLogger builds the process logger from the configured level, using the
// console writer when stderr is a terminal.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(lvl).With().Timestamp().Logger()
}
