package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noterosync/notero/internal/bootstrap"
	"github.com/noterosync/notero/internal/notion"
	"github.com/noterosync/notero/internal/state"
	"github.com/noterosync/notero/internal/sync"
	"github.com/noterosync/notero/internal/zotero"
)

// bootstrapCmd groups the commands that establish initial sync state.
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Establish initial sync state for a Notion database",
}

// bootstrapSeedCmd represents the bootstrap seed command.
var bootstrapSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Copy source items into the Zotero group and record baselines",
	Long: `For every relevant page without sync state, materialize an item in the
configured Zotero group: an existing owl:sameAs relation into the group is
reused, otherwise a copy of the source item is created. Finishes by warming
the group's collection cache.`,
	RunE: runBootstrapSeed,
}

// bootstrapSnapshotCmd represents the bootstrap snapshot command.
var bootstrapSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Record read-only baselines against existing items",
	Long: `For every relevant page without sync state, record a baseline against
the item its URI already points at. Nothing is written to Zotero.`,
	RunE: runBootstrapSnapshot,
}

func init() {
	bootstrapCmd.AddCommand(bootstrapSeedCmd)
	bootstrapCmd.AddCommand(bootstrapSnapshotCmd)
}

func runBootstrapSeed(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateBootstrap(true); err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	db, err := state.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	notionClient := notion.New(cfg.Notion.APIKey)
	zoteroClient := zotero.New(cfg.Zotero.APIKey, zotero.WithLogger(log))
	resolver := sync.NewCollectionResolver(db, zoteroClient, log)

	b := bootstrap.New(db, notionClient, zoteroClient, resolver, log)
	report, err := b.Seed(cmd.Context(), cfg.Notion.DatabaseID, cfg.Zotero.GroupID)
	if err != nil {
		return err
	}

	fmt.Printf("created: %d\nreused: %d\nskipped: %d\n", report.Created, report.Reused, report.Skipped)
	return nil
}

func runBootstrapSnapshot(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateBootstrap(false); err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	db, err := state.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	notionClient := notion.New(cfg.Notion.APIKey)
	zoteroClient := zotero.New(cfg.Zotero.APIKey, zotero.WithLogger(log))

	b := bootstrap.New(db, notionClient, zoteroClient, nil, log)
	report, err := b.Snapshot(cmd.Context(), cfg.Notion.DatabaseID)
	if err != nil {
		return err
	}

	fmt.Printf("recorded: %d\nskipped: %d\n", report.Created, report.Skipped)
	return nil
}
