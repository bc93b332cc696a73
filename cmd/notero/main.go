// Package main provides the entry point for the notero service.
//
// notero is a one-way reverse-synchronization service that propagates
// curated edits made in a Notion database back to the Zotero items the
// pages reference.
package main

import (
	"os"

	"github.com/noterosync/notero/internal/cli"
)

// Version information set by build flags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersion(version, commit, date)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
