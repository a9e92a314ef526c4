package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/tilegrid/internal/registry"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List content sources",
	Long:  `Shows the content sources tiles can be browsed from.`,
	Run:   runSources,
}

func runSources(_ *cobra.Command, _ []string) {
	sources := registry.List()

	if len(sources) == 0 {
		fmt.Println("No sources available.")
		return
	}

	fmt.Println("Available sources:")
	fmt.Println()

	// Calculate column widths
	maxIDLen := 2 // "ID" header
	for _, s := range sources {
		maxIDLen = max(maxIDLen, len(s.ID))
	}

	fmt.Printf("  %-*s  %s\n", maxIDLen, "ID", "Title")
	fmt.Printf("  %-*s  %s\n", maxIDLen, "--", "-----")
	for _, s := range sources {
		fmt.Printf("  %-*s  %s\n", maxIDLen, s.ID, s.Title)
	}

	fmt.Println()
	fmt.Println("Run 'tilegrid view --source <id>' to browse a source.")
}
