package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/tilegrid/internal/platform/tui"
	"github.com/vovakirdan/tilegrid/internal/storage"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Browse or forget saved camera positions",
	Long: `Every source remembers where the camera was when you left it. Without
a subcommand, positions opens an interactive browser on a terminal and
prints the list otherwise.

Examples:
  tilegrid positions
  tilegrid positions list
  tilegrid positions reset demo
  tilegrid positions clear`,
	Run: runPositions,
}

var positionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print saved positions",
	Run: func(_ *cobra.Command, _ []string) {
		store := mustOpenStore()
		defer store.Close()
		printPositions(store)
	},
}

var positionsResetCmd = &cobra.Command{
	Use:   "reset <source>",
	Short: "Forget the saved position of a source",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		store := mustOpenStore()
		defer store.Close()
		if err := store.ResetPosition(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("Forgot position of %s\n", args[0])
	},
}

var positionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every saved position",
	Run: func(_ *cobra.Command, _ []string) {
		store := mustOpenStore()
		defer store.Close()
		if err := store.ClearPositions(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Println("Forgot every position")
	},
}

func init() {
	positionsCmd.AddCommand(positionsListCmd)
	positionsCmd.AddCommand(positionsResetCmd)
	positionsCmd.AddCommand(positionsClearCmd)
}

func runPositions(_ *cobra.Command, _ []string) {
	store := mustOpenStore()
	defer store.Close()

	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		printPositions(store)
		return
	}

	width, height := 80, 24 // Defaults
	if w, h, err := term.GetSize(fd); err == nil {
		width, height = w, h
	}
	if err := tui.RunPositions(store, width, height); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

func mustOpenStore() *storage.Store {
	cfg := loadConfig()
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening positions database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func printPositions(store *storage.Store) {
	positions, err := store.Positions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving positions: %v\n", err)
		return
	}
	if len(positions) == 0 {
		fmt.Println("No positions saved yet.")
		return
	}

	fmt.Printf("  %-32s  %10s  %10s  %6s  %s\n", "Source", "X", "Y", "Zoom", "Updated")
	fmt.Printf("  %-32s  %10s  %10s  %6s  %s\n", "------", "-", "-", "----", "-------")
	for _, p := range positions {
		fmt.Printf("  %-32s  %10.2f  %10.2f  %6.0f  %s\n",
			p.Source, p.X, p.Y, p.Zoom, p.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}
