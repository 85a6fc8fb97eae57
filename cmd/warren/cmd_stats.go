package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/amit6537/agent-warren/internal/config"
)

// handleStats implements the stats subcommand
func handleStats(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var jsonOutput bool
	fs.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    warren stats [options]

DESCRIPTION:
    Show statistics about the ingested documents.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Show human-readable statistics
    warren stats

    # JSON output
    warren stats -json
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	a, err := openApp(cfg, false)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	stats, err := a.db.Stats()
	if err != nil {
		log.Fatalf("Failed to read statistics: %v", err)
	}

	collectionCount, err := a.vectors.Count(context.Background(), cfg.Database.Collection)
	if err != nil {
		log.Fatalf("Failed to count collection entries: %v", err)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(map[string]interface{}{
			"collection":         cfg.Database.Collection,
			"collection_entries": collectionCount,
			"collections":        stats.CollectionCount,
			"entries":            stats.EntryCount,
			"documents":          stats.DocumentCount,
			"db_size_bytes":      stats.SizeBytes,
		}, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Println("Index Statistics")
	fmt.Println()
	fmt.Printf("Collection:  %s (%d entries)\n", cfg.Database.Collection, collectionCount)
	fmt.Printf("Documents:   %6d\n", stats.DocumentCount)
	fmt.Printf("Entries:     %6d\n", stats.EntryCount)
	fmt.Printf("Collections: %6d\n", stats.CollectionCount)
	fmt.Printf("DB size:     %6.1f KiB\n", float64(stats.SizeBytes)/1024)
}
