package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amit6537/agent-warren/cmd/warren/internal"
	"github.com/amit6537/agent-warren/internal/chunker"
	"github.com/amit6537/agent-warren/internal/config"
	"github.com/amit6537/agent-warren/internal/ingest"
)

// handleIngest implements the ingest subcommand
func handleIngest(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)

	var docsDir string
	var noProgress bool
	var reset bool
	var exclude internal.StringList

	fs.StringVar(&docsDir, "docs", "", "Document directory (overrides documents.dir)")
	fs.BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	fs.BoolVar(&reset, "reset", false, "Drop all indexed data before ingesting")
	fs.Var(&exclude, "exclude", "Glob pattern to skip (repeatable, adds to documents.exclude)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    warren ingest [options]

DESCRIPTION:
    Extract, chunk, embed and index every supported document (.pdf, .txt,
    .md) under the document directory. Re-running is safe: unchanged
    documents replace their own entries and stale chunks are removed.
    Use -reset to discard all indexed data first.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Ingest the configured directory
    warren ingest

    # Ingest a specific directory, skipping drafts
    warren ingest -docs ./reports -exclude "**/drafts/**"

    # Rebuild the index from scratch
    warren ingest -reset
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if docsDir == "" {
		docsDir = cfg.Documents.Dir
	}
	excludes := append([]string{}, cfg.Documents.Exclude...)
	excludes = append(excludes, exclude...)

	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		log.Fatalf("Invalid chunking configuration: %v", err)
	}

	a, err := openApp(cfg, true)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if reset {
		if err := a.reset(); err != nil {
			log.Fatalf("Failed to reset index: %v", err)
		}
		log.Printf("Cleared database and text index")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := ingest.NewProgress(!noProgress && ingest.DefaultProgressEnabled())
	job := ingest.NewJob(ch, a.embedder, a.vectors, a.textIndex, cfg.Database.Collection, progress, log.Default())

	report, err := job.Run(ctx, docsDir, excludes)
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	fmt.Printf("Ingested %d/%d document(s), %d chunk(s) in %s\n",
		report.Succeeded, report.Documents, report.Chunks, report.Elapsed.Round(timeRound))
	if report.Failed > 0 {
		fmt.Printf("Failed documents (%d):\n", report.Failed)
		for _, failure := range report.Failures {
			fmt.Printf("  %s: %v\n", failure.Path, failure.Err)
		}
		os.Exit(1)
	}
}
