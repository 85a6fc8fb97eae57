package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amit6537/agent-warren/internal/config"
)

// handleAsk implements the ask subcommand
func handleAsk(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)

	var topK int
	var jsonOutput, verbose, stream bool

	fs.IntVar(&topK, "k", 0, "Number of context chunks to retrieve (overrides search.top_k)")
	fs.BoolVar(&jsonOutput, "json", false, "Output the full result as JSON")
	fs.BoolVar(&verbose, "v", false, "Show retrieved context with scores")
	fs.BoolVar(&stream, "stream", false, "Stream the answer as it is generated")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    warren ask [options] "<question>"

DESCRIPTION:
    Answer a single question against the ingested documents.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Ask a question
    warren ask "What were operating earnings in 2023?"

    # Show the supporting context
    warren ask "Who manages the insurance business?" -v

    # Stream the answer
    warren ask "Summarize the chairman's letter" -stream

    # JSON output for scripting
    warren ask "What is float?" -json
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: question is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	question := fs.Arg(0)

	if stream {
		cfg.Generation.Streaming = true
	}

	a, err := openApp(cfg, false)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if stream && !jsonOutput {
		a.generator.OnDelta = func(delta string) { fmt.Print(delta) }
	}

	opts := a.retrievalOptions()
	if topK > 0 {
		opts.TopK = topK
	}
	p := a.pipelineWith(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := p.Ask(ctx, question)
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(map[string]interface{}{
			"question": result.Question,
			"answer":   result.Answer,
			"context":  result.Items,
			"elapsed":  result.Elapsed.String(),
		}, "", "  ")
		fmt.Println(string(out))
		return
	}

	if verbose {
		fmt.Printf("Context (%d chunk(s)):\n", len(result.Items))
		for i, item := range result.Items {
			fmt.Printf("  [%d] %s (chunk %d, score %.3f)\n", i+1, item.Source, item.ChunkIndex, item.Score)
		}
		fmt.Println()
	}

	if stream {
		// Deltas were already printed; end the line.
		fmt.Println()
	} else {
		fmt.Println(result.Answer)
	}
}
