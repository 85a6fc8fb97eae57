package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/amit6537/agent-warren/cmd/warren/internal"
	"github.com/amit6537/agent-warren/internal/config"
)

func main() {
	// Optional .env beside the working directory, before credentials are
	// resolved from the environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		internal.PrintUsage()
		os.Exit(1)
	}

	args := os.Args[1:]

	for _, arg := range args {
		if arg == "-h" || arg == "-help" || arg == "--help" {
			internal.PrintUsage()
			os.Exit(0)
		}
		if arg == "-v" || arg == "-version" || arg == "--version" {
			fmt.Printf("warren version %s\n", internal.Version)
			os.Exit(0)
		}
	}

	validSubcommands := map[string]bool{
		"ingest": true,
		"serve":  true,
		"ask":    true,
		"stats":  true,
	}

	subcommandIndex := -1
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && validSubcommands[arg] {
			subcommandIndex = i
			break
		}
	}

	if subcommandIndex == -1 {
		fmt.Fprintf(os.Stderr, "Error: No subcommand specified\n\n")
		internal.PrintUsage()
		os.Exit(1)
	}

	// Global flags precede the subcommand.
	configPath := ""
	globalFlags := args[:subcommandIndex]
	for i := 0; i < len(globalFlags); i++ {
		flag := globalFlags[i]
		if flag == "-config" || flag == "--config" {
			if i+1 < len(globalFlags) {
				configPath = globalFlags[i+1]
				i++
			}
		} else if strings.HasPrefix(flag, "-") {
			fmt.Fprintf(os.Stderr, "Error: Unknown global flag: %s\n\n", flag)
			internal.PrintUsage()
			os.Exit(1)
		}
	}

	subcommand := args[subcommandIndex]
	subcommandArgs := args[subcommandIndex+1:]

	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		if config.IsNotFound(err) {
			handleMissingConfig(err, subcommand)
			os.Exit(1)
		}
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := internal.SetupLogging(subcommand); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize log file: %v\n", err)
	}

	switch subcommand {
	case "ingest":
		handleIngest(cfg, subcommandArgs)
	case "serve":
		handleServe(cfg, subcommandArgs)
	case "ask":
		handleAsk(cfg, subcommandArgs)
	case "stats":
		handleStats(cfg, subcommandArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", subcommand)
		internal.PrintUsage()
		os.Exit(1)
	}
}

// handleMissingConfig writes a starter config for ingest runs and explains
// what to do next.
func handleMissingConfig(err error, subcommand string) {
	notFoundErr, ok := err.(*config.NotFoundError)
	if !ok || subcommand != "ingest" {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		internal.PrintConfigExample()
		return
	}

	created, createErr := config.WriteDefaultTemplate(notFoundErr.RequestedPath)
	if createErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "Also failed to create default config at %s: %v\n\n", notFoundErr.RequestedPath, createErr)
		internal.PrintConfigExample()
		return
	}
	if created {
		fmt.Fprintf(os.Stderr, "Created default config at %s\n", notFoundErr.RequestedPath)
	}
	fmt.Fprintln(os.Stderr, "Please review documents.dir in the config file, export your API key and rerun `warren ingest`.")
}
