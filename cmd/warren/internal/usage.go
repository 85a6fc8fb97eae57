package internal

import (
	"fmt"
	"os"
	"strings"
)

const Version = "0.3.0"

// PrintUsage writes the top-level usage text to stderr.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `warren - Question answering over a local PDF collection

Version: %s

USAGE:
    warren [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.warren/config/warren.yaml)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    ingest
        Chunk, embed and index the configured document directory

    serve
        Run the HTTP question answering server (POST /ask)

    ask
        Answer a single question from the command line

    stats
        Show index statistics

EXAMPLES:
    # Ingest the configured document directory
    warren ingest

    # Ingest a specific directory
    warren ingest -docs ./reports

    # Start the server on the configured address
    warren serve

    # Start the server on a specific address
    warren serve -addr :9090

    # One-shot question
    warren ask "What were operating earnings in 2023?"

    # Show statistics
    warren stats

For detailed help on each command, use:
    warren <command> -help
`, Version)
}

// StringList is a flag.Value that collects repeated string flags.
type StringList []string

func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
