package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amit6537/agent-warren/internal/config"
	"github.com/amit6537/agent-warren/internal/server"
)

// handleServe implements the serve subcommand
func handleServe(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	var addr string
	fs.StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    warren serve [options]

DESCRIPTION:
    Serve the question answering API.

    POST /ask      {"question": "..."}  ->  {"answer": "..."}
    GET  /healthz

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Serve on the configured address
    warren serve

    # Serve on port 9090
    warren serve -addr :9090
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if addr == "" {
		addr = cfg.Server.Addr
	}

	a, err := openApp(cfg, false)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	srv := server.New(a.pipeline(), addr, log.Default())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}
