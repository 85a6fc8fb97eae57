package main

import (
	"fmt"
	"log"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/amit6537/agent-warren/cmd/warren/internal"
	"github.com/amit6537/agent-warren/internal/answer"
	"github.com/amit6537/agent-warren/internal/config"
	"github.com/amit6537/agent-warren/internal/embedding"
	"github.com/amit6537/agent-warren/internal/qa"
	"github.com/amit6537/agent-warren/internal/retrieval"
	"github.com/amit6537/agent-warren/internal/store"
	"github.com/amit6537/agent-warren/internal/textindex"
)

// timeRound trims durations for human-facing output.
const timeRound = 10 * time.Millisecond

// app holds the wired components shared by the subcommands.
type app struct {
	cfg          *config.Config
	db           *store.DB
	vectors      *store.VectorStore
	embedder     *embedding.Service
	textIndex    *textindex.Index // nil when keyword search is off
	textIndexDir string
	generator    *answer.OpenAIGenerator
}

// openApp builds the component graph. withTextIndex controls whether the
// bleve index is opened for writing (ingest) or only when keyword search
// is configured (serve, ask).
func openApp(cfg *config.Config, withTextIndex bool) (*app, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = internal.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to determine database path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	embedder, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		vectors:  store.NewVectorStore(db),
		embedder: embedder,
	}

	a.textIndexDir = cfg.Database.TextIndexDir
	if a.textIndexDir == "" {
		a.textIndexDir = internal.DefaultTextIndexDir(dbPath)
	}
	if withTextIndex {
		a.textIndex, err = textindex.OpenOrCreate(a.textIndexDir)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open text index: %w", err)
		}
	} else if cfg.Search.KeywordWeight > 0 {
		a.textIndex, err = textindex.Open(a.textIndexDir)
		if err != nil {
			// Keyword search degrades to vector-only until the next ingest.
			log.Printf("Warning: keyword index unavailable, using vector search only: %v", err)
			a.textIndex = nil
		}
	}

	occfg := openai.DefaultConfig(cfg.Embedding.APIKey)
	if cfg.Embedding.BaseURL != "" {
		occfg.BaseURL = cfg.Embedding.BaseURL
	}
	a.generator = answer.New(openai.NewClientWithConfig(occfg), &cfg.Generation)

	return a, nil
}

// reset wipes all stored entries and recreates the text index, so the
// following ingestion starts from a clean slate.
func (a *app) reset() error {
	if err := a.db.Clear(); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}
	if a.textIndex != nil {
		if err := a.textIndex.Close(); err != nil {
			return fmt.Errorf("failed to close text index: %w", err)
		}
	}
	ti, err := textindex.Create(a.textIndexDir)
	if err != nil {
		return fmt.Errorf("failed to recreate text index: %w", err)
	}
	a.textIndex = ti
	return nil
}

// Close releases the database and text index.
func (a *app) Close() {
	if a.textIndex != nil {
		if err := a.textIndex.Close(); err != nil {
			log.Printf("Warning: failed to close text index: %v", err)
		}
	}
	if err := a.db.Close(); err != nil {
		log.Printf("Warning: failed to close database: %v", err)
	}
}

func (a *app) retrievalOptions() retrieval.Options {
	return retrieval.Options{
		TopK:          a.cfg.Search.TopK,
		MinScore:      a.cfg.Search.MinScore,
		VectorWeight:  a.cfg.Search.VectorWeight,
		KeywordWeight: a.cfg.Search.KeywordWeight,
		PreviewChars:  a.cfg.Search.PreviewChars,
	}
}

// pipeline assembles the per-request question answering pipeline.
func (a *app) pipeline() *qa.Pipeline {
	return a.pipelineWith(a.retrievalOptions())
}

func (a *app) pipelineWith(opts retrieval.Options) *qa.Pipeline {
	retriever := retrieval.NewService(a.vectors, a.embedder, a.textIndex, a.cfg.Database.Collection)
	return qa.New(retriever, a.generator, opts, a.cfg.Server.RequestTimeout(), log.Default())
}
