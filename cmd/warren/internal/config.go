package internal

import (
	"fmt"
	"os"

	"github.com/amit6537/agent-warren/internal/config"
)

// LoadConfig reads the YAML config from an explicit path or the default
// location.
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// PrintConfigExample writes a minimal working config to stderr.
func PrintConfigExample() {
	homeDir, _ := os.UserHomeDir()
	configPath := fmt.Sprintf("%s/.warren/config/warren.yaml", homeDir)

	fmt.Fprintf(os.Stderr, `Create a configuration file at %s:

documents:
  dir: /path/to/your/pdfs

embedding:
  provider: openai
  model: text-embedding-3-small
  dimensions: 1536
  api_key_env: OPENAI_API_KEY

generation:
  model: gpt-4o-mini

search:
  top_k: 5

server:
  addr: ":8080"

Usage:
  1. Create the config file (or run 'warren ingest' to write a template)
  2. Export your API key: export OPENAI_API_KEY=sk-...
  3. Ingest: warren ingest
  4. Serve: warren serve
`, configPath)
}
