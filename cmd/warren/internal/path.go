package internal

import (
	"os"
	"path/filepath"
)

// DefaultDBPath returns the vector index location used when the config
// does not name one.
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".warren", "data", "warren.db"), nil
}

// DefaultTextIndexDir derives the bleve index directory from the database
// path so the two stay side by side.
func DefaultTextIndexDir(dbPath string) string {
	return dbPath + ".bleve"
}
