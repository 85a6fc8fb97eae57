// Package document turns source files into plain text ready for chunking.
// PDF is the primary format; plain text and markdown are accepted so small
// corpora can be ingested without conversion.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned for files whose extension has no
// registered extractor.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document is the extracted form of one source file.
type Document struct {
	ID    string
	Path  string
	Title string
	Text  string
}

// Extract reads a source file and returns its normalized plain text.
// The document ID is derived deterministically from the path so repeated
// ingestion of the same file maps to the same document.
func Extract(path string) (*Document, error) {
	var text string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = extractPDF(path)
	case ".txt", ".md", ".markdown":
		text, err = extractPlain(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:    DocID(path),
		Path:  path,
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Text:  Normalize(text),
	}, nil
}

// DocID returns the stable identifier for a document path.
func DocID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.ToSlash(path))).String()
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read extracted text from %s: %w", path, err)
	}
	return buf.String(), nil
}

func extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Normalize cleans extracted text: CRLF to LF, control characters dropped,
// trailing space stripped per line, and runs of blank lines collapsed.
// Chunk offsets are relative to the normalized text.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	text = b.String()

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
