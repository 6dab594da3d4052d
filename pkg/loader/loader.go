// Package loader reads the source document and splits it into passages
// for indexing.
package loader

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultMaxChunkLen bounds passage size so each stays well inside the
// embedding provider's input limits.
const DefaultMaxChunkLen = 2000

// Load reads the document at path and chunks it into passages.
func Load(path string, maxLen int) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	passages := ChunkText(string(content), maxLen)
	if len(passages) == 0 {
		return nil, fmt.Errorf("document %s contains no text", path)
	}
	return passages, nil
}

// ChunkText splits a document into passages. Markdown headings start a
// new passage; passages longer than maxLen are split into maxLen-sized
// pieces. Order follows the document.
func ChunkText(content string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLen
	}

	var sections []string
	var current strings.Builder

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			sections = append(sections, text)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		// A heading starts a new section; the heading text stays with
		// the content it titles.
		if strings.HasPrefix(line, "#") {
			flush()
			current.WriteString(strings.TrimSpace(strings.TrimLeft(line, "#")))
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	var passages []string
	for _, section := range sections {
		passages = append(passages, splitByLength(section, maxLen)...)
	}
	return passages
}

// splitByLength cuts text into fixed-size pieces of at most maxLen runes.
func splitByLength(text string, maxLen int) []string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var pieces []string
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}
