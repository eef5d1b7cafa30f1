package retrieval

import (
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the maximum character count per chunk.
	DefaultChunkSize = 1500
	// DefaultChunkOverlap is the character overlap carried into the next chunk.
	DefaultChunkOverlap = 150
)

// Chunker splits documents on paragraph boundaries.
type Chunker struct {
	Size    int
	Overlap int
}

// Split splits content into chunks of at most c.Size bytes, keeping
// paragraphs together when possible. Short content is returned whole.
func (c Chunker) Split(content string) []string {
	size, overlap := c.Size, c.Overlap
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= size {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder

	for _, para := range splitParagraphs(content) {
		if current.Len() > 0 && current.Len()+len(para)+2 > size {
			chunks = append(chunks, current.String())
			current.Reset()
			if tail := overlapTail(chunks[len(chunks)-1], overlap); tail != "" {
				current.WriteString(tail)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)

		// Force-split paragraphs longer than a chunk.
		for current.Len() > size {
			text := current.String()
			cut := breakPoint(text[:size])
			chunks = append(chunks, strings.TrimSpace(text[:cut]))
			current.Reset()
			current.WriteString(strings.TrimSpace(text[cut:]))
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitParagraphs splits on blank lines and joins wrapped lines.
func splitParagraphs(content string) []string {
	var result []string
	var current strings.Builder

	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// overlapTail returns roughly the last n bytes of s, starting at a word.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	tail := s[len(s)-n:]
	if idx := strings.IndexAny(tail, " \t\n"); idx >= 0 {
		return strings.TrimSpace(tail[idx+1:])
	}
	return tail
}

// breakPoint finds a sentence or word boundary to split text at.
func breakPoint(text string) int {
	for i := len(text) - 1; i >= len(text)/2; i-- {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			if i == len(text)-1 || unicode.IsSpace(rune(text[i+1])) {
				return i + 1
			}
		}
	}
	for i := len(text) - 1; i >= len(text)/2; i-- {
		if unicode.IsSpace(rune(text[i])) {
			return i
		}
	}
	return len(text)
}
