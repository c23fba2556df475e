package chunker

import (
	"strings"

	"notebookrag/internal/domain"
)

// WordChunker splits documents into fixed-size word windows with overlap.
type WordChunker struct {
	chunkSize int
	overlap   int
}

// NewWordChunker validates the window parameters. A zero step would never
// advance, so overlap must stay below chunkSize.
func NewWordChunker(chunkSize, overlap int) (*WordChunker, error) {
	if chunkSize <= 0 {
		return nil, domain.ConfigError("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, domain.ConfigError("overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, domain.ConfigError("overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}
	return &WordChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the window length in words.
func (c *WordChunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the number of words shared by consecutive windows.
func (c *WordChunker) Overlap() int { return c.overlap }

// Chunk splits every document in order. Chunk ids continue across documents
// and a chunk never spans two documents. Windows start every chunkSize-overlap
// words until the start passes the last word, so the tail may repeat words
// already covered by the previous window.
func (c *WordChunker) Chunk(documents []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	id := 0
	step := c.chunkSize - c.overlap
	for _, doc := range documents {
		words := strings.Fields(doc.Content)
		for start := 0; start < len(words); start += step {
			end := min(start+c.chunkSize, len(words))
			chunks = append(chunks, domain.Chunk{
				ChunkID:  id,
				Text:     strings.Join(words[start:end], " "),
				Metadata: doc.Metadata,
			})
			id++
		}
	}
	return chunks
}
