package memory

import (
	"sync"

	"notebookrag/internal/domain"
	"notebookrag/internal/vectorstore"
)

// Storage is an in-memory flat index searched by brute-force L2 distance.
// vectors[i] belongs to chunks[i]; both slices only ever grow together.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   []domain.Vector
	chunks    []domain.Chunk
}

// NewStorage creates an empty index of the given dimension.
func NewStorage(dimension int) (*Storage, error) {
	if dimension <= 0 {
		return nil, domain.ConfigError("invalid dimension %d", dimension)
	}
	return &Storage{dimension: dimension}, nil
}

// Open adapts NewStorage to vectorstore.Opener.
func Open(_ string, dimension int) (domain.VectorIndex, error) {
	s, err := NewStorage(dimension)
	if err != nil {
		return nil, err
	}
	return s, nil
}

var _ vectorstore.Opener = Open

func (s *Storage) Dimension() int { return s.dimension }

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Add appends the batch, or nothing at all if any vector is invalid.
func (s *Storage) Add(vectors []domain.Vector, chunks []domain.Chunk) error {
	if err := vectorstore.ValidateBatch(s.dimension, vectors, chunks); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range vectors {
		v := make(domain.Vector, len(vectors[i]))
		copy(v, vectors[i])
		s.vectors = append(s.vectors, v)
		s.chunks = append(s.chunks, chunks[i])
	}
	return nil
}

func (s *Storage) Search(query domain.Vector, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.ValidateQuery(s.dimension, query, topK); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 {
		return []domain.SearchResult{}, nil
	}
	distances := make([]float64, len(s.vectors))
	for i := range s.vectors {
		distances[i] = vectorstore.L2(s.vectors[i], query)
	}
	idxs := vectorstore.Rank(distances, topK)
	results := make([]domain.SearchResult, 0, len(idxs))
	for _, j := range idxs {
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Distance: distances[j], Ordinal: j})
	}
	return results, nil
}

func (s *Storage) Close() error { return nil }
