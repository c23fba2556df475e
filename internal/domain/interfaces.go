package domain

import "context"

// Loader extracts one Document per page with text, pages numbered from 1.
type Loader interface {
	Load(path string) ([]Document, error)
}

// Embedder converts texts into vectors of one fixed dimension.
// The output has the same length and order as the input.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([]Vector, error)
}

// Fitter is implemented by embedders that must learn from the corpus first.
// Fit returns a new embedder; the receiver is left untouched.
type Fitter interface {
	Fit(ctx context.Context, corpus []string) (Embedder, error)
}

// VectorIndex stores vectors and their chunks in lockstep.
type VectorIndex interface {
	Dimension() int
	Len() int
	Add(vectors []Vector, chunks []Chunk) error
	Search(query Vector, topK int) ([]SearchResult, error)
	Close() error
}

// Generator turns a prompt into text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
