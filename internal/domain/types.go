package domain

// Metadata locates a piece of text within its source file.
type Metadata struct {
	Page   int    `json:"page" yaml:"page"`
	Source string `json:"source" yaml:"source"`
}

// Document is the text of a single page produced by a loader.
type Document struct {
	Content  string
	Metadata Metadata
}

// Chunk is a bounded window of a document's words, the unit of retrieval.
// ChunkID is sequential within one ingestion run.
type Chunk struct {
	ChunkID  int      `json:"chunk_id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Vector is a fixed-dimension embedding.
type Vector []float32

// SearchResult is a stored chunk together with its distance to the query.
// Ordinal is the insertion position of the entry inside the index.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
	Ordinal  int
}

// Citation links an answer back to a retrieved chunk.
type Citation struct {
	Source    string `json:"source"`
	Page      int    `json:"page"`
	ChunkID   int    `json:"chunk_id"`
	Highlight string `json:"highlight_text"`
}
