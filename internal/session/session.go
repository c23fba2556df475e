// Package session scopes one ingested document set: its fitted embedder and
// its vector index. Nothing here is global, so independent sessions can live
// side by side.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"notebookrag/internal/domain"
	"notebookrag/internal/vectorstore"
)

// Session holds the state of one ingestion. It is Ready once Attach stored
// an index; from then on it is read-only.
type Session struct {
	ID        string
	Source    string
	CreatedAt time.Time

	mu        sync.RWMutex
	embedder  domain.Embedder
	index     domain.VectorIndex
	normalize bool
}

// New creates an empty session for source.
func New(source string) *Session {
	return &Session{ID: uuid.NewString(), Source: source, CreatedAt: time.Now()}
}

// Attach makes the session ready. It can only happen once.
func (s *Session) Attach(embedder domain.Embedder, index domain.VectorIndex, normalize bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return fmt.Errorf("session %s already holds an index", s.ID)
	}
	s.embedder = embedder
	s.index = index
	s.normalize = normalize
	return nil
}

// Ready reports whether a document has been ingested.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil
}

// Len returns the number of indexed chunks.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return 0
	}
	return s.index.Len()
}

// EmbedQuery embeds text with the session's embedder as a batch of one.
func (s *Session) EmbedQuery(ctx context.Context, text string) (domain.Vector, error) {
	s.mu.RLock()
	emb, normalize := s.embedder, s.normalize
	s.mu.RUnlock()
	if emb == nil {
		return nil, domain.ErrNotReady
	}
	vecs, err := emb.Embed(ctx, []string{text})
	if err != nil {
		return nil, domain.Unavailable(emb.Name(), err)
	}
	if len(vecs) != 1 {
		return nil, domain.Unavailable(emb.Name(), fmt.Errorf("returned %d vectors for one query", len(vecs)))
	}
	if normalize {
		return vectorstore.Normalize(vecs[0]), nil
	}
	return vecs[0], nil
}

// Search queries the session index, nearest first.
func (s *Session) Search(query domain.Vector, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx == nil {
		return nil, domain.ErrNotReady
	}
	return idx.Search(query, topK)
}

// Close releases the index.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}
