package qdrant

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"notebookrag/internal/domain"
	"notebookrag/internal/vectorstore"
)

// Storage is a minimal REST client to a Qdrant collection using Euclid distance.
// Point ids are insertion ordinals; each point carries its chunk as payload.
type Storage struct {
	mu         sync.RWMutex
	url        string
	apiKey     string
	collection string
	dimension  int
	size       int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewOpener returns an Opener that maps each session to the collection
// "<Collection>_<name>".
func NewOpener(cfg Config) vectorstore.Opener {
	return func(name string, dimension int) (domain.VectorIndex, error) {
		c := cfg
		if c.Collection == "" {
			c.Collection = "notebookrag"
		}
		c.Collection = c.Collection + "_" + name
		s, err := NewStorage(c, dimension)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// NewStorage connects to the collection, creating it when missing.
func NewStorage(cfg Config, dimension int) (*Storage, error) {
	if dimension <= 0 {
		return nil, domain.ConfigError("invalid dimension %d", dimension)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s := &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: timeout},
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) init() error {
	var info struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := s.do(http.MethodGet, s.collectionURL(""), nil, &info)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusOK {
		if got := info.Result.Config.Params.Vectors.Size; got != s.dimension {
			return fmt.Errorf("collection %s: %w", s.collection, &domain.DimensionError{Want: got, Got: s.dimension})
		}
		s.size = info.Result.PointsCount
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Euclid",
		},
	}
	if _, err := s.do(http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}
	return nil
}

func (s *Storage) Dimension() int { return s.dimension }

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *Storage) Add(vectors []domain.Vector, chunks []domain.Chunk) error {
	if err := vectorstore.ValidateBatch(s.dimension, vectors, chunks); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":     s.size + i,
			"vector": vectors[i],
			"payload": map[string]any{
				"chunk_id": chunks[i].ChunkID,
				"text":     chunks[i].Text,
				"page":     chunks[i].Metadata.Page,
				"source":   chunks[i].Metadata.Source,
			},
		}
	}
	body := map[string]any{"points": points}
	if _, err := s.do(http.MethodPut, s.collectionURL("/points?wait=true"), body, nil); err != nil {
		return err
	}
	s.size += len(chunks)
	return nil
}

// tieSlack is how many extra hits are requested beyond topK so that entries
// tied at the cut-off distance can be ordered by ordinal on this side.
const tieSlack = 8

func (s *Storage) Search(vector domain.Vector, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.ValidateQuery(s.dimension, vector, topK); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.size == 0 {
		return []domain.SearchResult{}, nil
	}
	limit := min(topK+tieSlack, s.size)
	for {
		results, err := s.search(vector, limit)
		if err != nil {
			return nil, err
		}
		slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
			if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
				return c
			}
			return cmp.Compare(a.Ordinal, b.Ordinal)
		})
		if len(results) <= topK {
			return results, nil
		}
		// The server cut the list inside a run of ties; widen and ask again.
		if len(results) == limit && limit < s.size && results[len(results)-1].Distance == results[topK-1].Distance {
			limit = min(limit*2, s.size)
			continue
		}
		return results[:topK], nil
	}
}

func (s *Storage) search(vector domain.Vector, limit int) ([]domain.SearchResult, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      int     `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				ChunkID int    `json:"chunk_id"`
				Text    string `json:"text"`
				Page    int    `json:"page"`
				Source  string `json:"source"`
			} `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{
			Chunk: domain.Chunk{
				ChunkID:  r.Payload.ChunkID,
				Text:     r.Payload.Text,
				Metadata: domain.Metadata{Page: r.Payload.Page, Source: r.Payload.Source},
			},
			// Euclid collections report the distance itself as score.
			Distance: r.Score,
			Ordinal:  r.ID,
		})
	}
	return results, nil
}

// Close leaves the collection in place; the server owns its durability.
func (s *Storage) Close() error { return nil }

// Drop deletes the collection.
func (s *Storage) Drop() error {
	_, err := s.do(http.MethodDelete, s.collectionURL(""), nil, nil)
	return err
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) do(method, url string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, domain.Unavailable("qdrant", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return resp.StatusCode, domain.Unavailable("qdrant", fmt.Errorf("%s %s: %s", method, url, resp.Status))
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
