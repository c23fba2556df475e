package service

import (
	"context"
	"log/slog"
	"strings"

	"notebookrag/internal/domain"
	"notebookrag/internal/session"
)

// ContextSeparator joins retrieved chunks in the context handed to the generator.
const ContextSeparator = domain.ContextSeparator

// DefaultHighlightChars bounds the excerpt carried by a citation.
const DefaultHighlightChars = 300

// Answer is the retrieval outcome: the context in rank order and one
// citation per retrieved chunk.
type Answer struct {
	Context   string                `json:"context"`
	Citations []domain.Citation     `json:"citations"`
	Results   []domain.SearchResult `json:"-"`
}

// Response is a generated answer with its grounding.
type Response struct {
	Mode      string            `json:"mode"`
	Answer    string            `json:"answer"`
	Context   string            `json:"context,omitempty"`
	Citations []domain.Citation `json:"citations"`
}

// RetrievalService turns a query into grounded context for one session.
type RetrievalService struct {
	generator      domain.Generator
	topK           int
	highlightChars int
	logger         *slog.Logger
}

func NewRetrievalService(generator domain.Generator, topK, highlightChars int, logger *slog.Logger) *RetrievalService {
	if topK <= 0 {
		topK = 5
	}
	if highlightChars <= 0 {
		highlightChars = DefaultHighlightChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalService{generator: generator, topK: topK, highlightChars: highlightChars, logger: logger}
}

// Answer embeds query, searches the session index and assembles context and
// citations nearest first. A session with nothing ingested yields
// domain.ErrNotReady. topK <= 0 uses the configured default.
func (r *RetrievalService) Answer(ctx context.Context, s *session.Session, query string, topK int) (Answer, error) {
	if s == nil || !s.Ready() {
		return Answer{}, domain.ErrNotReady
	}
	if strings.TrimSpace(query) == "" {
		return Answer{}, domain.ConfigError("empty query")
	}
	if topK <= 0 {
		topK = r.topK
	}
	vec, err := s.EmbedQuery(ctx, query)
	if err != nil {
		return Answer{}, err
	}
	results, err := s.Search(vec, topK)
	if err != nil {
		return Answer{}, err
	}
	texts := make([]string, len(results))
	citations := make([]domain.Citation, len(results))
	for i, res := range results {
		texts[i] = res.Chunk.Text
		citations[i] = domain.Citation{
			Source:    res.Chunk.Metadata.Source,
			Page:      res.Chunk.Metadata.Page,
			ChunkID:   res.Chunk.ChunkID,
			Highlight: truncateRunes(res.Chunk.Text, r.highlightChars),
		}
	}
	r.logger.Debug("retrieved", "session", s.ID, "top_k", topK, "hits", len(results))
	return Answer{
		Context:   strings.Join(texts, ContextSeparator),
		Citations: citations,
		Results:   results,
	}, nil
}

// Generate retrieves context for task and asks the generator for an answer.
func (r *RetrievalService) Generate(ctx context.Context, s *session.Session, task Task, topK int) (Response, error) {
	if task == nil {
		return Response{}, domain.ConfigError("missing task")
	}
	ans, err := r.Answer(ctx, s, task.Query(), topK)
	if err != nil {
		return Response{}, err
	}
	prompt := domain.Prompt{Mode: task.Mode(), Context: ans.Context, Question: task.Question()}
	text, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return Response{}, domain.Unavailable(r.generator.Name(), err)
	}
	r.logger.Info("generated", "session", s.ID, "mode", task.Mode(), "generator", r.generator.Name(), "citations", len(ans.Citations))
	return Response{Mode: task.Mode(), Answer: text, Context: ans.Context, Citations: ans.Citations}, nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
