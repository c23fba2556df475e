package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"notebookrag/internal/chunker"
	"notebookrag/internal/domain"
	"notebookrag/internal/loader"
	"notebookrag/internal/progress"
	"notebookrag/internal/session"
	"notebookrag/internal/vectorstore"
)

// Ingester runs load → chunk → embed → index and hands back a ready session.
type Ingester struct {
	loader    domain.Loader
	chunker   *chunker.WordChunker
	embedder  domain.Embedder
	open      vectorstore.Opener
	normalize bool
	progress  progress.Reporter
	logger    *slog.Logger
}

type IngesterOption func(*Ingester)

// WithNormalize L2-normalises chunk and query vectors so that L2 ranking
// matches cosine ranking.
func WithNormalize(on bool) IngesterOption { return func(in *Ingester) { in.normalize = on } }

func WithProgress(r progress.Reporter) IngesterOption {
	return func(in *Ingester) { in.progress = r }
}

func WithLogger(l *slog.Logger) IngesterOption { return func(in *Ingester) { in.logger = l } }

func NewIngester(l domain.Loader, c *chunker.WordChunker, emb domain.Embedder, open vectorstore.Opener, opts ...IngesterOption) *Ingester {
	in := &Ingester{
		loader:   l,
		chunker:  c,
		embedder: emb,
		open:     open,
		progress: progress.Nop{},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// IngestFiles expands glob patterns (including **), loads every supported
// file in order and ingests all pages into one session.
func (in *Ingester) IngestFiles(ctx context.Context, patterns []string) (*session.Session, error) {
	paths, err := ExpandPaths(patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no supported files match %v", domain.ErrNoContent, patterns)
	}
	return in.IngestPaths(ctx, paths)
}

// IngestPaths loads the given files as they are, without glob expansion.
func (in *Ingester) IngestPaths(ctx context.Context, paths []string) (*session.Session, error) {
	var (
		docs  []domain.Document
		names []string
	)
	for _, p := range paths {
		d, err := in.loader.Load(p)
		if err != nil {
			return nil, err
		}
		in.logger.Info("loaded file", "path", p, "pages", len(d))
		docs = append(docs, d...)
		names = append(names, filepath.Base(p))
	}
	return in.Ingest(ctx, strings.Join(names, ", "), docs)
}

// Ingest indexes documents into a new session. Invalid input is rejected
// before the index is created.
func (in *Ingester) Ingest(ctx context.Context, source string, docs []domain.Document) (*session.Session, error) {
	chunks := in.chunker.Chunk(docs)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoContent, source)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	emb := in.embedder
	if f, ok := emb.(domain.Fitter); ok {
		fitted, err := f.Fit(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("fit %s: %w", emb.Name(), err)
		}
		emb = fitted
	}

	in.progress.Start(len(texts))
	vectors, err := emb.Embed(ctx, texts)
	in.progress.Finish()
	if err != nil {
		return nil, domain.Unavailable(emb.Name(), err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.Unavailable(emb.Name(), fmt.Errorf("returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}
	if in.normalize {
		for _, v := range vectors {
			vectorstore.Normalize(v)
		}
	}

	s := session.New(source)
	idx, err := in.open(s.ID, len(vectors[0]))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := idx.Add(vectors, chunks); err != nil {
		idx.Close()
		return nil, fmt.Errorf("index chunks: %w", err)
	}
	if err := s.Attach(emb, idx, in.normalize); err != nil {
		idx.Close()
		return nil, err
	}
	in.logger.Info("document indexed",
		"session", s.ID,
		"source", source,
		"pages", len(docs),
		"chunks", len(chunks),
		"dimension", idx.Dimension(),
		"embedder", emb.Name(),
	)
	return s, nil
}

// ExpandPaths resolves glob patterns to supported files, keeping the
// argument order and dropping duplicates. A pattern without matches is used
// as a literal path.
func ExpandPaths(patterns []string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			matches = []string{p}
		}
		for _, m := range matches {
			if !loader.Supported(m) {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}
