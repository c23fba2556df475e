package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"notebookrag/internal/domain"
)

// Batcher splits large inputs into sub-batches and embeds them concurrently.
// Vectors are written back by position, so output order always matches input.
type Batcher struct {
	embedder    domain.Embedder
	batchSize   int
	concurrency int
	onBatch     func(done int)
}

// NewBatcher wraps embedder. Non-positive sizes fall back to 32 texts per
// call and 4 calls in flight.
func NewBatcher(embedder domain.Embedder, batchSize, concurrency int) *Batcher {
	if batchSize <= 0 {
		batchSize = 32
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Batcher{embedder: embedder, batchSize: batchSize, concurrency: concurrency}
}

// OnBatch registers a callback invoked with the number of texts of every
// finished sub-batch. It may be called from several goroutines.
func (b *Batcher) OnBatch(fn func(done int)) *Batcher {
	b.onBatch = fn
	return b
}

func (b *Batcher) Name() string { return b.embedder.Name() }

// Embed embeds texts and checks that every vector came back with one dimension.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := b.embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return domain.Unavailable(b.embedder.Name(), fmt.Errorf("returned %d vectors for %d texts", len(vecs), end-start))
			}
			copy(out[start:end], vecs)
			if b.onBatch != nil {
				b.onBatch(end - start)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i := 1; i < len(out); i++ {
		if len(out[i]) != len(out[0]) {
			return nil, domain.Unavailable(b.embedder.Name(), fmt.Errorf("text %d: %w", i, &domain.DimensionError{Want: len(out[0]), Got: len(out[i])}))
		}
	}
	return out, nil
}

// Fit forwards to the wrapped embedder when it needs fitting.
func (b *Batcher) Fit(ctx context.Context, corpus []string) (domain.Embedder, error) {
	f, ok := b.embedder.(domain.Fitter)
	if !ok {
		return b, nil
	}
	fitted, err := f.Fit(ctx, corpus)
	if err != nil {
		return nil, err
	}
	return &Batcher{embedder: fitted, batchSize: b.batchSize, concurrency: b.concurrency, onBatch: b.onBatch}, nil
}
