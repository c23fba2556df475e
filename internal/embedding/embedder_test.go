package embedding

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"notebookrag/internal/domain"
)

// indexEmbedder encodes each text's integer value as a 1-dim vector.
type indexEmbedder struct {
	calls atomic.Int32
	fail  bool
	short bool
}

func (e *indexEmbedder) Name() string { return "index" }

func (e *indexEmbedder) Embed(_ context.Context, texts []string) ([]domain.Vector, error) {
	e.calls.Add(1)
	if e.fail {
		return nil, domain.Unavailable("index", errors.New("boom"))
	}
	out := make([]domain.Vector, 0, len(texts))
	for _, t := range texts {
		n, _ := strconv.Atoi(t)
		out = append(out, domain.Vector{float32(n)})
	}
	if e.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestBatcher_PreservesOrder(t *testing.T) {
	inner := &indexEmbedder{}
	var done atomic.Int32
	b := NewBatcher(inner, 3, 4).OnBatch(func(n int) { done.Add(int32(n)) })

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}
	vecs, err := b.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Fatalf("position %d holds vector for %v", i, v[0])
		}
	}
	if got := inner.calls.Load(); got != 7 {
		t.Fatalf("expected 7 sub-batches, got %d", got)
	}
	if done.Load() != 20 {
		t.Fatalf("expected progress for 20 texts, got %d", done.Load())
	}
}

func TestBatcher_PropagatesCollaboratorFailure(t *testing.T) {
	b := NewBatcher(&indexEmbedder{fail: true}, 2, 2)
	_, err := b.Embed(context.Background(), []string{"1", "2", "3"})
	if !errors.Is(err, domain.ErrCollaboratorUnavailable) {
		t.Fatalf("expected ErrCollaboratorUnavailable, got %v", err)
	}
}

func TestBatcher_DetectsShortResponse(t *testing.T) {
	b := NewBatcher(&indexEmbedder{short: true}, 2, 1)
	_, err := b.Embed(context.Background(), []string{"1", "2"})
	if !errors.Is(err, domain.ErrCollaboratorUnavailable) {
		t.Fatalf("expected ErrCollaboratorUnavailable, got %v", err)
	}
}

func TestBatcher_FitWithoutFitter(t *testing.T) {
	b := NewBatcher(&indexEmbedder{}, 0, 0)
	fitted, err := b.Fit(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if fitted != domain.Embedder(b) {
		t.Fatalf("expected the batcher itself when no fitting is needed")
	}
}
