package tfidf

import (
	"context"
	"math"
	"testing"
)

func TestEmbed_RequiresFit(t *testing.T) {
	if _, err := NewEmbedder().Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatalf("expected error before fit")
	}
}

func TestFit_DoesNotMutatePrototype(t *testing.T) {
	proto := NewEmbedder()
	fitted, err := proto.Fit(context.Background(), []string{"golang channels", "rust ownership"})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if proto.Dimension() != 0 {
		t.Fatalf("prototype was fitted in place")
	}
	if got := fitted.(*Embedder).Dimension(); got != 4 {
		t.Fatalf("expected 4 terms, got %d", got)
	}
}

func TestFit_EmptyCorpus(t *testing.T) {
	if _, err := NewEmbedder().Fit(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty corpus")
	}
	if _, err := NewEmbedder().Fit(context.Background(), []string{"the and of"}); err == nil {
		t.Fatalf("expected error for stopword-only corpus")
	}
}

func TestEmbed_SimilarTextsAreCloser(t *testing.T) {
	corpus := []string{
		"goroutines and channels make concurrency simple",
		"the borrow checker enforces ownership rules",
		"channels carry values between goroutines",
	}
	fitted, err := NewEmbedder().Fit(context.Background(), corpus)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	vecs, err := fitted.Embed(context.Background(), append(corpus, "how do channels work with goroutines", "zzz"))
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(vecs))
	}
	dist := func(a, b []float32) float64 {
		s := 0.0
		for i := range a {
			d := float64(a[i] - b[i])
			s += d * d
		}
		return math.Sqrt(s)
	}
	q := vecs[3]
	if dist(q, vecs[2]) >= dist(q, vecs[1]) {
		t.Fatalf("expected the channels chunk to be closer than the ownership chunk")
	}
	norm := 0.0
	for _, x := range q {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit vector, got squared norm %v", norm)
	}
	for _, x := range vecs[4] {
		if x != 0 {
			t.Fatalf("expected zero vector for unknown terms")
		}
	}
}
