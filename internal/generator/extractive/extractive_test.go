package extractive

import (
	"context"
	"strings"
	"testing"

	"notebookrag/internal/domain"
)

func TestGenerate_PrefersQuestionTerms(t *testing.T) {
	g := New(1)
	ctx := "Rivers flow into the sea. Mountains are formed by tectonic plates.\n\n---\n\nGlaciers carve valleys slowly."
	out, err := g.Generate(context.Background(), domain.Prompt{Mode: "qa", Context: ctx, Question: "How are mountains formed?"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "Mountains are formed by tectonic plates." {
		t.Fatalf("unexpected answer %q", out)
	}
}

func TestSummarize_KeepsOriginalOrder(t *testing.T) {
	g := New(2)
	text := "Go has goroutines. Cats sleep a lot. Goroutines are cheap in Go."
	out := g.Summarize(text, "")
	if !strings.HasPrefix(out, "Go has goroutines.") || !strings.HasSuffix(out, "Goroutines are cheap in Go.") {
		t.Fatalf("unexpected summary %q", out)
	}
}

func TestSummarize_NoSentences(t *testing.T) {
	if got := New(3).Summarize("  just words without stop  ", ""); got != "just words without stop" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestSummarize_KeepsUnpunctuatedTail(t *testing.T) {
	g := New(1)
	text := "Cats sleep a lot. Dogs bark at the mailman every morning"
	if out := g.Summarize(text, "why do dogs bark"); out != "Dogs bark at the mailman every morning" {
		t.Fatalf("expected the trailing fragment, got %q", out)
	}
}

func TestSummarize_ChunksDoNotMerge(t *testing.T) {
	g := New(5)
	text := strings.Join([]string{"Rivers flow into the sea", "Glaciers carve valleys."}, domain.ContextSeparator)
	out := g.Summarize(text, "")
	if out != "Rivers flow into the sea Glaciers carve valleys." {
		t.Fatalf("unexpected summary %q", out)
	}
	if strings.Contains(out, "---") {
		t.Fatalf("separator leaked into summary %q", out)
	}
	if got := splitSentences(text); len(got) != 2 {
		t.Fatalf("expected one sentence per chunk, got %q", got)
	}
}
