// Package extractive answers offline by picking the highest-ranked sentences
// of the retrieved context. It needs no model and is the default generator.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"notebookrag/internal/domain"
)

var (
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

// Generator ranks sentences by word frequency (stopwords filtered), boosted
// by overlap with the question when there is one.
type Generator struct {
	maxSentences int
	stopwords    map[string]struct{}
}

// New creates an extractive generator returning at most maxSentences sentences.
func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Generator{maxSentences: maxSentences, stopwords: defaultStopwords()}
}

func (g *Generator) Name() string { return "extractive" }

// Generate returns the selected sentences in their original order.
func (g *Generator) Generate(_ context.Context, prompt domain.Prompt) (string, error) {
	return g.Summarize(prompt.Context, prompt.Question), nil
}

// Summarize ranks the sentences of text.
func (g *Generator) Summarize(text, question string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	// Compute word frequencies
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range g.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	asked := map[string]struct{}{}
	for _, tok := range g.tokens(question) {
		asked[tok] = struct{}{}
	}
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := g.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
			if _, ok := asked[tok]; ok {
				score += 1
			}
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	n := min(g.maxSentences, len(scores))
	// Keep original order among selected
	selected := make([]int, n)
	for i := range n {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, strings.Join(strings.Fields(sentences[idx]), " "))
	}
	return strings.Join(out, " ")
}

// splitSentences splits each context chunk on end punctuation. A trailing
// fragment without punctuation counts as a sentence of its own.
func splitSentences(text string) []string {
	var out []string
	for _, part := range strings.Split(text, domain.ContextSeparator) {
		for _, s := range sentencePattern.FindAllString(part, -1) {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func (g *Generator) tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, ok := g.stopwords[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "how", "why", "when", "where", "who", "does", "do",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
