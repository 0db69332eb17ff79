// Package extractive answers from the retrieved context alone, without a
// language model. Sentences are ranked by normalized token frequency across
// the context, boosted by overlap with the query.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"convrag/internal/domain"
)

// NoAnswer is returned when the context holds nothing related to the query.
const NoAnswer = "I don't know."

// Generator is an offline domain.Generator.
type Generator struct {
	maxSentences int
	tokenPattern *regexp.Regexp
	sentencePat  *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates a generator answering with at most maxSentences sentences.
func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Generator{
		maxSentences: maxSentences,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		sentencePat:  regexp.MustCompile(`(?m)[^.!?\n]+(?:[.!?]+|$)`),
		stopwords:    defaultStopwords(),
	}
}

// Generate picks the context sentences that best match the query and returns
// them in their original order. History is not used.
func (g *Generator) Generate(ctx context.Context, query string, chunks []string, _ []domain.ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sentences []string
	seen := make(map[string]struct{})
	for _, c := range chunks {
		for _, s := range g.sentencePat.FindAllString(c, -1) {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			sentences = append(sentences, s)
		}
	}
	qset := make(map[string]struct{})
	for _, t := range g.tokens(query) {
		qset[t] = struct{}{}
	}
	if len(sentences) == 0 || len(qset) == 0 {
		return NoAnswer, nil
	}

	freq := map[string]float64{}
	for _, s := range sentences {
		for _, t := range g.tokens(s) {
			freq[t]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	for i, s := range sentences {
		toks := g.tokens(s)
		if len(toks) == 0 {
			continue
		}
		overlap, weight := 0, 0.0
		for _, t := range toks {
			weight += freq[t] / maxF
			if _, ok := qset[t]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		ranked = append(ranked, scored{i, float64(overlap) + weight/math.Sqrt(float64(len(toks)))})
	}
	if len(ranked) == 0 {
		return NoAnswer, nil
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > g.maxSentences {
		ranked = ranked[:g.maxSentences]
	}
	selected := make([]int, len(ranked))
	for i, r := range ranked {
		selected[i] = r.idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

func (g *Generator) tokens(text string) []string {
	raw := g.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := g.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "where", "when", "why", "how", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
