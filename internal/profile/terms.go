// Package profile turns extracted document text and user interest signals into
// per-user term profiles.
package profile

import (
	"sort"
	"strings"
	"unicode"
)

// Term is a weighted term, used for both document terms and profile entries.
type Term struct {
	Term   string
	Weight float64
}

// minTermLen drops short tokens, which are mostly noise after stop-word filtering.
const minTermLen = 3

// Extractor pulls the most frequent meaningful terms out of plain text.
type Extractor struct {
	stopWords map[string]bool
}

// NewExtractor creates an Extractor with the built-in English stop-word list.
func NewExtractor() *Extractor {
	return &Extractor{stopWords: buildStopWords()}
}

// Extract returns up to limit terms of text weighted by normalized frequency,
// highest first. Ties are broken alphabetically so results are stable.
func (e *Extractor) Extract(text string, limit int) []Term {
	tokens := e.tokenize(text)
	if len(tokens) == 0 || limit <= 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, tok := range tokens {
		counts[tok]++
	}

	total := float64(len(tokens))
	terms := make([]Term, 0, len(counts))
	for term, n := range counts {
		terms = append(terms, Term{Term: term, Weight: float64(n) / total})
	}
	return topTerms(terms, limit)
}

func (e *Extractor) tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < minTermLen || e.stopWords[word] || isNumber(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// topTerms sorts terms by weight and keeps the first limit entries.
func topTerms(terms []Term, limit int) []Term {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

func buildStopWords() map[string]bool {
	words := []string{
		"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
		"had", "her", "was", "one", "our", "out", "has", "him", "his", "how",
		"its", "may", "new", "now", "old", "see", "two", "way", "who", "did",
		"get", "let", "say", "she", "too", "use", "this", "that", "with", "have",
		"from", "they", "will", "would", "there", "their", "what", "about", "which",
		"when", "make", "like", "time", "just", "know", "take", "into", "year",
		"your", "some", "could", "them", "than", "then", "look", "only", "come",
		"over", "also", "back", "after", "work", "first", "well", "even", "want",
		"because", "these", "give", "most", "were", "been", "more", "very", "being",
		"does", "each", "other", "such", "here", "where", "while", "should", "those",
		"shall", "upon", "must", "might", "whose", "whom", "yours", "ours", "itself",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
