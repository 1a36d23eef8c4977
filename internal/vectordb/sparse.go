package vectordb

import (
	"math"
	"strings"
	"unicode"
)

// EncodeSparse produces a BM25-like term->weight map for a text: lowercase
// word and identifier-part tokens weighted by 1 + ln(tf). CamelCase and
// snake_case identifiers contribute their parts as separate terms so a query
// for "parse file" reaches ParseFile.
func EncodeSparse(text string) map[string]float64 {
	counts := make(map[string]int)

	for _, token := range tokenize(text) {
		counts[token]++
	}

	weights := make(map[string]float64, len(counts))
	for term, tf := range counts {
		weights[term] = 1 + math.Log(float64(tf))
	}
	return weights
}

func tokenize(text string) []string {
	var tokens []string

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	for _, word := range words {
		for _, part := range splitIdentifier(word) {
			if len(part) < 2 {
				continue
			}
			tokens = append(tokens, strings.ToLower(part))
		}
	}
	return tokens
}

// splitIdentifier breaks snake_case and camelCase words into parts, keeping
// the whole word as a token too when it was split.
func splitIdentifier(word string) []string {
	parts := strings.Split(word, "_")

	var out []string
	for _, part := range parts {
		out = append(out, splitCamel(part)...)
	}

	if len(out) > 1 {
		out = append(out, word)
	}
	return out
}

func splitCamel(word string) []string {
	var parts []string
	start := 0

	runes := []rune(word)
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && !unicode.IsUpper(runes[i-1]) {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}
