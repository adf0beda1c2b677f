// Package analyzer finds query terms in result text so listings can show
// the sentence that matched instead of the first characters of a long
// description.
package analyzer

import (
	"strings"
	"unicode"
)

// minTermLen drops one-rune terms, which match nearly every sentence.
const minTermLen = 2

// TermMatch holds the occurrences of one term within a text.
type TermMatch struct {
	Term      string   `json:"term"`
	Count     int      `json:"count"`
	Sentences []string `json:"sentences"`
}

// Terms splits a free-text query into lowercase match terms. Quotes are
// stripped and duplicates removed.
func Terms(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return unicode.IsSpace(r) || r == '"' || r == '\''
	})
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.ToLower(f)
		if len([]rune(t)) < minTermLen || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}

// FindTermMatches scans content for each term, case-insensitively, and
// returns one TermMatch per term found along with the sentences containing it.
func FindTermMatches(content string, terms []string) []TermMatch {
	if len(content) == 0 || len(terms) == 0 {
		return nil
	}

	lowerContent := strings.ToLower(content)
	sentences := splitIntoSentences(content)

	results := make([]TermMatch, 0, len(terms))
	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		if lowerTerm == "" {
			continue
		}
		count := strings.Count(lowerContent, lowerTerm)
		if count == 0 {
			continue
		}
		var matched []string
		for _, s := range sentences {
			if strings.Contains(s.lower, lowerTerm) {
				matched = append(matched, s.original)
			}
		}
		results = append(results, TermMatch{Term: term, Count: count, Sentences: matched})
	}
	return results
}

// Excerpt returns the first sentence of text that contains any of terms, or
// "" when none does.
func Excerpt(text string, terms []string) string {
	if len(text) == 0 || len(terms) == 0 {
		return ""
	}
	lower := make([]string, len(terms))
	for i, t := range terms {
		lower[i] = strings.ToLower(t)
	}
	for _, s := range splitIntoSentences(text) {
		for _, t := range lower {
			if t != "" && strings.Contains(s.lower, t) {
				return s.original
			}
		}
	}
	return ""
}

type sentence struct {
	original string
	lower    string
}

// splitIntoSentences splits on '.', '!' and '?', keeping the delimiter.
func splitIntoSentences(text string) []sentence {
	if len(text) == 0 {
		return nil
	}

	// roughly one sentence per 50 bytes
	estimated := len(text) / 50
	if estimated < 1 {
		estimated = 1
	}

	sentences := make([]sentence, 0, estimated)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		sentences = append(sentences, sentence{original: s, lower: strings.ToLower(s)})
	}

	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			for end < len(text) && unicode.IsSpace(rune(text[end])) {
				end++
			}
			if end <= start {
				continue
			}
			add(text[start:end])
			start = end
		}
	}
	if start < len(text) {
		add(text[start:])
	}
	return sentences
}
