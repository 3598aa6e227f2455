// Package similarity ranks free-text candidates against a query.
//
// Text goes through the same pipeline everywhere: unicode folding, tokenizing
// on letters and digits, English stop word removal and Porter2 stemming. Two
// token distances are offered on top of it, and Rank orders candidates by
// either one without disturbing the order of ties.
package similarity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Analyzer turns text into the tokens compared by the distance functions.
type Analyzer interface {
	Analyze(text string) []string
}

// tokenRe matches runs of letters or digits in any script.
var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize splits text into lowercase words.
func Tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "which": {}, "with": {},
}

// IsStopWord reports whether token is an English stop word.
func IsStopWord(token string) bool {
	_, ok := englishStopWords[token]
	return ok
}

// FilterStopWords removes English stop words from tokens.
func FilterStopWords(tokens []string) []string {
	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !IsStopWord(token) {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

// foldTransformer strips combining marks after canonical decomposition ("é" → "e").
func foldTransformer() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize folds accents and compatibility forms, lowercases, and joins the
// words of text with single spaces.
func Normalize(text string) string {
	folded, _, err := transform.String(foldTransformer(), text)
	if err != nil {
		folded = text
	}
	return strings.Join(Tokenize(folded), " ")
}

// NormalizeQuery is Normalize with stop words removed, the second reading of a
// free-text query tried by fuzzy search.
func NormalizeQuery(text string) string {
	folded, _, err := transform.String(foldTransformer(), text)
	if err != nil {
		folded = text
	}
	return strings.Join(FilterStopWords(Tokenize(folded)), " ")
}

// EnglishAnalyzer folds, tokenizes, drops stop words and stems.
type EnglishAnalyzer struct{}

// Analyze implements Analyzer.
func (EnglishAnalyzer) Analyze(text string) []string {
	tokens := FilterStopWords(strings.Fields(Normalize(text)))
	for i, t := range tokens {
		tokens[i] = Stem(t)
	}
	return tokens
}
