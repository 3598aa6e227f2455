package definitions

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sanonone/termgraph/pkg/similarity"
	"github.com/sanonone/termgraph/pkg/uts"
)

var (
	markupRe = regexp.MustCompile(`<[^<>]*>`)
	// A trailing source tag such as "(NCI)", "[MSH]" or "(MeSH)."
	trailingAbbrevRe = regexp.MustCompile(`\s*[(\[][A-Z][A-Za-z0-9_.\-]*[)\]]\.?\s*$`)
	emptyBracketsRe  = regexp.MustCompile(`[(\[{]\s*[)\]}]`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// CleanText strips markup tags, trailing bracketed abbreviations and empty
// bracket pairs, decodes HTML entities and collapses whitespace.
func CleanText(s string) string {
	s = markupRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	for {
		trimmed := trailingAbbrevRe.ReplaceAllString(s, "")
		if trimmed == s {
			break
		}
		s = trimmed
	}
	s = emptyBracketsRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanDefinitions cleans every definition, drops the ones left empty,
// removes duplicates by (source, normalized text) keeping the first, and
// orders the rest by ascending text length. Equal lengths keep input order.
func CleanDefinitions(defs []uts.Definition) []uts.Definition {
	type dedupeKey struct{ source, text string }
	seen := make(map[dedupeKey]struct{}, len(defs))
	out := make([]uts.Definition, 0, len(defs))
	for _, d := range defs {
		d.Value = CleanText(d.Value)
		if d.Value == "" {
			continue
		}
		k := dedupeKey{strings.ToUpper(d.Source), similarity.Normalize(d.Value)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i].Value) < utf8.RuneCountInString(out[j].Value)
	})
	return out
}
