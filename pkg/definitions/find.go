package definitions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sanonone/termgraph/pkg/metrics"
	"github.com/sanonone/termgraph/pkg/similarity"
	"github.com/sanonone/termgraph/pkg/uts"
	"github.com/sanonone/termgraph/pkg/vocab"
)

// FindRequest asks for the defined concepts nearest to a source code or,
// failing that, to a free-text description.
type FindRequest struct {
	SourceVocabulary  string        `json:"source_vocabulary,omitempty"`
	SourceCode        string        `json:"source_code,omitempty"`
	SourceDescription string        `json:"source_description,omitempty"`
	Options           SearchOptions `json:"options"`
	// TopK bounds the fuzzy candidates tried; 0 uses the searcher default.
	TopK int `json:"top_k,omitempty"`
}

// fuzzySearchTypes are tried in order until one yields candidates with definitions.
var fuzzySearchTypes = []string{uts.SearchWords, uts.SearchNormalizedWords, uts.SearchApproximate}

// fuzzyPageSize bounds the hits collected per fuzzy query.
const fuzzyPageSize = 25

// FindDefinedConcepts maps a source code to UMLS concepts and searches
// definitions from each of them, returning the union ordered by distance.
// When the code finds nothing and a description is given, the description
// is searched with increasingly loose matching and the best ranked
// candidates are tried in order; the first one with results wins.
func (s *Searcher) FindDefinedConcepts(ctx context.Context, req FindRequest) ([]uts.Concept, error) {
	if req.SourceCode == "" && strings.TrimSpace(req.SourceDescription) == "" {
		metrics.SearchesTotal.WithLabelValues("find", "invalid").Inc()
		return nil, &vocab.ConfigurationError{Field: "source", Value: "", Reason: "a source code or a description is required"}
	}
	var sab string
	if req.SourceVocabulary != "" {
		abbrev, err := s.vocab.ValidateAbbreviation(req.SourceVocabulary)
		if err != nil {
			metrics.SearchesTotal.WithLabelValues("find", "invalid").Inc()
			return nil, err
		}
		sab = abbrev
	}
	p, err := s.prepare(req.Options)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("find", "invalid").Inc()
		return nil, err
	}

	results, err := s.find(ctx, req, sab, p)
	switch {
	case err != nil:
		metrics.SearchesTotal.WithLabelValues("find", "error").Inc()
	case len(results) == 0:
		metrics.SearchesTotal.WithLabelValues("find", "empty").Inc()
	default:
		metrics.SearchesTotal.WithLabelValues("find", "found").Inc()
	}
	return results, err
}

func (s *Searcher) find(ctx context.Context, req FindRequest, sab string, p *plan) ([]uts.Concept, error) {
	logger := s.logger.With("sab", sab, "code", req.SourceCode)

	if req.SourceCode != "" {
		cuis, err := s.conceptsForCode(ctx, req.SourceCode, sab)
		if err != nil {
			return nil, err
		}
		logger.Debug("Code resolved", "concepts", cuis)

		var merged []uts.Concept
		for _, cui := range cuis {
			found, err := s.search(ctx, cui, p)
			if err != nil {
				return nil, err
			}
			merged = unionByCUI(merged, found)
		}
		if len(merged) > 0 {
			return merged, nil
		}
	}

	description := strings.TrimSpace(req.SourceDescription)
	if description == "" {
		return nil, nil
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}
	logger.Debug("Falling back to description search", "description", description, "top_k", topK)
	return s.fuzzy(ctx, description, topK, p)
}

// conceptsForCode runs an exact source-code search, retrying with obsolete
// and suppressible content included when the first attempt finds nothing.
func (s *Searcher) conceptsForCode(ctx context.Context, code, sab string) ([]string, error) {
	q := uts.SearchQuery{
		String:       code,
		InputType:    "sourceUi",
		SearchType:   uts.SearchExact,
		ReturnIDType: "concept",
	}
	if sab != "" {
		q.Vocabularies = []string{sab}
	}

	hits, err := s.term.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search code %s: %w", code, err)
	}
	if len(hits) == 0 {
		q.IncludeObsolete = true
		q.IncludeSuppressible = true
		if hits, err = s.term.Search(ctx, q); err != nil {
			return nil, fmt.Errorf("search code %s: %w", code, err)
		}
	}
	return uniqueIDs(hits), nil
}

func uniqueIDs(hits []uts.SearchResult) []string {
	seen := make(map[string]struct{}, len(hits))
	var ids []string
	for _, h := range hits {
		if h.UI == "" {
			continue
		}
		if _, dup := seen[h.UI]; dup {
			continue
		}
		seen[h.UI] = struct{}{}
		ids = append(ids, h.UI)
	}
	return ids
}

// unionByCUI merges found into acc keeping the closest occurrence of each
// concept, then orders by distance. Ties keep first-seen order.
func unionByCUI(acc, found []uts.Concept) []uts.Concept {
	index := make(map[string]int, len(acc))
	for i, c := range acc {
		index[c.CUI] = i
	}
	for _, c := range found {
		i, ok := index[c.CUI]
		if !ok {
			index[c.CUI] = len(acc)
			acc = append(acc, c)
			continue
		}
		if distanceOf(c) < distanceOf(acc[i]) {
			acc[i] = c
		}
	}
	sort.SliceStable(acc, func(i, j int) bool { return distanceOf(acc[i]) < distanceOf(acc[j]) })
	return acc
}

func distanceOf(c uts.Concept) int {
	if c.Distance == nil {
		return 0
	}
	return *c.Distance
}

// fuzzy escalates through the fuzzy search types. For each one, the raw and
// the normalized description are searched, the hits are ranked by distance
// to the description and the top k are searched for definitions.
func (s *Searcher) fuzzy(ctx context.Context, description string, k int, p *plan) ([]uts.Concept, error) {
	queries := []string{description}
	if normalized := similarity.NormalizeQuery(description); normalized != "" && normalized != description {
		queries = append(queries, normalized)
	}

	tried := make(map[string]struct{})
	for _, searchType := range fuzzySearchTypes {
		candidates, err := s.fuzzyCandidates(ctx, queries, searchType)
		if err != nil {
			return nil, err
		}
		ranked := similarity.Rank(description, candidates, func(r uts.SearchResult) string { return r.Name }, s.distance)
		if len(ranked) > k {
			ranked = ranked[:k]
		}
		for _, c := range ranked {
			if _, done := tried[c.UI]; done {
				continue
			}
			tried[c.UI] = struct{}{}
			found, err := s.search(ctx, c.UI, p)
			if err != nil {
				return nil, err
			}
			if len(found) > 0 {
				s.logger.Debug("Description matched", "search_type", searchType, "concept", c.UI, "name", c.Name)
				return found, nil
			}
		}
	}
	return nil, nil
}

func (s *Searcher) fuzzyCandidates(ctx context.Context, queries []string, searchType string) ([]uts.SearchResult, error) {
	seen := make(map[string]struct{})
	var out []uts.SearchResult
	for _, text := range queries {
		hits, err := s.term.Search(ctx, uts.SearchQuery{
			String:       text,
			SearchType:   searchType,
			ReturnIDType: "concept",
			PageSize:     fuzzyPageSize,
			MaxResults:   fuzzyPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("%s search %q: %w", searchType, text, err)
		}
		for _, h := range hits {
			if h.UI == "" {
				continue
			}
			if _, dup := seen[h.UI]; dup {
				continue
			}
			seen[h.UI] = struct{}{}
			out = append(out, h)
		}
	}
	return out, nil
}
