package similarity

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DistanceFunc compares two texts; 0 means identical, 1 means nothing in common.
type DistanceFunc func(a, b string) float64

// JaccardDistance is 1 minus the Jaccard index of the stemmed token sets of a and b.
func JaccardDistance(a, b string) float64 {
	setA := tokenSet(EnglishAnalyzer{}.Analyze(a))
	setB := tokenSet(EnglishAnalyzer{}.Analyze(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return 1 - float64(shared)/float64(union)
}

// CosineDistance is 1 minus the cosine similarity of the stemmed
// term-frequency vectors of a and b.
func CosineDistance(a, b string) float64 {
	tokensA := EnglishAnalyzer{}.Analyze(a)
	tokensB := EnglishAnalyzer{}.Analyze(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 0
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 1
	}

	index := make(map[string]int)
	for _, t := range append(append([]string(nil), tokensA...), tokensB...) {
		if _, ok := index[t]; !ok {
			index[t] = len(index)
		}
	}
	va := make([]float64, len(index))
	vb := make([]float64, len(index))
	for _, t := range tokensA {
		va[index[t]]++
	}
	for _, t := range tokensB {
		vb[index[t]]++
	}

	sim := floats.Dot(va, vb) / (floats.Norm(va, 2) * floats.Norm(vb, 2))
	return math.Max(0, 1-sim)
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Rank returns items ordered by ascending distance between query and
// text(item). Items at equal distance keep their input order. A nil
// distance defaults to JaccardDistance.
func Rank[T any](query string, items []T, text func(T) string, distance DistanceFunc) []T {
	if distance == nil {
		distance = JaccardDistance
	}
	type scored struct {
		item T
		d    float64
	}
	ranked := make([]scored, len(items))
	for i, it := range items {
		ranked[i] = scored{item: it, d: distance(query, text(it))}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].d < ranked[j].d })

	out := make([]T, len(ranked))
	for i, s := range ranked {
		out[i] = s.item
	}
	return out
}
