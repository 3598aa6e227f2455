package definitions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/termgraph/pkg/client"
	"github.com/sanonone/termgraph/pkg/graph"
	"github.com/sanonone/termgraph/pkg/uts"
	"github.com/sanonone/termgraph/pkg/vocab"
)

const cuiBase = "https://uts-ws.nlm.nih.gov/rest/content/current/CUI/"

// fakeTerminology is an in-memory concept graph.
type fakeTerminology struct {
	mu       sync.Mutex
	concepts map[string]*uts.Concept
	defs     map[string][]uts.Definition
	rels     map[string][]uts.Relation
	// searches is keyed by "searchType|string".
	searches map[string][]uts.SearchResult
	details  map[string]*uts.SemanticTypeDetail
	failDefs map[string]error

	defCalls   []string
	relQueries []uts.RelationQuery
	searchLog  []uts.SearchQuery
}

func newFake() *fakeTerminology {
	return &fakeTerminology{
		concepts: map[string]*uts.Concept{},
		defs:     map[string][]uts.Definition{},
		rels:     map[string][]uts.Relation{},
		searches: map[string][]uts.SearchResult{},
		details:  map[string]*uts.SemanticTypeDetail{},
		failDefs: map[string]error{},
	}
}

func (f *fakeTerminology) concept(cui, name string, types ...string) *fakeTerminology {
	c := &uts.Concept{CUI: cui, Name: name}
	for _, t := range types {
		c.SemanticTypes = append(c.SemanticTypes, uts.SemanticType{Name: t, URI: "https://uts-ws.nlm.nih.gov/rest/semantic-network/current/TUI/" + t})
	}
	f.concepts[cui] = c
	return f
}

func (f *fakeTerminology) define(cui, source, text string) *fakeTerminology {
	f.defs[cui] = append(f.defs[cui], uts.Definition{Value: text, Source: source})
	return f
}

func (f *fakeTerminology) relate(from, label, to string) *fakeTerminology {
	f.rels[from] = append(f.rels[from], uts.Relation{Label: label, RelatedID: cuiBase + to, RootSource: "MSH"})
	return f
}

func (f *fakeTerminology) Concept(_ context.Context, cui string) (*uts.Concept, error) {
	c, ok := f.concepts[cui]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeTerminology) Definitions(_ context.Context, cui string) ([]uts.Definition, error) {
	f.mu.Lock()
	f.defCalls = append(f.defCalls, cui)
	f.mu.Unlock()
	if err := f.failDefs[cui]; err != nil {
		return nil, err
	}
	return append([]uts.Definition(nil), f.defs[cui]...), nil
}

func (f *fakeTerminology) Relations(_ context.Context, cui string, q uts.RelationQuery) ([]uts.Relation, error) {
	f.mu.Lock()
	f.relQueries = append(f.relQueries, q)
	f.mu.Unlock()
	var out []uts.Relation
	for _, r := range f.rels[cui] {
		if (r.Obsolete && !q.IncludeObsolete) || (r.Suppressible && !q.IncludeSuppressible) {
			continue
		}
		for _, l := range q.Labels {
			if l == r.Label {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTerminology) ResolveConceptID(_ context.Context, ref string) (string, error) {
	return strings.TrimPrefix(ref, cuiBase), nil
}

func (f *fakeTerminology) SemanticTypeDetail(_ context.Context, uri string) (*uts.SemanticTypeDetail, error) {
	return f.details[uri], nil
}

func (f *fakeTerminology) Search(_ context.Context, q uts.SearchQuery) ([]uts.SearchResult, error) {
	f.mu.Lock()
	f.searchLog = append(f.searchLog, q)
	f.mu.Unlock()
	key := q.SearchType + "|" + q.String
	if q.IncludeObsolete {
		if hits, ok := f.searches["obsolete:"+key]; ok {
			return hits, nil
		}
	}
	return f.searches[key], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSearcher(f *fakeTerminology) *Searcher {
	return New(f, vocab.Default(), WithLogger(quietLogger()))
}

func ids(concepts []uts.Concept) []string {
	out := make([]string, len(concepts))
	for i, c := range concepts {
		out[i] = c.CUI
	}
	return out
}

func distances(concepts []uts.Concept) []int {
	out := make([]int, len(concepts))
	for i, c := range concepts {
		out[i] = -1
		if c.Distance != nil {
			out[i] = *c.Distance
		}
	}
	return out
}

func TestSearchDefinitions_SynonymWithDefinition(t *testing.T) {
	f := newFake().
		concept("C1", "Start").
		concept("C2", "Synonym").
		relate("C1", uts.LabelSynonym, "C2").
		define("C2", "MSH", "A synonym definition.")

	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "C2", got[0].CUI)
	require.NotNil(t, got[0].Distance)
	assert.Equal(t, 1, *got[0].Distance)
	require.Len(t, got[0].Definitions, 1)
	assert.Equal(t, "A synonym definition.", got[0].Definitions[0].Value)
}

func TestSearchDefinitions_StartDefinedStopsAtZero(t *testing.T) {
	f := newFake().
		concept("C1", "Start").
		define("C1", "NCI", "Start definition.").
		relate("C1", uts.LabelNarrower, "C2").
		define("C2", "MSH", "Parent definition.")

	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, ids(got))
	assert.Equal(t, []string{"C1"}, f.defCalls, "neighbors of a defined start must not be visited")
}

func TestSearchDefinitions_StopOnFoundFinishesLayer(t *testing.T) {
	// C1 -> C2, C3, C4 at distance 1; C2 -> C5 at distance 2.
	f := newFake().
		relate("C1", uts.LabelNarrower, "C2").
		relate("C1", uts.LabelChild, "C3").
		relate("C1", uts.LabelSynonym, "C4").
		relate("C2", uts.LabelNarrower, "C5").
		relate("C3", uts.LabelNarrower, "C6").
		define("C3", "MSH", "Three.").
		define("C4", "MSH", "Four.").
		define("C5", "MSH", "Five.").
		define("C6", "MSH", "Six.")

	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"C3", "C4"}, ids(got))
	assert.Equal(t, []int{1, 1}, distances(got))
	assert.NotContains(t, f.defCalls, "C6", "nodes beyond the first defined layer are never visited")
	assert.NotContains(t, f.defCalls, "C5")
}

func TestSearchDefinitions_ExhaustiveWalk(t *testing.T) {
	f := newFake().
		define("C1", "MSH", "One.").
		relate("C1", uts.LabelNarrower, "C2").
		relate("C2", uts.LabelNarrower, "C3").
		relate("C3", uts.LabelNarrower, "C1").
		define("C3", "MSH", "Three.")

	opts := DefaultSearchOptions()
	opts.StopOnFound = false
	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C3"}, ids(got))
	assert.Equal(t, []int{0, 2}, distances(got))
	assert.Equal(t, []string{"C1", "C2", "C3"}, f.defCalls, "cycles must not revisit nodes")
}

func TestSearchDefinitions_MaxDistance(t *testing.T) {
	// A chain C0 -> C1 -> ... -> C9, defined everywhere.
	f := newFake()
	for i := 0; i < 10; i++ {
		cui := "C" + string(rune('0'+i))
		f.define(cui, "MSH", "Definition of "+cui)
		if i < 9 {
			f.relate(cui, uts.LabelNarrower, "C"+string(rune('0'+i+1)))
		}
	}

	opts := DefaultSearchOptions()
	opts.StopOnFound = false
	opts.MaxDistance = 2
	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C0", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"C0", "C1", "C2"}, ids(got))
	assert.Equal(t, []string{"C0", "C1", "C2"}, f.defCalls)
}

func TestSearchDefinitions_Direction(t *testing.T) {
	f := newFake().
		relate("C1", uts.LabelNarrower, "CB").
		relate("C1", uts.LabelBroader, "CN").
		define("CB", "MSH", "More general.").
		define("CN", "MSH", "More specific.")
	s := newSearcher(f)

	broader, err := s.SearchDefinitions(context.Background(), "C1", DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"CB"}, ids(broader))

	opts := DefaultSearchOptions()
	opts.Direction = Narrower
	narrower, err := s.SearchDefinitions(context.Background(), "C1", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"CN"}, ids(narrower))
}

func TestSearchDefinitions_RelationQueryAndFallback(t *testing.T) {
	f := newFake().define("C2", "MSH", "Reached through an obsolete link.")
	f.rels["C1"] = []uts.Relation{{Label: uts.LabelSynonym, RelatedID: cuiBase + "C2", Obsolete: true}}

	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"C2"}, ids(got))

	require.Len(t, f.relQueries, 2)
	first, second := f.relQueries[0], f.relQueries[1]
	assert.Equal(t, []string{"SY", "RN", "CHD"}, first.Labels)
	assert.Contains(t, first.Vocabularies, "MSH")
	assert.NotContains(t, first.Vocabularies, "MSHFRE", "relations are restricted to the target language")
	assert.False(t, first.IncludeObsolete)
	assert.True(t, second.IncludeObsolete)
	assert.True(t, second.IncludeSuppressible)
}

func TestSearchDefinitions_TargetVocabularies(t *testing.T) {
	f := newFake().
		define("C1", "NCI", "Only NCI here.").
		relate("C1", uts.LabelSynonym, "C2").
		define("C2", "MSH", "MeSH definition.").
		define("C2", "NCI", "NCI definition.")

	opts := DefaultSearchOptions()
	opts.TargetVocabularies = []string{"msh"}
	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", opts)
	require.NoError(t, err)
	require.Equal(t, []string{"C2"}, ids(got))
	require.Len(t, got[0].Definitions, 1)
	assert.Equal(t, "MSH", got[0].Definitions[0].Source)
}

func TestSearchDefinitions_VisitOrderProperty(t *testing.T) {
	// A small lattice with shared children and a back edge.
	f := newFake().
		relate("A", uts.LabelNarrower, "B").
		relate("A", uts.LabelChild, "C").
		relate("B", uts.LabelNarrower, "D").
		relate("C", uts.LabelNarrower, "D").
		relate("C", uts.LabelSynonym, "E").
		relate("D", uts.LabelNarrower, "A").
		relate("E", uts.LabelNarrower, "F")

	var order []string
	var dists []int
	opts := DefaultSearchOptions()
	opts.StopOnFound = false
	opts.PreVisit = func(cui string, distance int, _ graph.Pending) (graph.Action, error) {
		order = append(order, cui)
		dists = append(dists, distance)
		return graph.Proceed, nil
	}
	_, err := newSearcher(f).SearchDefinitions(context.Background(), "A", opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, order)
	assert.IsNonDecreasing(t, dists)
}

func TestSearchDefinitions_PreVisitStop(t *testing.T) {
	f := newFake().
		relate("C1", uts.LabelNarrower, "C2").
		define("C2", "MSH", "Never reached.")
	opts := DefaultSearchOptions()
	opts.PreVisit = func(cui string, _ int, _ graph.Pending) (graph.Action, error) {
		if cui == "C2" {
			return graph.Stop, nil
		}
		return graph.Proceed, nil
	}
	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", opts)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchDefinitions_CleansDefinitions(t *testing.T) {
	f := newFake().
		define("C1", "MSH", "A <b>long</b>   definition &amp; more text. (MSH)").
		define("C1", "MSH", "A long definition & more text.").
		define("C1", "NCI", "Short one. [NCI]").
		define("C1", "NCI", "<p></p>")

	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	defs := got[0].Definitions
	require.Len(t, defs, 2)
	assert.Equal(t, "Short one.", defs[0].Value)
	assert.Equal(t, "A long definition & more text.", defs[1].Value)
}

func TestSearchDefinitions_PreserveSemanticType(t *testing.T) {
	// Layer 1 holds a Disease and a Finding, both defined.
	build := func() *fakeTerminology {
		f := newFake().
			concept("C1", "Start", "Disease").
			concept("C2", "Related disease", "Disease").
			concept("C3", "Related finding", "Finding").
			concept("C4", "Deeper disease", "Disease").
			relate("C1", uts.LabelSynonym, "C3").
			relate("C1", uts.LabelNarrower, "C2").
			relate("C3", uts.LabelNarrower, "C4").
			define("C2", "MSH", "A disease.").
			define("C3", "MSH", "A finding.").
			define("C4", "MSH", "Another disease.")
		f.details["https://uts-ws.nlm.nih.gov/rest/semantic-network/current/TUI/Disease"] = &uts.SemanticTypeDetail{UI: "T047", Name: "Disease or Syndrome"}
		return f
	}

	for _, stop := range []bool{true, false} {
		opts := DefaultSearchOptions()
		opts.StopOnFound = stop

		plain, err := newSearcher(build()).SearchDefinitions(context.Background(), "C1", opts)
		require.NoError(t, err)

		opts.PreserveSemanticType = true
		preserved, err := newSearcher(build()).SearchDefinitions(context.Background(), "C1", opts)
		require.NoError(t, err)

		assert.Subset(t, ids(plain), ids(preserved), "stop_on_found=%v", stop)
		assert.NotContains(t, ids(preserved), "C3")
		require.NotEmpty(t, preserved)
		require.NotEmpty(t, preserved[0].SemanticTypes)
		require.NotNil(t, preserved[0].SemanticTypes[0].Detail)
		assert.Equal(t, "T047", preserved[0].SemanticTypes[0].Detail.UI)
	}
}

func TestSearchDefinitions_PreserveSemanticTypeStopsOnFilteredLayer(t *testing.T) {
	// Layer 1 only holds a defined Finding; the Disease sits on layer 2.
	f := newFake().
		concept("C1", "Start", "Disease").
		concept("C2", "Finding", "Finding").
		concept("C3", "Disease", "Disease").
		relate("C1", uts.LabelSynonym, "C2").
		relate("C2", uts.LabelNarrower, "C3").
		define("C2", "MSH", "A finding.").
		define("C3", "MSH", "A disease.")

	opts := DefaultSearchOptions()
	opts.PreserveSemanticType = true
	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", opts)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotContains(t, f.defCalls, "C3", "the walk stops after the first defined layer")
}

func TestSearchDefinitions_UnknownStart(t *testing.T) {
	got, err := newSearcher(newFake()).SearchDefinitions(context.Background(), "C404", DefaultSearchOptions())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchDefinitions_ConfigurationErrors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*SearchOptions)
		field  string
	}{
		{"unknown language", func(o *SearchOptions) { o.TargetLanguage = "XXX" }, "language"},
		{"unknown vocabulary", func(o *SearchOptions) { o.TargetVocabularies = []string{"NOPE"} }, "vocabulary"},
		{"vocabulary outside language", func(o *SearchOptions) {
			o.TargetVocabularies = []string{"MSHFRE"}
			o.StrictLanguage = true
		}, "vocabulary"},
		{"negative distance", func(o *SearchOptions) { o.MaxDistance = -1 }, "MaxDistance"},
		{"bad direction", func(o *SearchOptions) { o.Direction = "sideways" }, "Direction"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFake().define("C1", "MSH", "x")
			opts := DefaultSearchOptions()
			tc.mutate(&opts)

			_, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", opts)
			var cfgErr *vocab.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
			assert.Empty(t, f.defCalls, "no traversal may start on bad options")
		})
	}
}

func TestSearchDefinitions_DefaultsCountOnlyTargetLanguage(t *testing.T) {
	f := newFake().
		concept("C1", "Start").
		concept("C2", "Synonym").
		define("C1", "MSHFRE", "Une définition.").
		relate("C1", uts.LabelSynonym, "C2").
		define("C2", "MSH", "An English definition.")

	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", DefaultSearchOptions())
	require.NoError(t, err)
	require.Equal(t, []string{"C2"}, ids(got), "a French-only concept must not count for ENG")
	assert.Equal(t, []int{1}, distances(got))
}

func TestSearchDefinitions_TargetLanguageSelectsDefinitions(t *testing.T) {
	f := newFake().
		define("C1", "MSH", "An English definition.").
		define("C1", "MSHFRE", "Une définition.").
		define("C1", "mdrfre", "Une autre définition, plus longue.")

	opts := DefaultSearchOptions()
	opts.TargetLanguage = "fre"
	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", opts)
	require.NoError(t, err)
	require.Equal(t, []string{"C1"}, ids(got))

	var sources []string
	for _, d := range got[0].Definitions {
		sources = append(sources, d.Source)
	}
	assert.ElementsMatch(t, []string{"MSHFRE", "mdrfre"}, sources)
}

// countingRegistry records the strict checks it answers.
type countingRegistry struct {
	*vocab.Table
	strict []string
}

func (r *countingRegistry) ValidateInLanguage(name, lang string) (string, error) {
	r.strict = append(r.strict, name+"/"+lang)
	return r.Table.ValidateInLanguage(name, lang)
}

func TestSearchDefinitions_StrictLanguageUsesRegistry(t *testing.T) {
	reg := &countingRegistry{Table: vocab.Default()}
	f := newFake().define("C1", "NCI", "x")
	s := New(f, reg, WithLogger(quietLogger()))

	opts := DefaultSearchOptions()
	opts.TargetVocabularies = []string{"nci"}
	opts.StrictLanguage = true
	got, err := s.SearchDefinitions(context.Background(), "C1", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, ids(got))
	assert.Equal(t, []string{"nci/ENG"}, reg.strict)

	opts.StrictLanguage = false
	_, err = s.SearchDefinitions(context.Background(), "C1", opts)
	require.NoError(t, err)
	assert.Len(t, reg.strict, 1, "non-strict searches only canonicalize")
}

func TestSearchDefinitions_VocabularyOutsideLanguageWithoutStrict(t *testing.T) {
	f := newFake().define("C1", "MSHFRE", "Une définition.")
	opts := DefaultSearchOptions()
	opts.TargetVocabularies = []string{"MSHFRE"}
	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, ids(got))
}

func TestSearchDefinitions_ErrorsAbort(t *testing.T) {
	upstream := &client.HTTPError{StatusCode: 500, URL: "https://example/definitions"}
	f := newFake().
		relate("C1", uts.LabelNarrower, "C2").
		relate("C1", uts.LabelNarrower, "C3").
		define("C3", "MSH", "Never reached.")
	f.failDefs["C2"] = upstream

	got, err := newSearcher(f).SearchDefinitions(context.Background(), "C1", DefaultSearchOptions())
	assert.Nil(t, got)
	var httpErr *client.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Contains(t, err.Error(), "C2")
	assert.NotContains(t, f.defCalls, "C3")
}

func TestSearchDefinitions_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSearcher(newFake()).SearchDefinitions(ctx, "C1", DefaultSearchOptions())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFindDefinedConcepts_UnionOrdersByDistance(t *testing.T) {
	// The code maps to CF (defined only through a synonym) and CN (defined itself).
	f := newFake().
		relate("CF", uts.LabelSynonym, "CS").
		define("CS", "MSH", "Synonym of the far candidate.").
		define("CN", "MSH", "The near candidate.")
	f.searches["exact|E11"] = []uts.SearchResult{{UI: "CF"}, {UI: "CN"}, {UI: "CF"}}

	got, err := newSearcher(f).FindDefinedConcepts(context.Background(), FindRequest{
		SourceVocabulary: "MSH",
		SourceCode:       "E11",
		Options:          DefaultSearchOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CN", "CS"}, ids(got))
	assert.Equal(t, []int{0, 1}, distances(got))

	q := f.searchLog[0]
	assert.Equal(t, "sourceUi", q.InputType)
	assert.Equal(t, uts.SearchExact, q.SearchType)
	assert.Equal(t, []string{"MSH"}, q.Vocabularies)
}

func TestFindDefinedConcepts_KeepsClosestDuplicate(t *testing.T) {
	// CS is reached at distance 1 from CA and is itself the second candidate.
	f := newFake().
		relate("CA", uts.LabelSynonym, "CS").
		define("CS", "MSH", "Shared.")
	f.searches["exact|X1"] = []uts.SearchResult{{UI: "CA"}, {UI: "CS"}}

	got, err := newSearcher(f).FindDefinedConcepts(context.Background(), FindRequest{SourceCode: "X1", Options: DefaultSearchOptions()})
	require.NoError(t, err)
	assert.Equal(t, []string{"CS"}, ids(got))
	assert.Equal(t, []int{0}, distances(got))
}

func TestFindDefinedConcepts_EscalatesToObsolete(t *testing.T) {
	f := newFake().define("COLD", "MSH", "Retired concept.")
	f.searches["obsolete:exact|R1"] = []uts.SearchResult{{UI: "COLD"}}

	got, err := newSearcher(f).FindDefinedConcepts(context.Background(), FindRequest{SourceCode: "R1", Options: DefaultSearchOptions()})
	require.NoError(t, err)
	assert.Equal(t, []string{"COLD"}, ids(got))
	require.Len(t, f.searchLog, 2)
	assert.True(t, f.searchLog[1].IncludeObsolete)
	assert.True(t, f.searchLog[1].IncludeSuppressible)
}

func TestFindDefinedConcepts_FuzzyFallback(t *testing.T) {
	f := newFake().
		define("CBEST", "MSH", "Diabetes mellitus definition.").
		define("COTHER", "MSH", "Unrelated definition.")
	// words finds nothing; normalizedWords on the normalized query finds two candidates.
	f.searches["normalizedWords|diabetes mellitus"] = []uts.SearchResult{
		{UI: "CNONE", Name: "Diabetes insipidus"},
		{UI: "CBEST", Name: "Diabetes Mellitus"},
		{UI: "COTHER", Name: "Fracture"},
	}

	got, err := newSearcher(f).FindDefinedConcepts(context.Background(), FindRequest{
		SourceCode:        "UNKNOWN",
		SourceDescription: "Diabetes Mellitus",
		Options:           DefaultSearchOptions(),
		TopK:              2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CBEST"}, ids(got))

	var types []string
	for _, q := range f.searchLog {
		types = append(types, q.SearchType+"|"+q.String)
	}
	assert.Equal(t, []string{
		"exact|UNKNOWN",
		"exact|UNKNOWN",
		"words|Diabetes Mellitus",
		"words|diabetes mellitus",
		"normalizedWords|Diabetes Mellitus",
		"normalizedWords|diabetes mellitus",
	}, types)
}

func TestFindDefinedConcepts_TopKBoundsCandidates(t *testing.T) {
	f := newFake().define("C3", "MSH", "Only the third candidate is defined.")
	hits := []uts.SearchResult{{UI: "C1", Name: "kidney stone"}, {UI: "C2", Name: "kidney stones"}, {UI: "C3", Name: "renal calculus"}}
	f.searches["words|kidney stone"] = hits

	got, err := newSearcher(f).FindDefinedConcepts(context.Background(), FindRequest{
		SourceDescription: "kidney stone",
		Options:           DefaultSearchOptions(),
		TopK:              2,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotContains(t, f.defCalls, "C3")
}

func TestFindDefinedConcepts_Validation(t *testing.T) {
	s := newSearcher(newFake())

	_, err := s.FindDefinedConcepts(context.Background(), FindRequest{Options: DefaultSearchOptions()})
	var cfgErr *vocab.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	_, err = s.FindDefinedConcepts(context.Background(), FindRequest{SourceVocabulary: "BOGUS", SourceCode: "1", Options: DefaultSearchOptions()})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "BOGUS", cfgErr.Value)
}

func TestCleanText(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"  spaced \n\t out  ", "spaced out"},
		{"<i>Italic</i> text", "Italic text"},
		{"Ends with source (NCI)", "Ends with source"},
		{"Two tags (NCI) [MSH].", "Two tags"},
		{"Keeps (lowercase words) at the end (see above)", "Keeps (lowercase words) at the end (see above)"},
		{"Empty () brackets [ ] go", "Empty brackets go"},
		{"x &lt; 5 &amp;&amp; y", "x < 5 && y"},
		{"<p></p>", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanText(tc.in))
		})
	}
}

func TestCleanDefinitions_DedupeAndOrder(t *testing.T) {
	defs := []uts.Definition{
		{Value: "Medium length text", Source: "MSH"},
		{Value: "Short", Source: "MSH"},
		{Value: "medium   LENGTH text", Source: "msh"},
		{Value: "Medium length text", Source: "NCI"},
		{Value: "Tie a", Source: "NCI"},
	}
	got := CleanDefinitions(defs)
	var values []string
	for _, d := range got {
		values = append(values, d.Source+":"+d.Value)
	}
	assert.Equal(t, []string{"MSH:Short", "NCI:Tie a", "MSH:Medium length text", "NCI:Medium length text"}, values)
}
