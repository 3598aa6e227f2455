// Package definitions finds textual definitions for a UMLS concept by walking
// the concept graph outward from it.
//
// The walk is a breadth-first search over relations of one direction: broader
// follows synonyms, narrower-than and child links (the related concept is more
// general); narrower follows synonyms, broader-than and parent links. Every
// visited concept that has definitions from the target vocabularies becomes a
// result tagged with its distance from the start. With StopOnFound the walk
// finishes the layer on which the first result appeared and halts there.
package definitions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sanonone/termgraph/pkg/graph"
	"github.com/sanonone/termgraph/pkg/metrics"
	"github.com/sanonone/termgraph/pkg/similarity"
	"github.com/sanonone/termgraph/pkg/uts"
	"github.com/sanonone/termgraph/pkg/vocab"
)

var tracer = otel.Tracer("github.com/sanonone/termgraph/pkg/definitions")

// Terminology is the part of the terminology service the search needs.
// *uts.Service implements it.
type Terminology interface {
	Concept(ctx context.Context, cui string) (*uts.Concept, error)
	Definitions(ctx context.Context, cui string) ([]uts.Definition, error)
	Relations(ctx context.Context, cui string, q uts.RelationQuery) ([]uts.Relation, error)
	ResolveConceptID(ctx context.Context, ref string) (string, error)
	SemanticTypeDetail(ctx context.Context, uri string) (*uts.SemanticTypeDetail, error)
	Search(ctx context.Context, q uts.SearchQuery) ([]uts.SearchResult, error)
}

var _ Terminology = (*uts.Service)(nil)

// Direction picks which relations the walk follows.
type Direction string

const (
	// Broader walks towards more general concepts.
	Broader Direction = "broader"
	// Narrower walks towards more specific concepts.
	Narrower Direction = "narrower"
)

// Labels returns the relation labels followed in direction d. Synonyms are
// followed both ways.
func (d Direction) Labels() []string {
	switch d {
	case Narrower:
		return []string{uts.LabelSynonym, uts.LabelBroader, uts.LabelParent}
	default:
		return []string{uts.LabelSynonym, uts.LabelNarrower, uts.LabelChild}
	}
}

// DefaultLanguage is the language searched when none is given.
const DefaultLanguage = "ENG"

// SearchOptions controls one definition search. Start from DefaultSearchOptions.
type SearchOptions struct {
	Direction   Direction `json:"direction" validate:"required,oneof=broader narrower"`
	StopOnFound bool      `json:"stop_on_found"`
	// MaxDistance bounds the walk; 0 means unbounded.
	MaxDistance int `json:"max_distance" validate:"gte=0"`
	// TargetVocabularies restricts which sources' definitions count. Empty
	// means every vocabulary of TargetLanguage.
	TargetVocabularies []string `json:"target_vocabularies,omitempty" validate:"dive,required"`
	TargetLanguage     string   `json:"target_language" validate:"required"`
	// StrictLanguage rejects target vocabularies not written in TargetLanguage.
	StrictLanguage bool `json:"strict_language,omitempty"`
	// PreserveSemanticType keeps only results sharing a semantic type with
	// the start concept, and attaches semantic type details to them. The
	// filter applies to the output only: StopOnFound still stops on the first
	// layer holding any defined concept, so a filtered search can end with no
	// results where an unfiltered one found some on that layer.
	PreserveSemanticType bool `json:"preserve_semantic_type"`
	// PreVisit runs before each node is visited; returning graph.Stop aborts
	// the search with the results gathered so far.
	PreVisit func(cui string, distance int, pending graph.Pending) (graph.Action, error) `json:"-"`
}

// DefaultSearchOptions walks broader, English, stopping on the first layer
// with results.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Direction:      Broader,
		StopOnFound:    true,
		TargetLanguage: DefaultLanguage,
	}
}

// Searcher runs definition searches against a terminology service.
type Searcher struct {
	term     Terminology
	vocab    vocab.Registry
	validate *validator.Validate
	distance similarity.DistanceFunc
	topK     int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the searcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDistance sets the distance used to rank fuzzy search candidates.
func WithDistance(d similarity.DistanceFunc) Option {
	return func(s *Searcher) {
		if d != nil {
			s.distance = d
		}
	}
}

// WithTopK sets how many fuzzy candidates are tried when a request leaves TopK at zero.
func WithTopK(k int) Option {
	return func(s *Searcher) {
		if k > 0 {
			s.topK = k
		}
	}
}

// DefaultTopK is the number of fuzzy candidates tried by default.
const DefaultTopK = 5

// New returns a Searcher over term. A nil registry uses the built-in table.
func New(term Terminology, reg vocab.Registry, opts ...Option) *Searcher {
	if reg == nil {
		reg = vocab.Default()
	}
	s := &Searcher{
		term:     term,
		vocab:    reg,
		validate: validator.New(),
		distance: similarity.JaccardDistance,
		topK:     DefaultTopK,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// plan is a validated SearchOptions with its vocabulary lists resolved.
type plan struct {
	SearchOptions
	labels []string
	// relationVocabs restricts neighbor lookups to the language.
	relationVocabs []string
	// definitionVocabs are the sources whose definitions count: the target
	// vocabularies, or every vocabulary of the target language.
	definitionVocabs map[string]struct{}
}

func (s *Searcher) prepare(opts SearchOptions) (*plan, error) {
	if opts.TargetLanguage == "" {
		opts.TargetLanguage = DefaultLanguage
	}
	if opts.Direction == "" {
		opts.Direction = Broader
	}
	if err := s.validate.Struct(opts); err != nil {
		return nil, validationError(err)
	}

	lang := strings.ToUpper(opts.TargetLanguage)
	langVocabs, err := s.vocab.VocabulariesForLanguage(lang)
	if err != nil {
		return nil, err
	}
	p := &plan{
		SearchOptions:    opts,
		labels:           opts.Direction.Labels(),
		relationVocabs:   langVocabs,
		definitionVocabs: make(map[string]struct{}),
	}
	p.TargetLanguage = lang
	if len(opts.TargetVocabularies) == 0 {
		for _, v := range langVocabs {
			p.definitionVocabs[v] = struct{}{}
		}
		return p, nil
	}
	check := s.vocab.ValidateAbbreviation
	if opts.StrictLanguage {
		check = func(name string) (string, error) { return s.vocab.ValidateInLanguage(name, lang) }
	}
	for _, name := range opts.TargetVocabularies {
		abbrev, err := check(name)
		if err != nil {
			return nil, err
		}
		p.definitionVocabs[abbrev] = struct{}{}
	}
	return p, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &vocab.ConfigurationError{
			Field:  fe.Field(),
			Value:  fmt.Sprint(fe.Value()),
			Reason: "failed " + fe.Tag() + " check",
		}
	}
	return err
}

// SearchDefinitions walks from cui and returns the defined concepts found,
// ordered by distance and then by visit order. An unknown start concept
// yields no results and no error.
func (s *Searcher) SearchDefinitions(ctx context.Context, cui string, opts SearchOptions) ([]uts.Concept, error) {
	p, err := s.prepare(opts)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("definitions", "invalid").Inc()
		return nil, err
	}
	return s.search(ctx, cui, p)
}

func (s *Searcher) search(ctx context.Context, cui string, p *plan) ([]uts.Concept, error) {
	searchID := uuid.NewString()
	logger := s.logger.With("search_id", searchID, "cui", cui, "direction", string(p.Direction))

	ctx, span := tracer.Start(ctx, "definitions.SearchDefinitions")
	defer span.End()
	span.SetAttributes(
		attribute.String("termgraph.search_id", searchID),
		attribute.String("termgraph.cui", cui),
		attribute.String("termgraph.direction", string(p.Direction)),
		attribute.Int("termgraph.max_distance", p.MaxDistance),
	)

	if p.MaxDistance == 0 && !p.StopOnFound {
		logger.Warn("Search is unbounded: max_distance is 0 and stop_on_found is false")
	}

	w := &walk{searcher: s, ctx: ctx, plan: p, logger: logger}
	if p.PreserveSemanticType {
		if err := w.loadStartTypes(cui); err != nil {
			return s.fail(span, logger, err)
		}
	}

	err := graph.BreadthFirstSearch(cui, w.visit, w.neighbors, w)
	metrics.SearchNodesVisited.Observe(float64(w.visited))
	if err != nil {
		return s.fail(span, logger, err)
	}

	outcome := "found"
	if len(w.results) == 0 {
		outcome = "empty"
	}
	metrics.SearchesTotal.WithLabelValues("definitions", outcome).Inc()
	span.SetAttributes(attribute.Int("termgraph.results", len(w.results)))
	logger.Debug("Search finished", "visited", w.visited, "defined", w.defined, "results", len(w.results))
	return w.results, nil
}

func (s *Searcher) fail(span trace.Span, logger *slog.Logger, err error) ([]uts.Concept, error) {
	metrics.SearchesTotal.WithLabelValues("definitions", "error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Warn("Search failed", "error", err)
	return nil, err
}
