// Package uts exposes the UMLS Terminology Services endpoints used by the
// definition search as typed calls on top of the resilient data client.
//
// Absent entities are never errors here: a missing concept comes back as nil,
// a concept without definitions or relations as an empty slice.
package uts

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sanonone/termgraph/pkg/client"
)

// DefaultVersion is the UMLS release queried when none is configured.
const DefaultVersion = "current"

// Search types accepted by the search endpoint.
const (
	SearchExact           = "exact"
	SearchWords           = "words"
	SearchNormalizedWords = "normalizedWords"
	SearchApproximate     = "approximate"
)

// Service is a typed view over the terminology REST API.
type Service struct {
	fetch   *client.Client
	version string
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithVersion selects the UMLS release, e.g. "2024AA".
func WithVersion(v string) Option {
	return func(s *Service) {
		if v != "" {
			s.version = v
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wraps c.
func NewService(c *client.Client, opts ...Option) *Service {
	s := &Service{fetch: c, version: DefaultVersion, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) contentPath(kind, id string, rest ...string) string {
	p := fmt.Sprintf("/content/%s/%s/%s", url.PathEscape(s.version), kind, url.PathEscape(id))
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Concept returns the concept with the given CUI, or nil when it does not exist.
func (s *Service) Concept(ctx context.Context, cui string) (*Concept, error) {
	doc, err := s.fetch.FetchSingle(ctx, s.contentPath("CUI", cui), nil)
	if err != nil || doc == nil {
		return nil, err
	}
	var rec conceptRecord
	if err := decodeRecord(doc, &rec); err != nil {
		return nil, fmt.Errorf("concept %s: %w", cui, err)
	}
	c := rec.concept()
	if c.CUI == "" {
		c.CUI = cui
	}
	return &c, nil
}

// Definitions returns every definition attached to cui, in upstream order.
func (s *Service) Definitions(ctx context.Context, cui string) ([]Definition, error) {
	var defs []Definition
	for rec, err := range s.fetch.Stream(ctx, s.contentPath("CUI", cui, "definitions"), nil, 0) {
		if err != nil {
			return nil, fmt.Errorf("definitions of %s: %w", cui, err)
		}
		var d definitionRecord
		if err := decodeRecord(rec, &d); err != nil {
			return nil, fmt.Errorf("definitions of %s: %w", cui, err)
		}
		defs = append(defs, Definition{
			Value:            d.Value,
			Source:           d.RootSource,
			SourceOriginated: bool(d.SourceOriginated),
			ClassType:        d.ClassType,
		})
	}
	return defs, nil
}

// RelationQuery narrows a relation lookup.
type RelationQuery struct {
	Labels              []string
	Vocabularies        []string
	IncludeObsolete     bool
	IncludeSuppressible bool
}

func (q RelationQuery) params() url.Values {
	p := url.Values{}
	if len(q.Labels) > 0 {
		p.Set("includeRelationLabels", strings.Join(q.Labels, ","))
	}
	if len(q.Vocabularies) > 0 {
		p.Set("sabs", strings.Join(q.Vocabularies, ","))
	}
	if q.IncludeObsolete {
		p.Set("includeObsolete", "true")
	}
	if q.IncludeSuppressible {
		p.Set("includeSuppressible", "true")
	}
	return p
}

// Relations returns the relations of cui matching q, in upstream order.
func (s *Service) Relations(ctx context.Context, cui string, q RelationQuery) ([]Relation, error) {
	var rels []Relation
	for rec, err := range s.fetch.Stream(ctx, s.contentPath("CUI", cui, "relations"), q.params(), 0) {
		if err != nil {
			return nil, fmt.Errorf("relations of %s: %w", cui, err)
		}
		var r relationRecord
		if err := decodeRecord(rec, &r); err != nil {
			return nil, fmt.Errorf("relations of %s: %w", cui, err)
		}
		rels = append(rels, Relation{
			UI:              r.UI,
			Label:           r.RelationLabel,
			AdditionalLabel: r.AdditionalRelationLabel,
			RelatedID:       r.RelatedID,
			RelatedName:     r.RelatedIDName,
			RootSource:      r.RootSource,
			Obsolete:        bool(r.Obsolete),
			Suppressible:    bool(r.Suppressible),
		})
	}
	return rels, nil
}

// Atom returns the atom at ref, an AUI or an atom URL, or nil when absent.
func (s *Service) Atom(ctx context.Context, ref string) (*Atom, error) {
	target := ref
	if !strings.Contains(ref, "://") {
		target = s.contentPath("AUI", ref)
	}
	doc, err := s.fetch.FetchSingle(ctx, target, nil)
	if err != nil || doc == nil {
		return nil, err
	}
	var r atomRecord
	if err := decodeRecord(doc, &r); err != nil {
		return nil, fmt.Errorf("atom %s: %w", ref, err)
	}
	return &Atom{
		UI:           r.UI,
		Name:         r.Name,
		Language:     r.Language,
		RootSource:   r.RootSource,
		TermType:     r.TermType,
		ConceptURI:   r.Concept,
		CodeURI:      r.Code,
		Obsolete:     bool(r.Obsolete),
		Suppressible: bool(r.Suppressible),
	}, nil
}

// SemanticTypeDetail fetches the semantic network entry at uri, or nil when absent.
func (s *Service) SemanticTypeDetail(ctx context.Context, uri string) (*SemanticTypeDetail, error) {
	doc, err := s.fetch.FetchSingle(ctx, uri, nil)
	if err != nil || doc == nil {
		return nil, err
	}
	var r semanticTypeRecord
	if err := decodeRecord(doc, &r); err != nil {
		return nil, fmt.Errorf("semantic type %s: %w", uri, err)
	}
	d := &SemanticTypeDetail{
		UI:           r.UI,
		Name:         r.Name,
		Abbreviation: r.Abbreviation,
		TreeNumber:   r.TreeNumber,
		Definition:   r.Definition,
	}
	if g := r.SemanticTypeGroup; g != nil {
		d.GroupAbbreviation = g.Abbreviation
		d.GroupName = g.ExpandedForm
	}
	return d, nil
}

// SearchQuery is one call to the search endpoint.
type SearchQuery struct {
	String              string
	InputType           string
	SearchType          string
	ReturnIDType        string
	Vocabularies        []string
	IncludeObsolete     bool
	IncludeSuppressible bool
	PageSize            int
	// MaxResults bounds the number of hits returned. Zero means no bound.
	MaxResults int
}

func (q SearchQuery) params() url.Values {
	p := url.Values{"string": {q.String}}
	if q.InputType != "" {
		p.Set("inputType", q.InputType)
	}
	if q.SearchType != "" {
		p.Set("searchType", q.SearchType)
	}
	if q.ReturnIDType != "" {
		p.Set("returnIdType", q.ReturnIDType)
	}
	if len(q.Vocabularies) > 0 {
		p.Set("sabs", strings.Join(q.Vocabularies, ","))
	}
	if q.IncludeObsolete {
		p.Set("includeObsolete", "true")
	}
	if q.IncludeSuppressible {
		p.Set("includeSuppressible", "true")
	}
	if q.PageSize > 0 {
		p.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	return p
}

// Search runs q and returns the hits in upstream order. The endpoint signals
// exhaustion with a single placeholder hit whose ui is the null sentinel;
// collection stops there.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	return s.searchURL(ctx, "/search/"+url.PathEscape(s.version), q.params(), q.MaxResults)
}

func (s *Service) searchURL(ctx context.Context, target string, params url.Values, maxResults int) ([]SearchResult, error) {
	var hits []SearchResult
	for rec, err := range s.fetch.Stream(ctx, target, params, maxResults) {
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", params.Get("string"), err)
		}
		var r searchRecord
		if err := decodeRecord(rec, &r); err != nil {
			return nil, fmt.Errorf("search %q: %w", params.Get("string"), err)
		}
		if r.UI == "" {
			break
		}
		hits = append(hits, SearchResult{UI: r.UI, Name: r.Name, RootSource: r.RootSource, URI: r.URI})
	}
	return hits, nil
}

var cuiRe = regexp.MustCompile(`^C\d+$`)

// ResolveConceptID turns a relation's related id into a CUI. The reference may
// be a bare CUI, a CUI URL, an atom URL, or a source-asserted concept URL.
// An empty string means the reference leads nowhere.
func (s *Service) ResolveConceptID(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if cuiRe.MatchString(ref) {
		return ref, nil
	}
	if id, ok := segmentAfter(ref, "CUI"); ok {
		return id, nil
	}

	if _, ok := segmentAfter(ref, "AUI"); ok {
		atom, err := s.Atom(ctx, ref)
		if err != nil || atom == nil {
			return "", err
		}
		if id, ok := segmentAfter(atom.ConceptURI, "CUI"); ok {
			return id, nil
		}
		return "", nil
	}

	doc, err := s.fetch.FetchSingle(ctx, ref, nil)
	if err != nil || doc == nil {
		return "", err
	}
	var sc sourceConceptRecord
	if err := decodeRecord(doc, &sc); err != nil {
		return "", fmt.Errorf("resolve %s: %w", ref, err)
	}
	if sc.Concepts == "" {
		s.logger.Debug("related id carries no concept link", "ref", ref)
		return "", nil
	}
	hits, err := s.searchURL(ctx, sc.Concepts, nil, 1)
	if err != nil || len(hits) == 0 {
		return "", err
	}
	return hits[0].UI, nil
}

// segmentAfter returns the path segment following kind in ref ("…/CUI/C001" → "C001").
func segmentAfter(ref, kind string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == kind && parts[i+1] != "" {
			return parts[i+1], true
		}
	}
	return "", false
}
