package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanonone/termgraph/pkg/definitions"
	"github.com/sanonone/termgraph/pkg/uts"
	"github.com/sanonone/termgraph/pkg/vocab"
)

// Searcher is the search surface exposed as tools. *definitions.Searcher implements it.
type Searcher interface {
	SearchDefinitions(ctx context.Context, cui string, opts definitions.SearchOptions) ([]uts.Concept, error)
	FindDefinedConcepts(ctx context.Context, req definitions.FindRequest) ([]uts.Concept, error)
}

type Service struct {
	searcher Searcher
	vocab    vocab.Registry
	defaults definitions.SearchOptions
}

func NewService(searcher Searcher, reg vocab.Registry, defaults definitions.SearchOptions) *Service {
	if reg == nil {
		reg = vocab.Default()
	}
	return &Service{
		searcher: searcher,
		vocab:    reg,
		defaults: defaults,
	}
}

// options overlays tool arguments on the configured defaults.
func (s *Service) options(direction string, stop *bool, maxDistance *int, language string, vocabs []string, preserve *bool) definitions.SearchOptions {
	opts := s.defaults
	if direction != "" {
		opts.Direction = definitions.Direction(strings.ToLower(direction))
	}
	if stop != nil {
		opts.StopOnFound = *stop
	}
	if maxDistance != nil {
		opts.MaxDistance = *maxDistance
	}
	if language != "" {
		opts.TargetLanguage = language
	}
	if len(vocabs) > 0 {
		opts.TargetVocabularies = vocabs
	}
	if preserve != nil {
		opts.PreserveSemanticType = *preserve
	}
	return opts
}

// --- Tool Handlers ---

func (s *Service) SearchDefinitions(ctx context.Context, req *mcp.CallToolRequest, args SearchDefinitionsArgs) (*mcp.CallToolResult, DefinitionsResult, error) {
	if strings.TrimSpace(args.CUI) == "" {
		return nil, DefinitionsResult{}, fmt.Errorf("cui is required")
	}
	opts := s.options(args.Direction, args.StopOnFound, args.MaxDistance, args.Language, args.Vocabularies, args.PreserveSemanticType)

	concepts, err := s.searcher.SearchDefinitions(ctx, strings.TrimSpace(args.CUI), opts)
	if err != nil {
		return nil, DefinitionsResult{}, err
	}
	return nil, newDefinitionsResult(concepts), nil
}

func (s *Service) FindDefinedConcepts(ctx context.Context, req *mcp.CallToolRequest, args FindDefinedConceptsArgs) (*mcp.CallToolResult, DefinitionsResult, error) {
	concepts, err := s.searcher.FindDefinedConcepts(ctx, definitions.FindRequest{
		SourceVocabulary:  args.SourceVocabulary,
		SourceCode:        args.SourceCode,
		SourceDescription: args.SourceDescription,
		TopK:              args.TopK,
		Options:           s.options(args.Direction, args.StopOnFound, args.MaxDistance, args.Language, args.Vocabularies, args.PreserveSemanticType),
	})
	if err != nil {
		return nil, DefinitionsResult{}, err
	}
	return nil, newDefinitionsResult(concepts), nil
}

func (s *Service) ListVocabularies(ctx context.Context, req *mcp.CallToolRequest, args ListVocabulariesArgs) (*mcp.CallToolResult, ListVocabulariesResult, error) {
	lang := strings.ToUpper(strings.TrimSpace(args.Language))
	vocabs, err := s.vocab.VocabulariesForLanguage(lang)
	if err != nil {
		return nil, ListVocabulariesResult{}, err
	}
	return nil, ListVocabulariesResult{Language: lang, Vocabularies: vocabs}, nil
}

func newDefinitionsResult(concepts []uts.Concept) DefinitionsResult {
	if concepts == nil {
		concepts = []uts.Concept{}
	}
	return DefinitionsResult{
		Concepts: concepts,
		Count:    len(concepts),
		Summary:  summarize(concepts),
	}
}

// summarize renders one line per definition, closest concepts first.
func summarize(concepts []uts.Concept) string {
	if len(concepts) == 0 {
		return "No definitions found."
	}
	var b strings.Builder
	for _, c := range concepts {
		dist := 0
		if c.Distance != nil {
			dist = *c.Distance
		}
		name := c.Name
		if name == "" {
			name = c.CUI
		}
		fmt.Fprintf(&b, "%s (%s, distance %d)\n", name, c.CUI, dist)
		for _, d := range c.Definitions {
			fmt.Fprintf(&b, "  [%s] %s\n", d.Source, d.Value)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
