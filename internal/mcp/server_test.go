package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/termgraph/pkg/definitions"
	"github.com/sanonone/termgraph/pkg/uts"
	"github.com/sanonone/termgraph/pkg/vocab"
)

type stubSearcher struct {
	lastCUI  string
	lastOpts definitions.SearchOptions
	lastFind definitions.FindRequest
	concepts []uts.Concept
	err      error
}

func (s *stubSearcher) SearchDefinitions(_ context.Context, cui string, opts definitions.SearchOptions) ([]uts.Concept, error) {
	s.lastCUI, s.lastOpts = cui, opts
	return s.concepts, s.err
}

func (s *stubSearcher) FindDefinedConcepts(_ context.Context, req definitions.FindRequest) ([]uts.Concept, error) {
	s.lastFind = req
	return s.concepts, s.err
}

func connect(t *testing.T, searcher Searcher) *mcp.ClientSession {
	t.Helper()
	return connectWithDefaults(t, searcher, definitions.DefaultSearchOptions())
}

func connectWithDefaults(t *testing.T, searcher Searcher, defaults definitions.SearchOptions) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server, err := NewMCPServer(searcher, vocab.Default(), defaults, "test")
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestListTools(t *testing.T) {
	cs := connect(t, &stubSearcher{})

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search_definitions", "find_defined_concepts", "list_vocabularies"}, names)
}

func TestSearchDefinitionsTool(t *testing.T) {
	d := 1
	stub := &stubSearcher{concepts: []uts.Concept{{
		CUI:         "C0000002",
		Name:        "Synonym concept",
		Distance:    &d,
		Definitions: []uts.Definition{{Value: "A defined synonym.", Source: "MSH"}},
	}}}
	cs := connect(t, stub)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "search_definitions",
		Arguments: map[string]any{
			"cui":           "C0000001",
			"direction":     "narrower",
			"stop_on_found": false,
			"max_distance":  2,
			"vocabularies":  []string{"MSH"},
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	assert.Equal(t, "C0000001", stub.lastCUI)
	assert.Equal(t, definitions.Narrower, stub.lastOpts.Direction)
	assert.False(t, stub.lastOpts.StopOnFound)
	assert.Equal(t, 2, stub.lastOpts.MaxDistance)
	assert.Equal(t, []string{"MSH"}, stub.lastOpts.TargetVocabularies)
	assert.Equal(t, "ENG", stub.lastOpts.TargetLanguage)

	out, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, out["count"])
	assert.Contains(t, out["summary"], "[MSH] A defined synonym.")
}

func TestSearchDefinitionsTool_DefaultsKeepStopOnFound(t *testing.T) {
	stub := &stubSearcher{}
	cs := connect(t, stub)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_definitions",
		Arguments: map[string]any{"cui": "C1"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.True(t, stub.lastOpts.StopOnFound)

	out := res.StructuredContent.(map[string]any)
	assert.Equal(t, "No definitions found.", out["summary"])
	assert.Equal(t, []any{}, out["concepts"])
}

func TestSearchDefinitionsTool_ExplicitZeroValuesOverrideDefaults(t *testing.T) {
	defaults := definitions.DefaultSearchOptions()
	defaults.MaxDistance = 3
	defaults.PreserveSemanticType = true
	stub := &stubSearcher{}
	cs := connectWithDefaults(t, stub, defaults)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_definitions",
		Arguments: map[string]any{"cui": "C1"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, 3, stub.lastOpts.MaxDistance)
	assert.True(t, stub.lastOpts.PreserveSemanticType)

	res, err = cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "search_definitions",
		Arguments: map[string]any{
			"cui":                    "C1",
			"max_distance":           0,
			"preserve_semantic_type": false,
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, 0, stub.lastOpts.MaxDistance)
	assert.False(t, stub.lastOpts.PreserveSemanticType)
}

func TestSearchDefinitionsTool_ErrorIsToolError(t *testing.T) {
	cs := connect(t, &stubSearcher{err: errors.New("upstream down")})

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_definitions",
		Arguments: map[string]any{"cui": "C1"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "upstream down")
}

func TestFindDefinedConceptsTool(t *testing.T) {
	stub := &stubSearcher{}
	cs := connect(t, stub)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "find_defined_concepts",
		Arguments: map[string]any{
			"source_vocabulary":      "MSH",
			"source_code":            "D003920",
			"source_description":     "diabetes mellitus",
			"top_k":                  3,
			"preserve_semantic_type": true,
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "MSH", stub.lastFind.SourceVocabulary)
	assert.Equal(t, "D003920", stub.lastFind.SourceCode)
	assert.Equal(t, "diabetes mellitus", stub.lastFind.SourceDescription)
	assert.Equal(t, 3, stub.lastFind.TopK)
	assert.True(t, stub.lastFind.Options.PreserveSemanticType)
}

func TestListVocabulariesTool(t *testing.T) {
	cs := connect(t, &stubSearcher{})

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_vocabularies",
		Arguments: map[string]any{"language": "fre"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	out := res.StructuredContent.(map[string]any)
	assert.Equal(t, "FRE", out["language"])
	assert.Equal(t, []any{"MSHFRE", "MDRFRE"}, out["vocabularies"])

	res, err = cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_vocabularies",
		Arguments: map[string]any{"language": "XXX"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestInputSchema(t *testing.T) {
	schema, err := inputSchema[SearchDefinitionsArgs]()
	require.NoError(t, err)
	assert.Equal(t, []string{"cui"}, schema.Required)
	assert.Equal(t, []any{"broader", "narrower"}, schema.Properties["direction"].Enum)

	plain, err := jsonschema.For[ListVocabulariesArgs](nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"language"}, plain.Required)
	assert.NotEmpty(t, plain.Properties["language"].Description)
}
