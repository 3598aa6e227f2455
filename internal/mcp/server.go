package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanonone/termgraph/pkg/definitions"
	"github.com/sanonone/termgraph/pkg/vocab"
)

// ServerName is announced to MCP clients.
const ServerName = "termgraph"

func NewMCPServer(searcher Searcher, reg vocab.Registry, defaults definitions.SearchOptions, version string) (*mcp.Server, error) {
	service := NewService(searcher, reg, defaults)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version,
	}, nil)

	searchSchema, err := inputSchema[SearchDefinitionsArgs]()
	if err != nil {
		return nil, err
	}
	findSchema, err := inputSchema[FindDefinedConceptsArgs]()
	if err != nil {
		return nil, err
	}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "search_definitions",
		Description: "Find textual definitions for a UMLS concept (CUI). When the concept has none, related concepts are searched breadth-first and the closest defined ones are returned with their distance.",
		InputSchema: searchSchema,
	}, service.SearchDefinitions)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "find_defined_concepts",
		Description: "Map a source vocabulary code (or, failing that, a free-text description) to UMLS concepts and return the nearest concepts that have definitions.",
		InputSchema: findSchema,
	}, service.FindDefinedConcepts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_vocabularies",
		Description: "List the source vocabularies known for a UMLS language code.",
	}, service.ListVocabularies)

	return s, nil
}

// inputSchema infers the argument schema of T and restricts direction to
// its two accepted values.
func inputSchema[T any]() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	if p, ok := schema.Properties["direction"]; ok {
		p.Enum = []any{string(definitions.Broader), string(definitions.Narrower)}
	}
	return schema, nil
}
