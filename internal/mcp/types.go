package mcp

import "github.com/sanonone/termgraph/pkg/uts"

// --- Tool Arguments ---

type SearchDefinitionsArgs struct {
	CUI                  string   `json:"cui" jsonschema:"UMLS concept unique identifier to start from (e.g. C0011849)"`
	Direction            string   `json:"direction,omitempty" jsonschema:"Walk towards more general (broader) or more specific (narrower) concepts. Default broader"`
	StopOnFound          *bool    `json:"stop_on_found,omitempty" jsonschema:"Stop after the first distance layer that has definitions. Default true"`
	MaxDistance          *int     `json:"max_distance,omitempty" jsonschema:"Maximum number of relation hops from the start concept. 0 means unbounded"`
	Language             string   `json:"language,omitempty" jsonschema:"Three-letter UMLS language code of the vocabularies to use (e.g. ENG, FRE). Default ENG"`
	Vocabularies         []string `json:"vocabularies,omitempty" jsonschema:"Only keep definitions from these source vocabularies (e.g. MSH, NCI)"`
	PreserveSemanticType *bool    `json:"preserve_semantic_type,omitempty" jsonschema:"Only return concepts sharing a semantic type with the start concept"`
}

type FindDefinedConceptsArgs struct {
	SourceVocabulary     string   `json:"source_vocabulary,omitempty" jsonschema:"Vocabulary the source code belongs to (e.g. MSH, SNOMEDCT_US)"`
	SourceCode           string   `json:"source_code,omitempty" jsonschema:"Code in the source vocabulary (e.g. D003920)"`
	SourceDescription    string   `json:"source_description,omitempty" jsonschema:"Free-text description searched when the code finds nothing"`
	TopK                 int      `json:"top_k,omitempty" jsonschema:"How many description matches to try. Default 5"`
	Direction            string   `json:"direction,omitempty" jsonschema:"Walk towards more general (broader) or more specific (narrower) concepts. Default broader"`
	StopOnFound          *bool    `json:"stop_on_found,omitempty" jsonschema:"Stop after the first distance layer that has definitions. Default true"`
	MaxDistance          *int     `json:"max_distance,omitempty" jsonschema:"Maximum number of relation hops. 0 means unbounded"`
	Language             string   `json:"language,omitempty" jsonschema:"Three-letter UMLS language code. Default ENG"`
	Vocabularies         []string `json:"vocabularies,omitempty" jsonschema:"Only keep definitions from these source vocabularies"`
	PreserveSemanticType *bool    `json:"preserve_semantic_type,omitempty" jsonschema:"Only return concepts sharing a semantic type with the starting concept"`
}

type ListVocabulariesArgs struct {
	Language string `json:"language" jsonschema:"Three-letter UMLS language code (e.g. ENG)"`
}

// --- Tool Results ---

type DefinitionsResult struct {
	Concepts []uts.Concept `json:"concepts"`
	Count    int           `json:"count"`
	Summary  string        `json:"summary"` // Readable digest for the LLM
}

type ListVocabulariesResult struct {
	Language     string   `json:"language"`
	Vocabularies []string `json:"vocabularies"`
}
