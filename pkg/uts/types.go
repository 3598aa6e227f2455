package uts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Concept is a node of the concept graph.
type Concept struct {
	CUI           string         `json:"cui"`
	Name          string         `json:"name"`
	SemanticTypes []SemanticType `json:"semantic_types,omitempty"`
	Definitions   []Definition   `json:"definitions,omitempty"`
	// Distance is set by searches only: the number of hops from the start concept.
	Distance *int `json:"distance,omitempty"`
}

// WithDistance returns a copy of c tagged with d.
func (c Concept) WithDistance(d int) Concept {
	c.Distance = &d
	return c
}

// SemanticTypeNames returns the names of the concept's semantic types, in order.
func (c Concept) SemanticTypeNames() []string {
	names := make([]string, 0, len(c.SemanticTypes))
	for _, st := range c.SemanticTypes {
		names = append(names, st.Name)
	}
	return names
}

// Definition is one textual definition of a concept.
type Definition struct {
	Value            string `json:"value"`
	Source           string `json:"source"`
	SourceOriginated bool   `json:"source_originated"`
	ClassType        string `json:"class_type,omitempty"`
}

// SemanticType names a semantic type and points at its semantic network entry.
type SemanticType struct {
	Name   string              `json:"name"`
	URI    string              `json:"uri,omitempty"`
	Detail *SemanticTypeDetail `json:"detail,omitempty"`
}

// SemanticTypeDetail is the semantic network record of a semantic type.
type SemanticTypeDetail struct {
	UI                string `json:"ui"`
	Name              string `json:"name"`
	Abbreviation      string `json:"abbreviation,omitempty"`
	TreeNumber        string `json:"tree_number,omitempty"`
	Definition        string `json:"definition,omitempty"`
	GroupAbbreviation string `json:"group_abbreviation,omitempty"`
	GroupName         string `json:"group_name,omitempty"`
}

// Relation labels used by the definition search.
const (
	LabelSynonym  = "SY"
	LabelNarrower = "RN"
	LabelChild    = "CHD"
	LabelBroader  = "RB"
	LabelParent   = "PAR"
	LabelOther    = "RO"
)

// Relation links a concept to another concept, atom or source concept.
type Relation struct {
	UI              string `json:"ui"`
	Label           string `json:"label"`
	AdditionalLabel string `json:"additional_label,omitempty"`
	// RelatedID is a URL naming the related entity.
	RelatedID    string `json:"related_id"`
	RelatedName  string `json:"related_name,omitempty"`
	RootSource   string `json:"root_source"`
	Obsolete     bool   `json:"obsolete"`
	Suppressible bool   `json:"suppressible"`
}

// Atom is a concept name as asserted by one source vocabulary.
type Atom struct {
	UI           string `json:"ui"`
	Name         string `json:"name"`
	Language     string `json:"language"`
	RootSource   string `json:"root_source"`
	TermType     string `json:"term_type"`
	ConceptURI   string `json:"concept_uri,omitempty"`
	CodeURI      string `json:"code_uri,omitempty"`
	Obsolete     bool   `json:"obsolete"`
	Suppressible bool   `json:"suppressible"`
}

// SearchResult is one hit of the search endpoint.
type SearchResult struct {
	UI         string `json:"ui"`
	Name       string `json:"name"`
	RootSource string `json:"root_source"`
	URI        string `json:"uri,omitempty"`
}

// flag decodes booleans sent either as JSON booleans or as strings.
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(string(b), `"`))
	switch s {
	case "true":
		*f = true
	case "false", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %s", b)
	}
	return nil
}

// Upstream record shapes. Field names follow the REST API.

type conceptRecord struct {
	UI            string `json:"ui"`
	Name          string `json:"name"`
	SemanticTypes []struct {
		Name string `json:"name"`
		URI  string `json:"uri"`
	} `json:"semanticTypes"`
}

func (r conceptRecord) concept() Concept {
	c := Concept{CUI: r.UI, Name: r.Name}
	for _, st := range r.SemanticTypes {
		c.SemanticTypes = append(c.SemanticTypes, SemanticType{Name: st.Name, URI: st.URI})
	}
	return c
}

type definitionRecord struct {
	Value            string `json:"value"`
	RootSource       string `json:"rootSource"`
	SourceOriginated flag   `json:"sourceOriginated"`
	ClassType        string `json:"classType"`
}

type relationRecord struct {
	UI                      string `json:"ui"`
	RelationLabel           string `json:"relationLabel"`
	AdditionalRelationLabel string `json:"additionalRelationLabel"`
	RelatedID               string `json:"relatedId"`
	RelatedIDName           string `json:"relatedIdName"`
	RootSource              string `json:"rootSource"`
	Obsolete                flag   `json:"obsolete"`
	Suppressible            flag   `json:"suppressible"`
}

type atomRecord struct {
	UI           string `json:"ui"`
	Name         string `json:"name"`
	Language     string `json:"language"`
	RootSource   string `json:"rootSource"`
	TermType     string `json:"termType"`
	Concept      string `json:"concept"`
	Code         string `json:"code"`
	Obsolete     flag   `json:"obsolete"`
	Suppressible flag   `json:"suppressible"`
}

type semanticTypeRecord struct {
	UI                string `json:"ui"`
	Name              string `json:"name"`
	Abbreviation      string `json:"abbreviation"`
	TreeNumber        string `json:"treeNumber"`
	Definition        string `json:"definition"`
	SemanticTypeGroup *struct {
		Abbreviation string `json:"abbreviation"`
		ExpandedForm string `json:"expandedForm"`
	} `json:"semanticTypeGroup"`
}

type searchRecord struct {
	UI         string `json:"ui"`
	Name       string `json:"name"`
	RootSource string `json:"rootSource"`
	URI        string `json:"uri"`
}

// sourceConceptRecord is the subset of a source-asserted concept used to reach its CUIs.
type sourceConceptRecord struct {
	UI       string `json:"ui"`
	Concepts string `json:"concepts"`
}

// decodeRecord converts a normalized JSON tree into a typed record.
func decodeRecord(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("re-encode record: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
