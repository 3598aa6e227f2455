// Package vocab holds source-vocabulary metadata: which vocabularies exist,
// their canonical abbreviations, and the language each one is written in.
//
// A built-in table covering the vocabularies that carry definitions is
// embedded in the binary; deployments with a different UMLS subset can load
// their own YAML file with LoadTable.
package vocab

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed vocabularies.yaml
var defaultTable []byte

// Registry answers the vocabulary questions asked by the definition search.
type Registry interface {
	// VocabulariesForLanguage returns the abbreviations of every vocabulary in lang.
	VocabulariesForLanguage(lang string) ([]string, error)
	// ValidateAbbreviation maps an abbreviation or full name to its canonical abbreviation.
	ValidateAbbreviation(name string) (string, error)
	// ValidateInLanguage is ValidateAbbreviation that also rejects vocabularies
	// not written in lang.
	ValidateInLanguage(name, lang string) (string, error)
}

// ConfigurationError reports an unknown vocabulary or language, or a
// vocabulary used outside its language.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Vocabulary is one entry of the table.
type Vocabulary struct {
	Abbreviation     string `yaml:"abbreviation" validate:"required"`
	Name             string `yaml:"name" validate:"required"`
	Language         string `yaml:"language" validate:"required,len=3,uppercase"`
	RestrictionLevel int    `yaml:"restriction_level" validate:"min=0,max=9"`
}

type tableFile struct {
	Vocabularies []Vocabulary `yaml:"vocabularies" validate:"required,min=1,dive"`
}

// Table is an in-memory Registry. Lookups are case-insensitive.
type Table struct {
	byAbbrev   map[string]Vocabulary
	byName     map[string]string
	byLanguage map[string][]string
}

var (
	defaultOnce sync.Once
	defaultTab  *Table
)

// Default returns the embedded table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := ParseTable(bytes.NewReader(defaultTable))
		if err != nil {
			panic(fmt.Sprintf("vocab: embedded table is invalid: %v", err))
		}
		defaultTab = t
	})
	return defaultTab
}

// LoadTable reads a vocabulary table from a YAML file.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary table: %w", err)
	}
	defer f.Close()
	return ParseTable(f)
}

// ParseTable decodes a YAML vocabulary table. Unknown fields are rejected.
func ParseTable(r io.Reader) (*Table, error) {
	var file tableFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary table: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid vocabulary table: %w", err)
	}
	return NewTable(file.Vocabularies)
}

// NewTable indexes entries. Duplicate abbreviations are rejected.
func NewTable(entries []Vocabulary) (*Table, error) {
	t := &Table{
		byAbbrev:   make(map[string]Vocabulary, len(entries)),
		byName:     make(map[string]string, len(entries)),
		byLanguage: make(map[string][]string),
	}
	for _, v := range entries {
		key := strings.ToUpper(v.Abbreviation)
		if _, dup := t.byAbbrev[key]; dup {
			return nil, fmt.Errorf("duplicate vocabulary %q", v.Abbreviation)
		}
		t.byAbbrev[key] = v
		t.byName[strings.ToLower(v.Name)] = v.Abbreviation
		lang := strings.ToUpper(v.Language)
		t.byLanguage[lang] = append(t.byLanguage[lang], v.Abbreviation)
	}
	return t, nil
}

// VocabulariesForLanguage implements Registry. The result is in table order.
func (t *Table) VocabulariesForLanguage(lang string) ([]string, error) {
	vocabs, ok := t.byLanguage[strings.ToUpper(lang)]
	if !ok {
		return nil, &ConfigurationError{Field: "language", Value: lang, Reason: "no vocabulary is known in this language"}
	}
	return append([]string(nil), vocabs...), nil
}

// ValidateAbbreviation implements Registry.
func (t *Table) ValidateAbbreviation(name string) (string, error) {
	if v, ok := t.byAbbrev[strings.ToUpper(name)]; ok {
		return v.Abbreviation, nil
	}
	if abbrev, ok := t.byName[strings.ToLower(name)]; ok {
		return abbrev, nil
	}
	return "", &ConfigurationError{Field: "vocabulary", Value: name, Reason: "unknown vocabulary"}
}

// ValidateInLanguage implements Registry.
func (t *Table) ValidateInLanguage(name, lang string) (string, error) {
	abbrev, err := t.ValidateAbbreviation(name)
	if err != nil {
		return "", err
	}
	if got := t.byAbbrev[strings.ToUpper(abbrev)].Language; !strings.EqualFold(got, lang) {
		return "", &ConfigurationError{
			Field:  "vocabulary",
			Value:  name,
			Reason: fmt.Sprintf("written in %s, not %s", got, strings.ToUpper(lang)),
		}
	}
	return abbrev, nil
}

// Lookup returns the entry for an abbreviation or full name.
func (t *Table) Lookup(name string) (Vocabulary, bool) {
	abbrev, err := t.ValidateAbbreviation(name)
	if err != nil {
		return Vocabulary{}, false
	}
	return t.byAbbrev[strings.ToUpper(abbrev)], true
}

// Languages returns the language codes present in the table, sorted.
func (t *Table) Languages() []string {
	langs := make([]string, 0, len(t.byLanguage))
	for l := range t.byLanguage {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
