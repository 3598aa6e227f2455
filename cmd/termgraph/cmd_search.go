package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanonone/termgraph/pkg/definitions"
	"github.com/sanonone/termgraph/pkg/uts"
)

// searchFlags are the walk options shared by search and find. Unset flags
// keep the configured defaults.
type searchFlags struct {
	direction     string
	stopOnFound   bool
	maxDistance   int
	language      string
	vocabularies  []string
	preserveType  bool
	strictLang    bool
	vocabFlagName string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.direction, "direction", "", "walk towards broader or narrower concepts")
	fs.BoolVar(&f.stopOnFound, "stop-on-found", true, "stop after the first distance layer that has definitions")
	fs.IntVar(&f.maxDistance, "max-distance", 0, "maximum number of relation hops (0 = unbounded)")
	fs.StringVar(&f.language, "language", "", "three-letter UMLS language code")
	fs.StringSliceVar(&f.vocabularies, f.vocabFlagName, nil, "only keep definitions from these vocabularies")
	fs.BoolVar(&f.preserveType, "preserve-semantic-type", false, "only return concepts sharing a semantic type with the start concept")
	fs.BoolVar(&f.strictLang, "strict-language", false, "reject vocabularies outside the target language")
}

// options overlays the flags the user set on defaults.
func (f *searchFlags) options(cmd *cobra.Command, defaults definitions.SearchOptions) definitions.SearchOptions {
	opts := defaults
	fs := cmd.Flags()
	if fs.Changed("direction") {
		opts.Direction = definitions.Direction(strings.ToLower(f.direction))
	}
	if fs.Changed("stop-on-found") {
		opts.StopOnFound = f.stopOnFound
	}
	if fs.Changed("max-distance") {
		opts.MaxDistance = f.maxDistance
	}
	if fs.Changed("language") {
		opts.TargetLanguage = f.language
	}
	if fs.Changed(f.vocabFlagName) {
		opts.TargetVocabularies = f.vocabularies
	}
	if fs.Changed("preserve-semantic-type") {
		opts.PreserveSemanticType = f.preserveType
	}
	if fs.Changed("strict-language") {
		opts.StrictLanguage = f.strictLang
	}
	return opts
}

func newSearchCmd(g *globals) *cobra.Command {
	f := &searchFlags{vocabFlagName: "sab"}
	cmd := &cobra.Command{
		Use:   "search CUI",
		Short: "Print the definitions of a concept or of its nearest defined relatives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			concepts, err := a.Searcher.SearchDefinitions(contextOf(cmd), strings.TrimSpace(args[0]), f.options(cmd, a.Config.SearchOptions()))
			if err != nil {
				return err
			}
			return printConcepts(cmd, concepts)
		},
	}
	f.register(cmd)
	return cmd
}

func newFindCmd(g *globals) *cobra.Command {
	f := &searchFlags{vocabFlagName: "target-sab"}
	var (
		sab         string
		code        string
		description string
		topK        int
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Map a source code or description to concepts and print the nearest definitions",
		Example: `  termgraph find --sab MSH --code D003920
  termgraph find --description "heart attack" --target-sab NCI,MSH`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if code == "" && description == "" {
				return errors.New("one of --code or --description is required")
			}
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			concepts, err := a.Searcher.FindDefinedConcepts(contextOf(cmd), definitions.FindRequest{
				SourceVocabulary:  sab,
				SourceCode:        code,
				SourceDescription: description,
				TopK:              topK,
				Options:           f.options(cmd, a.Config.SearchOptions()),
			})
			if err != nil {
				return err
			}
			return printConcepts(cmd, concepts)
		},
	}
	cmd.Flags().StringVar(&sab, "sab", "", "source vocabulary of --code (e.g. MSH, SNOMEDCT_US)")
	cmd.Flags().StringVar(&code, "code", "", "code in the source vocabulary")
	cmd.Flags().StringVar(&description, "description", "", "free-text description searched when the code finds nothing")
	cmd.Flags().IntVar(&topK, "top-k", 0, "how many description matches to try (0 = configured default)")
	f.register(cmd)
	return cmd
}

func printConcepts(cmd *cobra.Command, concepts []uts.Concept) error {
	if concepts == nil {
		concepts = []uts.Concept{}
	}
	return printJSON(cmd.OutOrStdout(), concepts)
}
