package definitions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sanonone/termgraph/pkg/graph"
	"github.com/sanonone/termgraph/pkg/uts"
)

// walk holds the state of one traversal and implements graph.Hooks.
type walk struct {
	searcher *Searcher
	ctx      context.Context
	plan     *plan
	logger   *slog.Logger

	startTypes map[string]struct{}
	results    []uts.Concept
	visited    int
	// defined counts visited concepts with definitions, whether or not the
	// semantic type filter kept them. Stopping is decided on this count so a
	// filtered search never walks further than an unfiltered one.
	defined int
}

func (w *walk) loadStartTypes(cui string) error {
	start, err := w.searcher.term.Concept(w.ctx, cui)
	if err != nil {
		return fmt.Errorf("start concept %s: %w", cui, err)
	}
	w.startTypes = make(map[string]struct{})
	if start == nil {
		return nil
	}
	for _, name := range start.SemanticTypeNames() {
		w.startTypes[name] = struct{}{}
	}
	return nil
}

func (w *walk) visit(cui string, distance int) error {
	w.visited++
	c, err := w.definedConcept(cui, distance)
	if err != nil || c == nil {
		return err
	}
	w.defined++

	if w.plan.PreserveSemanticType && !w.sharesStartType(c) {
		w.logger.Debug("Dropping concept with foreign semantic type", "concept", cui, "types", c.SemanticTypeNames())
		return nil
	}
	w.results = append(w.results, *c)
	w.logger.Debug("Found definitions", "concept", cui, "distance", distance, "count", len(c.Definitions))
	return nil
}

// definedConcept returns cui with its cleaned definitions, or nil when it has
// none from the target vocabularies.
func (w *walk) definedConcept(cui string, distance int) (*uts.Concept, error) {
	term := w.searcher.term
	defs, err := term.Definitions(w.ctx, cui)
	if err != nil {
		return nil, err
	}
	kept := defs[:0:0]
	for _, d := range defs {
		if _, ok := w.plan.definitionVocabs[strings.ToUpper(d.Source)]; ok {
			kept = append(kept, d)
		}
	}
	defs = CleanDefinitions(kept)
	if len(defs) == 0 {
		return nil, nil
	}

	concept, err := term.Concept(w.ctx, cui)
	if err != nil {
		return nil, err
	}
	if concept == nil {
		concept = &uts.Concept{CUI: cui}
	}
	out := concept.WithDistance(distance)
	out.Definitions = defs

	if w.plan.PreserveSemanticType {
		types := make([]uts.SemanticType, len(out.SemanticTypes))
		copy(types, out.SemanticTypes)
		for i, st := range types {
			if st.URI == "" {
				continue
			}
			detail, err := term.SemanticTypeDetail(w.ctx, st.URI)
			if err != nil {
				return nil, err
			}
			types[i].Detail = detail
		}
		out.SemanticTypes = types
	}
	return &out, nil
}

func (w *walk) sharesStartType(c *uts.Concept) bool {
	for _, name := range c.SemanticTypeNames() {
		if _, ok := w.startTypes[name]; ok {
			return true
		}
	}
	return false
}

// neighbors lists the concepts related to cui in the walk direction, in
// upstream order. When the plain lookup finds nothing it is repeated with
// obsolete and suppressible relations included.
func (w *walk) neighbors(cui string) ([]string, error) {
	term := w.searcher.term
	q := uts.RelationQuery{Labels: w.plan.labels, Vocabularies: w.plan.relationVocabs}
	rels, err := term.Relations(w.ctx, cui, q)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		q.IncludeObsolete = true
		q.IncludeSuppressible = true
		if rels, err = term.Relations(w.ctx, cui, q); err != nil {
			return nil, err
		}
	}

	allowed := make(map[string]struct{}, len(w.plan.labels))
	for _, l := range w.plan.labels {
		allowed[l] = struct{}{}
	}
	seen := map[string]struct{}{cui: {}}
	var out []string
	for _, r := range rels {
		if _, ok := allowed[r.Label]; !ok {
			continue
		}
		id, err := term.ResolveConceptID(w.ctx, r.RelatedID)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", r.RelatedID, err)
		}
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// PreVisit implements graph.Hooks.
func (w *walk) PreVisit(cui string, distance int, pending graph.Pending) (graph.Action, error) {
	if err := w.ctx.Err(); err != nil {
		return graph.Stop, err
	}
	if w.plan.PreVisit == nil {
		return graph.Proceed, nil
	}
	return w.plan.PreVisit(cui, distance, pending)
}

// PostVisit implements graph.Hooks. Once a concept with definitions has been
// found the rest of its layer is visited without expansion and the walk stops
// when the next queued node is further away.
func (w *walk) PostVisit(_ string, distance int, pending graph.Pending) (graph.Action, error) {
	if w.plan.StopOnFound && w.defined > 0 {
		next, err := pending.Peek()
		if err != nil || next > distance {
			return graph.Stop, nil
		}
		return graph.Skip, nil
	}
	if w.plan.MaxDistance > 0 && distance >= w.plan.MaxDistance {
		return graph.Skip, nil
	}
	return graph.Proceed, nil
}
