// Package autofrag replaces repeated sub-selections with a shared
// fragment definition plus spreads, shrinking fetch operation text that
// selects the same shape in multiple places (e.g. the same nested object
// under several sibling fields). It has no teacher Go precedent -- the
// teacher's planner never reduces operation text size -- but is
// grounded on the original Rust query planner crate, whose
// query-planner/src/lib.rs declares `mod autofrag;` as a standing
// component alongside the group builder and assembler this module
// otherwise mirrors.
package autofrag

import (
	"github.com/n9te9/federation-query-planner/internal/astref"
	"github.com/n9te9/federation-query-planner/internal/format"
	"github.com/n9te9/federation-query-planner/internal/planctx"
)

// minSelections is the smallest sub-selection size worth fragmenting;
// smaller shapes cost more in spread overhead than they save in text.
const minSelections = 3

// Apply rewrites selections in place, replacing every sub-selection that
// (a) has at least minSelections fields and (b) occurs, identically
// shaped, at least twice, with a spread of a newly emitted fragment. It
// returns the fragment definitions that must be printed alongside the
// rewritten selections.
func Apply(ctx *planctx.Context, selections []astref.Selection) []*astref.FragmentDefinition {
	if !ctx.Options.AutoFragmentization {
		return nil
	}

	counts := make(map[string]int)
	countShapes(selections, counts)

	assigned := make(map[string]*astref.FragmentDefinition)
	var defs []*astref.FragmentDefinition

	rewrite(ctx, selections, counts, assigned, &defs)
	return defs
}

// countShapes walks every field's sub-selections and tallies how many
// times each rendered shape occurs, keyed by "TypeName\x00renderedText"
// so two same-looking selections against different types never merge
// into one fragment.
func countShapes(selections []astref.Selection, counts map[string]int) {
	for _, sel := range selections {
		f, ok := sel.(*astref.Field)
		if !ok {
			continue
		}
		if len(f.SubSelections) >= minSelections && f.TypeName != "" {
			counts[shapeKey(f)]++
		}
		countShapes(f.SubSelections, counts)
	}
}

func shapeKey(f *astref.Field) string {
	w := format.New()
	for _, s := range f.SubSelections {
		s.Display(w)
	}
	return f.TypeName + "\x00" + w.String()
}

// rewrite mutates each field in selections whose sub-selection shape
// recurs, substituting a fragment spread for its sub-selections (minting
// the shared fragment the first time a shape is rewritten), then
// recurses into whatever sub-selections remain unrewritten.
func rewrite(ctx *planctx.Context, selections []astref.Selection, counts map[string]int, assigned map[string]*astref.FragmentDefinition, defs *[]*astref.FragmentDefinition) {
	for _, sel := range selections {
		f, ok := sel.(*astref.Field)
		if !ok {
			continue
		}
		if len(f.SubSelections) >= minSelections && f.TypeName != "" {
			key := shapeKey(f)
			if counts[key] >= 2 {
				def, exists := assigned[key]
				if !exists {
					def = &astref.FragmentDefinition{
						Name:          ctx.NextFragmentName(),
						TypeCondition: f.TypeName,
						SubSelections: f.SubSelections,
					}
					assigned[key] = def
					*defs = append(*defs, def)
				}
				f.SubSelections = []astref.Selection{&astref.FragmentSpread{Name: def.Name}}
				continue
			}
		}
		rewrite(ctx, f.SubSelections, counts, assigned, defs)
	}
}
