// Package visitor performs the selection walk the group builder uses:
// it inlines fragment spreads, threads inline-fragment type conditions
// down to the fields they narrow, and yields one (concrete parent type,
// field) entry per field of the selection level it is given (a field's
// own sub-selection is not entered) -- without itself deciding which
// service resolves the field
// (spec.md §4.3 "Selection visitor"). This generalizes the teacher's
// buildStepSelections/expandFragmentsInSelections fragment-expansion
// pattern into a reusable walk independent of any one service.
package visitor

import (
	"github.com/n9te9/graphql-parser/ast"
)

// Entry is one field encountered by the walk, tagged with the concrete
// object type it is selected against. TypeCondition differs from the
// walk's starting parent type only once the walk has descended through
// an inline fragment or a spread naming a narrower type.
type Entry struct {
	TypeCondition string
	Field         *ast.Field
}

// Visit is called once per field the walk discovers at the given
// selection level, fragments inlined, in document order. Returning an
// error aborts the walk.
type Visit func(Entry) error

// Walk inlines every fragment spread and inline fragment in selections,
// invoking visit for each field with the concrete type it is declared
// against. parentType seeds the type condition for fields that appear
// directly (not under a narrowing fragment).
func Walk(fragments map[string]*ast.FragmentDefinition, selections []ast.Selection, parentType string, visit Visit) error {
	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			if err := visit(Entry{TypeCondition: parentType, Field: s}); err != nil {
				return err
			}
		case *ast.InlineFragment:
			typeCondition := parentType
			if s.TypeCondition != nil {
				typeCondition = s.TypeCondition.Name.String()
			}
			if err := Walk(fragments, s.SelectionSet, typeCondition, visit); err != nil {
				return err
			}
		case *ast.FragmentSpread:
			def, ok := fragments[s.Name.String()]
			if !ok {
				continue
			}
			typeCondition := parentType
			if def.TypeCondition != nil {
				typeCondition = def.TypeCondition.Name.String()
			}
			if err := Walk(fragments, def.SelectionSet, typeCondition, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// HasTypename reports whether selections directly contains a
// "__typename" field at its top level (inline fragments and spreads are
// not descended into: a __typename requested inside a narrower type
// condition does not satisfy the need for one at this level).
func HasTypename(selections []ast.Selection) bool {
	for _, sel := range selections {
		if f, ok := sel.(*ast.Field); ok && f.Name.String() == "__typename" {
			return true
		}
	}
	return false
}

// Collect runs Walk and returns every entry in document order; callers
// that need random access (the group builder, grouping by service)
// prefer this to threading their own closures.
func Collect(fragments map[string]*ast.FragmentDefinition, selections []ast.Selection, parentType string) ([]Entry, error) {
	var entries []Entry
	err := Walk(fragments, selections, parentType, func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}
