// Package astref is the planner's reference layer over selections
// (spec.md §4.7). Because the planner reshapes selections heavily --
// injecting key fields, wrapping abstract-type fields in inline
// fragments, building `_entities` calls -- it never mutates the original
// parsed operation. Every Selection here is either a borrowed view of an
// original AST node or a synthesized node built from schema-borrowed
// strings; both present the same Display contract (package format) so
// serialization is uniform regardless of provenance.
package astref

import (
	"fmt"
	"strconv"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/federation-query-planner/internal/format"
)

// Selection is the tagged union of the four selection shapes the planner
// ever needs to emit: a field (original or synthesized), an inline
// fragment the planner itself constructed to dispatch an abstract type,
// and a fragment spread (only ever emitted by the autofragmentizer,
// C6 -- the planner inlines every spread it reads at walk time).
type Selection interface {
	format.Displayable
	isSelection()
}

// Argument is a borrowed (name, value) pair; Value is the original AST
// value node, never copied.
type Argument struct {
	Name  string
	Value ast.Value
}

// Field is a field selection. Name/Alias are borrowed strings (from the
// operation text or from schema field names for synthesized key/typename
// fields); SubSelections is itself built from this same reference layer.
type Field struct {
	Alias         string
	Name          string
	Arguments     []Argument
	SubSelections []Selection

	// TypeName is this field's own return type, set by the group builder.
	// It is metadata only -- Display never emits it -- used by the
	// autofragmentizer to pick a fragment's "on Type" condition.
	TypeName string
}

func (*Field) isSelection() {}

// NewField builds a synthetic leaf field selection, used for injected
// keys, injected @requires inputs, and auto-attached __typename.
func NewField(name string) *Field {
	return &Field{Name: name}
}

// ResponseKey is the key this field occupies in a JSON response: the
// alias if present, otherwise the field name.
func (f *Field) ResponseKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Display renders "alias: name(args) { sub }" with the teacher's
// convention of one field per line, sub-selections indented one level,
// and no sub-selection block for leaf fields.
func (f *Field) Display(w *format.Formatter) {
	w.Indent()
	if f.Alias != "" && f.Alias != f.Name {
		w.Write(f.Alias)
		w.Write(": ")
	}
	w.Write(f.Name)

	if len(f.Arguments) > 0 {
		names := make([]string, len(f.Arguments))
		values := make([]string, len(f.Arguments))
		for i, a := range f.Arguments {
			names[i] = a.Name
			values[i] = renderValue(a.Value)
		}
		format.Arguments(w, names, values)
	}

	if len(f.SubSelections) > 0 {
		if !w.Compact() {
			w.Write(" ")
		}
		w.StartBlock()
		for _, s := range f.SubSelections {
			s.Display(w)
		}
		w.EndBlock()
	} else {
		w.Endline()
	}
}

// InlineFragment is a synthesized `... on ConcreteType { ... }` wrapper,
// used to dispatch fields across the concrete implementations of an
// abstract (interface/union) parent type (spec.md §4.4 "Abstract
// parent").
type InlineFragment struct {
	TypeCondition string
	SubSelections []Selection
}

func (*InlineFragment) isSelection() {}

func (i *InlineFragment) Display(w *format.Formatter) {
	w.Indent()
	if w.Compact() {
		w.Write("...on ")
	} else {
		w.Write("... on ")
	}
	w.Write(i.TypeCondition)
	if !w.Compact() {
		w.Write(" ")
	}
	w.StartBlock()
	for _, s := range i.SubSelections {
		s.Display(w)
	}
	w.EndBlock()
}

// FragmentSpread references a named fragment definition emitted
// alongside the operation text. Only the autofragmentizer (C6) ever
// constructs one; the planner's own selection walk inlines every spread
// it reads (spec.md §4.3 "Fragment spread").
type FragmentSpread struct {
	Name string
}

func (*FragmentSpread) isSelection() {}

func (s *FragmentSpread) Display(w *format.Formatter) {
	w.Indent()
	w.Write("...")
	w.Write(s.Name)
	w.Endline()
}

// FragmentDefinition is a named fragment the autofragmentizer emits into
// a fetch's operation text alongside spreads that reference it.
type FragmentDefinition struct {
	Name          string
	TypeCondition string
	SubSelections []Selection
}

func (d *FragmentDefinition) Display(w *format.Formatter) {
	w.Indent()
	w.Write("fragment ")
	w.Write(d.Name)
	w.Write(" on ")
	w.Write(d.TypeCondition)
	if !w.Compact() {
		w.Write(" ")
	}
	w.StartBlock()
	for _, s := range d.SubSelections {
		s.Display(w)
	}
	w.EndBlock()
}

func renderValue(v ast.Value) string {
	switch val := v.(type) {
	case *ast.Variable:
		return "$" + val.Name
	case *ast.StringValue:
		return strconv.Quote(val.Value)
	case *ast.IntValue:
		return fmt.Sprintf("%d", val.Value)
	case *ast.FloatValue:
		return fmt.Sprintf("%v", val.Value)
	case *ast.BooleanValue:
		return fmt.Sprintf("%t", val.Value)
	case *ast.EnumValue:
		return val.Value
	case *ast.NullValue:
		return "null"
	case *ast.ListValue:
		out := "["
		for i, item := range val.Values {
			if i > 0 {
				out += ", "
			}
			out += renderValue(item)
		}
		return out + "]"
	case *ast.ObjectValue:
		out := "{"
		for i, field := range val.Fields {
			if i > 0 {
				out += ", "
			}
			out += field.Name.String() + ": " + renderValue(field.Value)
		}
		return out + "}"
	default:
		return "null"
	}
}

// CollectVariables walks sels (including nested sub-selections and
// inline fragments) and returns the name of every operation variable
// referenced by an argument, without the leading "$", in first-occurrence
// order and with no duplicates (spec.md §4.2 "variable-usage
// collectors", §6 "variableUsages"). It never descends into the
// synthesized `_entities`/representations envelope a Fetch wraps its
// selections in, since that envelope is not itself part of sels.
func CollectVariables(sels []Selection) []string {
	var names []string
	seen := make(map[string]bool)

	var walk func([]Selection)
	walk = func(sels []Selection) {
		for _, sel := range sels {
			switch s := sel.(type) {
			case *Field:
				for _, a := range s.Arguments {
					collectValueVariables(a.Value, &names, seen)
				}
				walk(s.SubSelections)
			case *InlineFragment:
				walk(s.SubSelections)
			}
		}
	}
	walk(sels)
	return names
}

func collectValueVariables(v ast.Value, names *[]string, seen map[string]bool) {
	switch val := v.(type) {
	case *ast.Variable:
		if !seen[val.Name] {
			seen[val.Name] = true
			*names = append(*names, val.Name)
		}
	case *ast.ListValue:
		for _, item := range val.Values {
			collectValueVariables(item, names, seen)
		}
	case *ast.ObjectValue:
		for _, field := range val.Fields {
			collectValueVariables(field.Value, names, seen)
		}
	}
}

// CloneField deep-copies a Field so callers can inject keys/typename
// into one group's copy of a shared sub-selection without aliasing
// another group's copy.
func CloneField(f *Field) *Field {
	clone := &Field{
		Alias:         f.Alias,
		Name:          f.Name,
		Arguments:     append([]Argument{}, f.Arguments...),
		TypeName:      f.TypeName,
		SubSelections: make([]Selection, len(f.SubSelections)),
	}
	for i, s := range f.SubSelections {
		clone.SubSelections[i] = CloneSelection(s)
	}
	return clone
}

// CloneSelection deep-copies any Selection.
func CloneSelection(s Selection) Selection {
	switch v := s.(type) {
	case *Field:
		return CloneField(v)
	case *InlineFragment:
		subs := make([]Selection, len(v.SubSelections))
		for i, sub := range v.SubSelections {
			subs[i] = CloneSelection(sub)
		}
		return &InlineFragment{TypeCondition: v.TypeCondition, SubSelections: subs}
	case *FragmentSpread:
		return &FragmentSpread{Name: v.Name}
	default:
		return s
	}
}
