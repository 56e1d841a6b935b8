package visitor_test

import (
	"testing"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"

	"github.com/n9te9/federation-query-planner/internal/visitor"
)

func parseSelections(t *testing.T, query string) ([]ast.Selection, map[string]*ast.FragmentDefinition) {
	t.Helper()
	l := lexer.New(query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse error: %v", p.Errors())
	}

	fragments := make(map[string]*ast.FragmentDefinition)
	var selections []ast.Selection
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.FragmentDefinition:
			fragments[d.Name.String()] = d
		case *ast.OperationDefinition:
			selections = d.SelectionSet
		}
	}
	return selections, fragments
}

func TestWalkInlinesFragmentSpread(t *testing.T) {
	selections, fragments := parseSelections(t, `
		query {
			product(id: "1") {
				...productFields
			}
		}
		fragment productFields on Product {
			name
			price
		}
	`)

	entries, err := visitor.Collect(fragments, selections, "Query")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Field.Name.String() != "product" {
		t.Fatalf("unexpected top-level entries: %+v", entries)
	}

	nested, err := visitor.Collect(fragments, entries[0].Field.SelectionSet, "Product")
	if err != nil {
		t.Fatalf("Collect on nested selection failed: %v", err)
	}
	if len(nested) != 2 {
		t.Fatalf("expected fragment spread to inline to 2 fields, got %d", len(nested))
	}
	for _, e := range nested {
		if e.TypeCondition != "Product" {
			t.Errorf("expected inlined field type condition 'Product', got %q", e.TypeCondition)
		}
	}
}

func TestWalkThreadsInlineFragmentTypeCondition(t *testing.T) {
	selections, fragments := parseSelections(t, `
		query {
			node(id: "1") {
				... on Product {
					name
				}
				... on Review {
					body
				}
			}
		}
	`)

	entries, _ := visitor.Collect(fragments, selections, "Query")
	nested, err := visitor.Collect(fragments, entries[0].Field.SelectionSet, "Node")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(nested) != 2 {
		t.Fatalf("expected 2 fields across inline fragments, got %d", len(nested))
	}
	if nested[0].TypeCondition != "Product" || nested[1].TypeCondition != "Review" {
		t.Fatalf("unexpected type conditions: %+v", nested)
	}
}

func TestHasTypename(t *testing.T) {
	selections, _ := parseSelections(t, `query { product(id: "1") { __typename name } }`)
	productSel := selections[0].(*ast.Field).SelectionSet
	if !visitor.HasTypename(productSel) {
		t.Fatal("expected __typename to be detected")
	}

	noTypename, _ := parseSelections(t, `query { product(id: "1") { name } }`)
	if visitor.HasTypename(noTypename[0].(*ast.Field).SelectionSet) {
		t.Fatal("expected no __typename to be detected")
	}
}
