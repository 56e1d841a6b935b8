package federation_test

import (
	"testing"

	"github.com/n9te9/graphql-parser/ast"

	"github.com/n9te9/federation-query-planner/internal/federation"
)

func mustSubGraph(t *testing.T, name, sdl string) *federation.SubGraph {
	t.Helper()
	sg, err := federation.NewSubGraph(federation.ServiceName(name), []byte(sdl), "")
	if err != nil {
		t.Fatalf("NewSubGraph(%s) failed: %v", name, err)
	}
	return sg
}

func TestNewSuperGraphComposesOwnership(t *testing.T) {
	products := mustSubGraph(t, "products", `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
		}
		type Query {
			product(id: ID!): Product
		}
	`)
	reviews := mustSubGraph(t, "reviews", `
		type Product @key(fields: "id") {
			id: ID! @external
			reviews: [Review!]!
		}
		type Review {
			id: ID!
			body: String!
		}
	`)

	sg, err := federation.NewSuperGraph([]*federation.SubGraph{products, reviews})
	if err != nil {
		t.Fatalf("NewSuperGraph failed: %v", err)
	}

	if owner := sg.Owner("Product", "name"); owner == nil || owner.Name != "products" {
		t.Fatalf("expected products to own Product.name, got %v", owner)
	}
	if owner := sg.Owner("Product", "reviews"); owner == nil || owner.Name != "reviews" {
		t.Fatalf("expected reviews to own Product.reviews, got %v", owner)
	}
	// id is external in reviews, so only products should resolve it.
	owners := sg.Owners("Product", "id")
	if len(owners) != 1 || owners[0].Name != "products" {
		t.Fatalf("expected only products to own Product.id, got %v", owners)
	}

	if !sg.IsEntityType("Product") {
		t.Fatal("expected Product to be recognized as an entity type")
	}
	if sg.EntityOwner("Product").Name != "products" {
		t.Fatalf("expected products to be the canonical Product entity owner")
	}
}

func TestSuperGraphOverrideMovesOwnership(t *testing.T) {
	legacy := mustSubGraph(t, "legacy-pricing", `
		type Product @key(fields: "id") {
			id: ID!
			price: Float!
		}
	`)
	pricing := mustSubGraph(t, "pricing", `
		type Product @key(fields: "id") {
			id: ID! @external
			price: Float! @override(from: "legacy-pricing")
		}
	`)

	sg, err := federation.NewSuperGraph([]*federation.SubGraph{legacy, pricing})
	if err != nil {
		t.Fatalf("NewSuperGraph failed: %v", err)
	}

	owners := sg.Owners("Product", "price")
	if len(owners) != 1 || owners[0].Name != "pricing" {
		t.Fatalf("expected only pricing to own Product.price after override, got %v", owners)
	}
}

func TestSuperGraphRootTypeNameDefaults(t *testing.T) {
	products := mustSubGraph(t, "products", `
		type Query {
			product(id: ID!): Product
		}
		type Product @key(fields: "id") {
			id: ID!
		}
	`)

	sg, err := federation.NewSuperGraph([]*federation.SubGraph{products})
	if err != nil {
		t.Fatalf("NewSuperGraph failed: %v", err)
	}

	if name := sg.RootTypeName(ast.Query); name != "Query" {
		t.Fatalf("expected default root type name 'Query', got %q", name)
	}
}

func TestNewSuperGraphRejectsEmptyInput(t *testing.T) {
	if _, err := federation.NewSuperGraph(nil); err == nil {
		t.Fatal("expected an error composing zero subgraphs")
	}
}
