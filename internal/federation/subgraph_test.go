package federation_test

import (
	"testing"

	"github.com/n9te9/federation-query-planner/internal/federation"
)

func TestNewSubGraphExtractsEntity(t *testing.T) {
	sdl := `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
			reviews: [Review!]! @provides(fields: "name")
		}

		type Query {
			product(id: ID!): Product
		}
	`

	sg, err := federation.NewSubGraph("products", []byte(sdl), "http://products.internal")
	if err != nil {
		t.Fatalf("NewSubGraph failed: %v", err)
	}

	entity, ok := sg.Entity("Product")
	if !ok {
		t.Fatalf("expected Product to be an entity")
	}
	if len(entity.Keys) != 1 || entity.Keys[0].FieldSet != "id" {
		t.Fatalf("unexpected keys: %+v", entity.Keys)
	}
	if !entity.Keys[0].Resolvable {
		t.Fatalf("expected key to be resolvable by default")
	}

	reviews, ok := entity.Fields["reviews"]
	if !ok {
		t.Fatalf("expected reviews field metadata")
	}
	if len(reviews.Provides) != 1 || reviews.Provides[0] != "name" {
		t.Fatalf("unexpected provides: %+v", reviews.Provides)
	}
}

func TestNewSubGraphParsesOverride(t *testing.T) {
	sdl := `
		type Product @key(fields: "id") {
			id: ID!
			price: Float! @override(from: "legacy-pricing")
		}
	`

	sg, err := federation.NewSubGraph("pricing", []byte(sdl), "")
	if err != nil {
		t.Fatalf("NewSubGraph failed: %v", err)
	}

	entity, _ := sg.Entity("Product")
	price := entity.Fields["price"]
	if price.OverrideSvc != "legacy-pricing" {
		t.Fatalf("expected override source 'legacy-pricing', got %q", price.OverrideSvc)
	}
}

func TestNewSubGraphRejectsInvalidSDL(t *testing.T) {
	if _, err := federation.NewSubGraph("broken", []byte("type {{{"), ""); err == nil {
		t.Fatal("expected an error for malformed SDL")
	}
}

func TestEntityIsResolvable(t *testing.T) {
	e := &federation.Entity{Keys: []federation.Key{{FieldSet: "id", Resolvable: false}}}
	if e.IsResolvable() {
		t.Fatal("expected entity with only non-resolvable keys to be unresolvable")
	}

	e.Keys = append(e.Keys, federation.Key{FieldSet: "sku", Resolvable: true})
	if !e.IsResolvable() {
		t.Fatal("expected entity with at least one resolvable key to be resolvable")
	}
}
