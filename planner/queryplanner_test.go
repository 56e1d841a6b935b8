package planner_test

import (
	"encoding/json"
	"testing"

	"github.com/n9te9/federation-query-planner/planner"
)

const productsSDL = `
	type Product @key(fields: "id") {
		id: ID!
		name: String!
	}
	type Query {
		product(id: ID!): Product
	}
`

const reviewsSDL = `
	extend type Product @key(fields: "id") {
		id: ID! @external
		reviews: [Review!]!
	}
	type Review {
		id: ID!
		body: String!
	}
`

func newTestPlanner(t *testing.T) *planner.QueryPlanner {
	t.Helper()
	p, err := planner.NewQueryPlanner(map[string][]byte{
		"products": []byte(productsSDL),
		"reviews":  []byte(reviewsSDL),
	})
	if err != nil {
		t.Fatalf("NewQueryPlanner failed: %v", err)
	}
	return p
}

func TestPlanSingleServiceCollapsesToOneFetch(t *testing.T) {
	p := newTestPlanner(t)

	plan, err := p.Plan(`query { product(id: "1") { name } }`, planner.QueryPlanningOptions{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if plan.Node == nil || plan.Node.Kind != planner.NodeFetch {
		t.Fatalf("expected a single Fetch node, got %+v", plan.Node)
	}
	if plan.Node.ServiceName != "products" {
		t.Fatalf("expected products to resolve the whole query, got %q", plan.Node.ServiceName)
	}
	const want = `{product(id:"1"){name}}`
	if plan.Node.Operation != want {
		t.Fatalf("operation text = %q, want %q", plan.Node.Operation, want)
	}
	if len(plan.Node.VariableUsages) != 0 {
		t.Fatalf("expected no variable usages, got %v", plan.Node.VariableUsages)
	}
	if len(plan.Node.Requires) != 0 {
		t.Fatalf("expected no requires tree for a root fetch, got %v", plan.Node.Requires)
	}
}

func TestPlanCrossServiceFieldProducesSequenceAndFlatten(t *testing.T) {
	p := newTestPlanner(t)

	plan, err := p.Plan(`
		query {
			product(id: "1") {
				name
				reviews {
					body
				}
			}
		}
	`, planner.QueryPlanningOptions{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	root := plan.Node
	if root.Kind != planner.NodeSequence {
		t.Fatalf("expected a top-level Sequence, got %q", root.Kind)
	}
	if len(root.Nodes) != 2 {
		t.Fatalf("expected 2 steps in the sequence, got %d", len(root.Nodes))
	}

	first := root.Nodes[0]
	if first.Kind != planner.NodeFetch || first.ServiceName != "products" {
		t.Fatalf("expected the first step to fetch from products, got %+v", first)
	}
	const wantFirst = `{product(id:"1"){name __typename id}}`
	if first.Operation != wantFirst {
		t.Fatalf("first.Operation = %q, want %q", first.Operation, wantFirst)
	}

	second := root.Nodes[1]
	if second.Kind != planner.NodeFlatten {
		t.Fatalf("expected the second step to be a Flatten, got %q", second.Kind)
	}
	if len(second.Path) != 1 || second.Path[0] != "product" {
		t.Fatalf("expected Flatten path [product], got %v", second.Path)
	}

	fetch := second.Nodes[0]
	if fetch.Kind != planner.NodeFetch || fetch.ServiceName != "reviews" {
		t.Fatalf("expected the flattened fetch to hit reviews, got %+v", fetch)
	}
	const wantEntity = `query($representations:[_Any!]!){_entities(representations:$representations){...on Product{reviews{body}}}}`
	if fetch.Operation != wantEntity {
		t.Fatalf("fetch.Operation = %q, want %q", fetch.Operation, wantEntity)
	}
	if len(fetch.Requires) != 2 {
		t.Fatalf("expected the entity fetch to require __typename and id, got %v", fetch.Requires)
	}
	names := map[string]bool{}
	for _, item := range fetch.Requires {
		if item.Kind != planner.SelectionField {
			t.Fatalf("expected a bare field in the requires tree, got %+v", item)
		}
		names[item.Name] = true
	}
	if !names["__typename"] || !names["id"] {
		t.Fatalf("expected requires to include __typename and id, got %v", fetch.Requires)
	}
}

func TestPlanRootFetchWithVariableKeepsOperationKeyword(t *testing.T) {
	p := newTestPlanner(t)

	plan, err := p.Plan(`query($id: ID!) { product(id: $id) { name } }`, planner.QueryPlanningOptions{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	const want = `query{product(id:$id){name}}`
	if plan.Node.Operation != want {
		t.Fatalf("operation text = %q, want %q", plan.Node.Operation, want)
	}
	if len(plan.Node.VariableUsages) != 1 || plan.Node.VariableUsages[0] != "id" {
		t.Fatalf("expected variableUsages [id], got %v", plan.Node.VariableUsages)
	}
}

func TestQueryPlanJSONShapeMatchesWireSpec(t *testing.T) {
	p := newTestPlanner(t)

	plan, err := p.Plan(`
		query {
			product(id: "1") {
				name
				reviews { body }
			}
		}
	`, planner.QueryPlanningOptions{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := top["kind"]; ok {
		t.Fatal("QueryPlan must not carry a top-level kind discriminator")
	}
	node, ok := top["node"]
	if !ok {
		t.Fatal("expected a top-level node key")
	}

	var sequence struct {
		Kind  string            `json:"kind"`
		Nodes []json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(node, &sequence); err != nil {
		t.Fatalf("Unmarshal sequence failed: %v", err)
	}
	if sequence.Kind != "Sequence" || len(sequence.Nodes) != 2 {
		t.Fatalf("unexpected sequence shape: %+v", sequence)
	}

	var flatten struct {
		Kind string          `json:"kind"`
		Path []string        `json:"path"`
		Node json.RawMessage `json:"node"`
	}
	if err := json.Unmarshal(sequence.Nodes[1], &flatten); err != nil {
		t.Fatalf("Unmarshal flatten failed: %v", err)
	}
	if flatten.Kind != "Flatten" || flatten.Node == nil {
		t.Fatalf("expected Flatten to nest its child under a singular node key, got %+v", flatten)
	}

	var fetch struct {
		Kind           string `json:"kind"`
		ServiceName    string `json:"serviceName"`
		VariableUsages []string `json:"variableUsages"`
		Operation      string `json:"operation"`
		Requires       []struct {
			Kind string `json:"kind"`
			Name string `json:"name"`
		} `json:"requires"`
	}
	if err := json.Unmarshal(flatten.Node, &fetch); err != nil {
		t.Fatalf("Unmarshal fetch failed: %v", err)
	}
	if fetch.Kind != "Fetch" || fetch.ServiceName != "reviews" {
		t.Fatalf("unexpected fetch shape: %+v", fetch)
	}
	if fetch.VariableUsages == nil {
		t.Fatal("variableUsages must serialize as [] rather than null")
	}
	if len(fetch.Requires) != 2 {
		t.Fatalf("expected requires to carry a SelectionSetJSON tree, got %+v", fetch.Requires)
	}
}

func TestPlanProvidesCollapsesToSingleFetch(t *testing.T) {
	p, err := planner.NewQueryPlanner(map[string][]byte{
		"reviews": []byte(`
			type Query {
				topReviews: [Review!]!
			}
			type Review @key(fields: "id") {
				id: ID!
				author: User @provides(fields: "username")
			}
			extend type User @key(fields: "id") {
				id: ID! @external
				username: String! @external
			}
		`),
		"accounts": []byte(`
			type User @key(fields: "id") {
				id: ID!
				username: String!
			}
		`),
	})
	if err != nil {
		t.Fatalf("NewQueryPlanner failed: %v", err)
	}

	plan, err := p.Plan(`query { topReviews { author { username } } }`, planner.QueryPlanningOptions{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if plan.Node == nil || plan.Node.Kind != planner.NodeFetch {
		t.Fatalf("expected @provides to collapse to a single Fetch, got %+v", plan.Node)
	}
	if plan.Node.ServiceName != "reviews" {
		t.Fatalf("expected the reviews service to resolve author.username inline, got %q", plan.Node.ServiceName)
	}
	const want = `{topReviews{author{username}}}`
	if plan.Node.Operation != want {
		t.Fatalf("operation text = %q, want %q", plan.Node.Operation, want)
	}
}

func TestPlanRejectsUnknownField(t *testing.T) {
	p := newTestPlanner(t)

	if _, err := p.Plan(`query { product(id: "1") { doesNotExist } }`, planner.QueryPlanningOptions{}); err == nil {
		t.Fatal("expected an error for a field absent from the composed schema")
	}
}

func TestPlanRejectsMalformedQuery(t *testing.T) {
	p := newTestPlanner(t)

	if _, err := p.Plan(`query { product(`, planner.QueryPlanningOptions{}); err == nil {
		t.Fatal("expected a parse error for malformed query text")
	}
}
