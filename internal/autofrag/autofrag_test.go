package autofrag_test

import (
	"testing"

	"github.com/n9te9/federation-query-planner/internal/astref"
	"github.com/n9te9/federation-query-planner/internal/autofrag"
	"github.com/n9te9/federation-query-planner/internal/planctx"
)

func repeatedShape() []astref.Selection {
	shape := func() []astref.Selection {
		return []astref.Selection{
			astref.NewField("street"),
			astref.NewField("city"),
			astref.NewField("zip"),
		}
	}
	return []astref.Selection{
		&astref.Field{Name: "billingAddress", TypeName: "Address", SubSelections: shape()},
		&astref.Field{Name: "shippingAddress", TypeName: "Address", SubSelections: shape()},
	}
}

func TestApplyDisabledReturnsNothing(t *testing.T) {
	ctx := &planctx.Context{Options: planctx.Options{AutoFragmentization: false}}
	selections := repeatedShape()

	defs := autofrag.Apply(ctx, selections)
	if defs != nil {
		t.Fatalf("expected no fragments when disabled, got %v", defs)
	}
	if _, ok := selections[0].(*astref.Field).SubSelections[0].(*astref.Field); !ok {
		t.Fatal("expected selections to be left untouched when disabled")
	}
}

func TestApplyFragmentizesRepeatedShape(t *testing.T) {
	ctx := &planctx.Context{Options: planctx.Options{AutoFragmentization: true}}
	selections := repeatedShape()

	defs := autofrag.Apply(ctx, selections)
	if len(defs) != 1 {
		t.Fatalf("expected exactly one shared fragment, got %d", len(defs))
	}
	if defs[0].TypeCondition != "Address" {
		t.Fatalf("expected fragment type condition 'Address', got %q", defs[0].TypeCondition)
	}

	for _, sel := range selections {
		f := sel.(*astref.Field)
		if len(f.SubSelections) != 1 {
			t.Fatalf("expected %s to be replaced with a single spread, got %+v", f.Name, f.SubSelections)
		}
		spread, ok := f.SubSelections[0].(*astref.FragmentSpread)
		if !ok || spread.Name != defs[0].Name {
			t.Fatalf("expected %s to spread the shared fragment, got %+v", f.Name, f.SubSelections[0])
		}
	}
}

func TestApplyLeavesUniqueShapesAlone(t *testing.T) {
	ctx := &planctx.Context{Options: planctx.Options{AutoFragmentization: true}}
	selections := []astref.Selection{
		&astref.Field{Name: "a", TypeName: "T", SubSelections: []astref.Selection{
			astref.NewField("x"), astref.NewField("y"), astref.NewField("z"),
		}},
	}

	defs := autofrag.Apply(ctx, selections)
	if len(defs) != 0 {
		t.Fatalf("expected no fragments for a shape occurring once, got %d", len(defs))
	}
}
