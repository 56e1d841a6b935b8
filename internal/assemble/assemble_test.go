package assemble_test

import (
	"testing"

	"github.com/n9te9/federation-query-planner/internal/assemble"
	"github.com/n9te9/federation-query-planner/internal/groups"
)

func TestBuildCollapsesSingleGroup(t *testing.T) {
	g := &groups.Group{Service: "products"}

	node, err := assemble.Build([]*groups.Group{g})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if node.Kind != assemble.KindFetch || node.Group != g {
		t.Fatalf("expected a bare Fetch node, got %+v", node)
	}
}

func TestBuildWrapsEntityGroupInFlatten(t *testing.T) {
	root := &groups.Group{Service: "products"}
	entity := &groups.Group{Service: "reviews", IsEntity: true, MergeAt: []string{"product"}, Dependencies: []*groups.Group{root}}

	node, err := assemble.Build([]*groups.Group{root, entity})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if node.Kind != assemble.KindSequence || len(node.Nodes) != 2 {
		t.Fatalf("expected a 2-step Sequence, got %+v", node)
	}
	flatten := node.Nodes[1]
	if flatten.Kind != assemble.KindFlatten {
		t.Fatalf("expected the second step to be a Flatten, got %q", flatten.Kind)
	}
	if len(flatten.Path) != 1 || flatten.Path[0] != "product" {
		t.Fatalf("expected Flatten path [product], got %v", flatten.Path)
	}
}

func TestBuildParallelizesIndependentGroups(t *testing.T) {
	a := &groups.Group{Service: "a"}
	b := &groups.Group{Service: "b"}

	node, err := assemble.Build([]*groups.Group{a, b})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if node.Kind != assemble.KindParallel || len(node.Nodes) != 2 {
		t.Fatalf("expected a 2-way Parallel, got %+v", node)
	}
}

func TestBuildDetectsCycles(t *testing.T) {
	a := &groups.Group{Service: "a"}
	b := &groups.Group{Service: "b"}
	a.Dependencies = []*groups.Group{b}
	b.Dependencies = []*groups.Group{a}

	if _, err := assemble.Build([]*groups.Group{a, b}); err == nil {
		t.Fatal("expected a cycle error")
	} else if _, ok := err.(*assemble.CycleError); !ok {
		t.Fatalf("expected a *CycleError, got %T: %v", err, err)
	}
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	if _, err := assemble.Build(nil); err == nil {
		t.Fatal("expected an error assembling zero groups")
	}
}
