// Package assemble turns the flat Group DAG produced by internal/groups
// into the literal Fetch/Sequence/Parallel/Flatten tree the public
// planner returns (spec.md §4.5 "Plan assembler"). This has no direct
// teacher precedent: the teacher's executor resolves a flat Step graph
// into execution order at request time via Kahn's algorithm
// (federation/executor/executor_v2.go's validateDAG/findReadySteps).
// Because the plan itself must carry the tree (spec.md §6 JSON schema),
// this package performs the same cycle check up front and folds
// dependency layers into nested Sequence/Parallel/Flatten nodes instead
// of leaving topological resolution for a runtime executor.
package assemble

import (
	"fmt"

	"github.com/n9te9/federation-query-planner/internal/groups"
)

// NodeKind discriminates the tree shapes spec.md §6 defines.
type NodeKind string

const (
	KindFetch    NodeKind = "Fetch"
	KindSequence NodeKind = "Sequence"
	KindParallel NodeKind = "Parallel"
	KindFlatten  NodeKind = "Flatten"
)

// Node is one node of the assembled QueryPlan tree. Fetch nodes carry
// Group and leave Nodes empty; Sequence/Parallel carry Nodes and leave
// Group nil; Flatten always wraps exactly one child (in Nodes[0]) and
// carries the response Path the child's result merges into.
type Node struct {
	Kind  NodeKind
	Group *groups.Group
	Nodes []*Node
	Path  []string
}

// CycleError reports a dependency cycle among groups, which can only
// arise from a defective composed schema (e.g. two entities each
// requiring a field the other provides) since the operation's own
// selection tree has no cycles.
type CycleError struct {
	Services []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic fetch dependency involving services %v", e.Services)
}

// Build performs Kahn's-algorithm layering over allGroups (grounded on
// executor_v2.go's validateDAG/findReadySteps) and folds each layer into
// the plan tree: a layer of one group collapses to its Fetch (or, for an
// entity group, a Flatten wrapping that Fetch); a layer of several
// independent groups becomes a Parallel; successive layers chain into a
// Sequence. A plan with only one layer and one group returns that node
// directly with no enclosing Sequence/Parallel (spec.md §3 invariant
// "no needless wrapping").
func Build(allGroups []*groups.Group) (*Node, error) {
	if len(allGroups) == 0 {
		return nil, fmt.Errorf("no fetch groups to assemble")
	}

	layers, err := layer(allGroups)
	if err != nil {
		return nil, err
	}

	var sequence []*Node
	for _, l := range layers {
		sequence = append(sequence, layerNode(l))
	}

	if len(sequence) == 1 {
		return sequence[0], nil
	}
	return &Node{Kind: KindSequence, Nodes: sequence}, nil
}

// layer groups allGroups into successive Kahn's-algorithm layers: layer
// 0 holds every group with no dependencies, layer 1 holds every group
// whose dependencies lie entirely in layer 0, and so on. A remaining
// group with no ready layer once every other group has been placed means
// the dependency graph has a cycle.
func layer(allGroups []*groups.Group) ([][]*groups.Group, error) {
	placed := make(map[*groups.Group]bool, len(allGroups))
	remaining := append([]*groups.Group{}, allGroups...)

	var layers [][]*groups.Group
	for len(remaining) > 0 {
		var ready []*groups.Group
		var next []*groups.Group

		for _, g := range remaining {
			if dependenciesSatisfied(g, placed) {
				ready = append(ready, g)
			} else {
				next = append(next, g)
			}
		}

		if len(ready) == 0 {
			names := make([]string, len(remaining))
			for i, g := range remaining {
				names[i] = string(g.Service)
			}
			return nil, &CycleError{Services: names}
		}

		for _, g := range ready {
			placed[g] = true
		}
		layers = append(layers, ready)
		remaining = next
	}

	return layers, nil
}

func dependenciesSatisfied(g *groups.Group, placed map[*groups.Group]bool) bool {
	for _, dep := range g.Dependencies {
		if !placed[dep] {
			return false
		}
	}
	return true
}

// layerNode folds one layer into a single node: a lone group becomes its
// Fetch (wrapped in Flatten if it is an entity fetch merging into a
// parent path), several independent groups become a Parallel of their
// per-group nodes.
func layerNode(l []*groups.Group) *Node {
	if len(l) == 1 {
		return fetchNode(l[0])
	}

	nodes := make([]*Node, len(l))
	for i, g := range l {
		nodes[i] = fetchNode(g)
	}
	return &Node{Kind: KindParallel, Nodes: nodes}
}

func fetchNode(g *groups.Group) *Node {
	fetch := &Node{Kind: KindFetch, Group: g}
	if g.IsEntity {
		return &Node{Kind: KindFlatten, Path: g.MergeAt, Nodes: []*Node{fetch}}
	}
	return fetch
}
