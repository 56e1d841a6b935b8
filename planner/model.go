package planner

import "encoding/json"

// QueryPlan is the wire-visible result of a Plan() call: a discriminated
// Fetch/Sequence/Parallel/Flatten tree, serialized the way Apollo
// Federation's own query planner output is shaped (spec.md §6). A nil
// Node means the operation selects nothing that crosses a service
// boundary worth planning (e.g. an empty selection set) -- callers
// should treat that as "nothing to execute", not an error. The wire
// schema carries no top-level "kind" discriminator.
type QueryPlan struct {
	Node *Node `json:"node,omitempty"`
}

// NodeKind discriminates the union Node represents.
type NodeKind string

const (
	NodeFetch    NodeKind = "Fetch"
	NodeSequence NodeKind = "Sequence"
	NodeParallel NodeKind = "Parallel"
	NodeFlatten  NodeKind = "Flatten"
)

// Node is one tree node. Only the fields relevant to Kind are populated;
// MarshalJSON renders each Kind's own wire shape rather than one shared
// struct, since Flatten nests its single child under "node" while
// Sequence/Parallel nest theirs under "nodes" (spec.md §6).
type Node struct {
	Kind NodeKind

	// Fetch fields. VariableUsages lists every operation variable this
	// fetch's selections (and, transitively, any nested selections)
	// reference, and is never nil on the wire (spec.md §6, §4.2
	// "variable-usage collectors").
	ServiceName    string
	Operation      string
	VariableUsages []string
	Requires       SelectionSetJSON

	// Sequence/Parallel fields.
	Nodes []*Node

	// Flatten fields: Path is the response path (by response key) the
	// wrapped node's result is merged into. No "@" element is inserted
	// where the path crosses a list field. The wrapped node is Nodes[0].
	Path []string
}

// SelectionItemKind discriminates one entry of a SelectionSetJSON tree.
type SelectionItemKind string

const (
	SelectionField          SelectionItemKind = "Field"
	SelectionInlineFragment SelectionItemKind = "InlineFragment"
)

// SelectionItem is one entry of a Fetch's `requires` tree: either a plain
// field (optionally with nested selections) or an inline fragment
// narrowing to a concrete type (spec.md §6 SelectionSetJSON).
type SelectionItem struct {
	Kind          SelectionItemKind `json:"kind"`
	Name          string            `json:"name,omitempty"`
	TypeCondition string            `json:"typeCondition,omitempty"`
	Selections    SelectionSetJSON  `json:"selections,omitempty"`
}

// SelectionSetJSON is the stable wire shape a Fetch's `requires`
// selection tree serializes to (spec.md §6).
type SelectionSetJSON []SelectionItem

type fetchWire struct {
	Kind           NodeKind         `json:"kind"`
	ServiceName    string           `json:"serviceName"`
	VariableUsages []string         `json:"variableUsages"`
	Operation      string           `json:"operation"`
	Requires       SelectionSetJSON `json:"requires,omitempty"`
}

type flattenWire struct {
	Kind NodeKind `json:"kind"`
	Path []string `json:"path"`
	Node *Node    `json:"node"`
}

type listWire struct {
	Kind  NodeKind `json:"kind"`
	Nodes []*Node  `json:"nodes"`
}

// MarshalJSON renders n per spec.md §6's discriminated union.
func (n *Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case NodeFetch:
		usages := n.VariableUsages
		if usages == nil {
			usages = []string{}
		}
		return json.Marshal(fetchWire{
			Kind:           n.Kind,
			ServiceName:    n.ServiceName,
			VariableUsages: usages,
			Operation:      n.Operation,
			Requires:       n.Requires,
		})
	case NodeFlatten:
		var child *Node
		if len(n.Nodes) > 0 {
			child = n.Nodes[0]
		}
		return json.Marshal(flattenWire{Kind: n.Kind, Path: n.Path, Node: child})
	default: // Sequence, Parallel
		return json.Marshal(listWire{Kind: n.Kind, Nodes: n.Nodes})
	}
}
