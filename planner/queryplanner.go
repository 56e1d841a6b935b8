// Package planner is the public entry point: compose subgraph schemas
// once with NewQueryPlanner, then call Plan for every incoming operation
// against that composed schema (spec.md §1 "Purpose & scope"). Parsing
// is delegated entirely to github.com/n9te9/graphql-parser; this
// package never implements a lexer or parser of its own (spec.md
// "Non-goals").
package planner

import (
	"fmt"
	"sort"

	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"

	"github.com/n9te9/federation-query-planner/internal/assemble"
	"github.com/n9te9/federation-query-planner/internal/astref"
	"github.com/n9te9/federation-query-planner/internal/autofrag"
	"github.com/n9te9/federation-query-planner/internal/federation"
	"github.com/n9te9/federation-query-planner/internal/format"
	"github.com/n9te9/federation-query-planner/internal/groups"
	"github.com/n9te9/federation-query-planner/internal/planctx"
)

// QueryPlanningOptions controls optional planning behavior a caller may
// request per Plan() call.
type QueryPlanningOptions struct {
	// AutoFragmentization enables the C6 pass that replaces repeated
	// sub-selections with shared fragment spreads (spec.md §4.6).
	AutoFragmentization bool

	// OperationName selects one operation out of a document declaring
	// several; it may be left empty when the document has exactly one.
	OperationName string
}

// QueryPlanner holds one composed schema and plans any number of
// operations against it. It is safe for concurrent use: Plan only reads
// the composed schema built at construction time (spec.md §5
// "Concurrency & resource model").
type QueryPlanner struct {
	schema *federation.SuperGraph
}

// NewQueryPlanner parses and composes one subgraph SDL document per
// entry of subgraphSDLs (service name -> schema text) into a single
// federated schema. Subgraphs are composed in service-name order, so the
// same input always yields the same ownership order.
func NewQueryPlanner(subgraphSDLs map[string][]byte) (*QueryPlanner, error) {
	names := make([]string, 0, len(subgraphSDLs))
	for name := range subgraphSDLs {
		names = append(names, name)
	}
	sort.Strings(names)

	subgraphs := make([]*federation.SubGraph, 0, len(subgraphSDLs))
	for _, name := range names {
		sg, err := federation.NewSubGraph(federation.ServiceName(name), subgraphSDLs[name], "")
		if err != nil {
			return nil, schemaError(err.Error())
		}
		subgraphs = append(subgraphs, sg)
	}

	composed, err := federation.NewSuperGraph(subgraphs)
	if err != nil {
		return nil, schemaError(err.Error())
	}

	return &QueryPlanner{schema: composed}, nil
}

// Plan parses queryText and builds a QueryPlan against the planner's
// composed schema. A query that resolves entirely within one subgraph
// collapses to a single Fetch node with no enclosing Sequence/Parallel.
func (p *QueryPlanner) Plan(queryText string, opts QueryPlanningOptions) (*QueryPlan, error) {
	l := lexer.New(queryText)
	pr := parser.New(l)
	doc := pr.ParseDocument()
	if len(pr.Errors()) > 0 {
		return nil, queryError(fmt.Sprintf("%v", pr.Errors()))
	}

	ctx, err := planctx.New(p.schema, doc, opts.OperationName, planctx.Options{
		AutoFragmentization: opts.AutoFragmentization,
	})
	if err != nil {
		return nil, invalidQuery(err.Error())
	}

	allGroups, err := groups.Build(ctx)
	if err != nil {
		return nil, invalidQuery(err.Error())
	}
	if len(allGroups) == 0 {
		return &QueryPlan{}, nil
	}

	fragments := make(map[*groups.Group][]*astref.FragmentDefinition, len(allGroups))
	for _, g := range allGroups {
		fragments[g] = autofrag.Apply(ctx, g.Selections)
	}

	tree, err := assemble.Build(allGroups)
	if err != nil {
		return nil, invalidQuery(err.Error())
	}

	node, err := renderNode(ctx, tree, fragments)
	if err != nil {
		return nil, invalidQuery(err.Error())
	}

	return &QueryPlan{Node: node}, nil
}

func renderNode(ctx *planctx.Context, n *assemble.Node, fragments map[*groups.Group][]*astref.FragmentDefinition) (*Node, error) {
	if n == nil {
		return nil, nil
	}

	switch n.Kind {
	case assemble.KindFetch:
		return renderFetch(ctx, n.Group, fragments[n.Group])
	case assemble.KindFlatten:
		child, err := renderNode(ctx, n.Nodes[0], fragments)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeFlatten, Path: n.Path, Nodes: []*Node{child}}, nil
	case assemble.KindSequence, assemble.KindParallel:
		kind := NodeSequence
		if n.Kind == assemble.KindParallel {
			kind = NodeParallel
		}
		children := make([]*Node, len(n.Nodes))
		for i, c := range n.Nodes {
			rendered, err := renderNode(ctx, c, fragments)
			if err != nil {
				return nil, err
			}
			children[i] = rendered
		}
		return &Node{Kind: kind, Nodes: children}, nil
	default:
		return nil, invalidQuery("unknown plan node kind")
	}
}

func renderFetch(ctx *planctx.Context, g *groups.Group, defs []*astref.FragmentDefinition) (*Node, error) {
	varUsages := astref.CollectVariables(g.Selections)

	w := format.NewCompact()
	if g.IsEntity {
		writeEntityOperation(w, g, defs)
	} else {
		writeRootOperation(ctx, w, g, defs, len(varUsages) > 0)
	}

	return &Node{
		Kind:           NodeFetch,
		ServiceName:    string(g.Service),
		Operation:      w.String(),
		VariableUsages: varUsages,
		Requires:       selectionSetJSON(g.Representation),
	}, nil
}

// selectionSetJSON converts a group's astref selections into the stable
// SelectionSetJSON wire tree (spec.md §6).
func selectionSetJSON(sels []astref.Selection) SelectionSetJSON {
	if len(sels) == 0 {
		return nil
	}
	out := make(SelectionSetJSON, 0, len(sels))
	for _, sel := range sels {
		switch s := sel.(type) {
		case *astref.Field:
			out = append(out, SelectionItem{
				Kind:       SelectionField,
				Name:       s.ResponseKey(),
				Selections: selectionSetJSON(s.SubSelections),
			})
		case *astref.InlineFragment:
			out = append(out, SelectionItem{
				Kind:          SelectionInlineFragment,
				TypeCondition: s.TypeCondition,
				Selections:    selectionSetJSON(s.SubSelections),
			})
		}
	}
	return out
}

// writeRootOperation writes a plain (non-entity) fetch's operation text,
// compact and keyword-less whenever the GraphQL query shorthand allows it
// -- a query with no declared variables (spec.md §6, confirmed against
// the query-planner-wasm reference's "{me{name}}"). Mutations, and
// queries that do reference a variable, always carry their operation
// keyword since the shorthand form forbids both.
func writeRootOperation(ctx *planctx.Context, w *format.Formatter, g *groups.Group, defs []*astref.FragmentDefinition, hasVariables bool) {
	for _, def := range defs {
		def.Display(w)
	}
	if ctx.IsMutation() || hasVariables {
		w.Write(operationKeyword(ctx))
	}
	w.StartBlock()
	for _, sel := range g.Selections {
		sel.Display(w)
	}
	w.EndBlock()
}

// writeEntityOperation writes an entity fetch's `_entities` operation
// text. It always declares $representations, so unlike a root fetch it
// never qualifies for the keyword-less query shorthand (spec.md §6,
// scenario S2: "query($representations:[_Any!]!){_entities(...)...}").
func writeEntityOperation(w *format.Formatter, g *groups.Group, defs []*astref.FragmentDefinition) {
	for _, def := range defs {
		def.Display(w)
	}
	w.Write("query($representations:[_Any!]!)")
	w.StartBlock()
	w.Write("_entities(representations:$representations)")
	w.StartBlock()
	w.Write("...on ")
	w.Write(g.ParentType)
	w.StartBlock()
	for _, sel := range g.Selections {
		sel.Display(w)
	}
	w.EndBlock()
	w.EndBlock()
	w.EndBlock()
}

func operationKeyword(ctx *planctx.Context) string {
	if ctx.IsMutation() {
		return "mutation"
	}
	return "query"
}

