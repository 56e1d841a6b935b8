// Package planctx carries the state threaded through one Plan() call:
// the composed schema, the operation being planned, its fragment
// definitions, the caller's options, and the counters the
// autofragmentizer needs to mint unique names (spec.md §4.2 "Context").
package planctx

import (
	"fmt"

	"github.com/n9te9/graphql-parser/ast"

	"github.com/n9te9/federation-query-planner/internal/federation"
)

// Options mirrors the caller-visible QueryPlanningOptions (spec.md §6),
// kept here too so every internal package can consult it without
// importing the public planner package (which would cycle back).
type Options struct {
	AutoFragmentization bool
}

// Context is built once per Plan() call and threaded by pointer through
// every internal component; nothing in internal/* keeps its own copy of
// the schema or operation.
type Context struct {
	Schema    *federation.SuperGraph
	Operation *ast.OperationDefinition
	Fragments map[string]*ast.FragmentDefinition
	Options   Options

	fragmentSeq int
}

// New builds a Context for one operation against one composed schema.
// OperationName selects among multiple operations in the document when
// non-empty; with a single operation present, OperationName may be
// empty.
func New(schema *federation.SuperGraph, doc *ast.Document, operationName string, opts Options) (*Context, error) {
	fragments := make(map[string]*ast.FragmentDefinition)
	var ops []*ast.OperationDefinition

	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.FragmentDefinition:
			fragments[d.Name.String()] = d
		case *ast.OperationDefinition:
			ops = append(ops, d)
		}
	}

	op, err := selectOperation(ops, operationName)
	if err != nil {
		return nil, err
	}

	return &Context{
		Schema:    schema,
		Operation: op,
		Fragments: fragments,
		Options:   opts,
	}, nil
}

func selectOperation(ops []*ast.OperationDefinition, name string) (*ast.OperationDefinition, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("document declares no operations")
	}
	if name == "" {
		if len(ops) > 1 {
			return nil, fmt.Errorf("document declares %d operations; an operation name is required", len(ops))
		}
		return ops[0], nil
	}
	for _, op := range ops {
		if op.Name != nil && op.Name.String() == name {
			return op, nil
		}
	}
	return nil, fmt.Errorf("no operation named %q", name)
}

// RootTypeName is the object type the planned operation's root selection
// set resolves against.
func (c *Context) RootTypeName() string {
	return c.Schema.RootTypeName(c.Operation.Operation)
}

// IsMutation reports whether the planned operation is a mutation, which
// forces top-level fetch groups into a Sequence rather than a Parallel
// (spec.md §4.5 "Mutation root").
func (c *Context) IsMutation() bool {
	return c.Operation.Operation == ast.Mutation
}

// NextFragmentName mints a unique, deterministic fragment name for the
// autofragmentizer (spec.md §4.6); deterministic because plans must be
// reproducible for the same input operation.
func (c *Context) NextFragmentName() string {
	c.fragmentSeq++
	return fmt.Sprintf("__QueryPlanFragment_%d", c.fragmentSeq)
}
