// Package groups partitions one operation's selections into FetchGroups,
// one per (service, entity instance) the operation must reach, wiring
// each group's dependency on its parent via the key/requires fields it
// needs injected into that parent's selection (spec.md §4.4 "Group
// builder"). It generalizes the teacher's findAndBuildEntitySteps /
// getKeyFields / ensureAndInjectKeyFields boundary-field walk: instead of
// a flat Step list with a DependsOn index, each Group holds direct
// pointers to the groups it depends on, because the assembler (C5)
// builds the Sequence/Parallel/Flatten tree straight from this graph.
package groups

import (
	"fmt"
	"strings"

	"github.com/n9te9/graphql-parser/ast"

	"github.com/n9te9/federation-query-planner/internal/astref"
	"github.com/n9te9/federation-query-planner/internal/federation"
	"github.com/n9te9/federation-query-planner/internal/planctx"
	"github.com/n9te9/federation-query-planner/internal/visitor"
)

// Group is one fetch's worth of work: a single GraphQL operation sent to
// one service, either against its root type (a "root group") or against
// `_entities` for one entity type (an "entity group").
type Group struct {
	Service    federation.ServiceName
	ParentType string // root type name for a root group, entity type name for an entity group
	IsEntity   bool

	// Representation holds the fields (key fields plus any @requires
	// fields demanded by selections in this group) that must be present
	// in the entity reference passed to this group's _entities call.
	// Nil for root groups.
	Representation []astref.Selection

	// Selections are this group's own top-level fields, rooted at
	// ParentType.
	Selections []astref.Selection

	// MergeAt is the response path, relative to the nearest ancestor
	// group's own selection root, at which this group's result is
	// grafted back in. Empty for root groups.
	MergeAt []string

	Dependencies []*Group
}

// Build partitions ctx's operation into a flat set of Groups: one root
// group per service resolving a top-level field (one per root field for
// a mutation), plus one entity group
// per service boundary the walk crosses. Every Group's Dependencies
// point to the groups that must run before it, so the returned slice is
// a DAG the assembler (C5) can topologically layer directly -- callers
// should not assume any particular grouping of roots vs. entity groups
// beyond what Dependencies encodes.
func Build(ctx *planctx.Context) ([]*Group, error) {
	b := &builder{ctx: ctx, entityGroups: make(map[string]*Group)}

	rootType := ctx.RootTypeName()
	entries, err := visitor.Collect(ctx.Fragments, ctx.Operation.SelectionSet, rootType)
	if err != nil {
		return nil, err
	}

	rootGroups := make(map[federation.ServiceName]*Group)
	var order []*Group

	for _, entry := range entries {
		field := entry.Field
		fieldName := field.Name.String()
		if fieldName == "__typename" {
			continue
		}

		owner := ctx.Schema.Owner(rootType, fieldName)
		if owner == nil {
			return nil, &PlanError{Reason: fmt.Sprintf("no subgraph resolves %s.%s", rootType, fieldName)}
		}

		// Mutation root fields never share a group, so each keeps its own
		// place in the source order.
		group, ok := rootGroups[owner.Name]
		if !ok || ctx.IsMutation() {
			group = &Group{Service: owner.Name, ParentType: rootType}
			rootGroups[owner.Name] = group
			order = append(order, group)
			b.all = append(b.all, group)
		}

		ref, include, err := b.descend(entry, owner.Name, group, &group.Selections, []string{}, false)
		if err != nil {
			return nil, err
		}
		if include {
			group.Selections = append(group.Selections, ref)
		}
	}

	if ctx.IsMutation() {
		// Mutation root fields execute strictly left to right; each group
		// depends on every group built before it (spec.md §4.5).
		for i := 1; i < len(order); i++ {
			order[i].Dependencies = append(order[i].Dependencies, order[i-1])
		}
	}

	return b.all, nil
}

// PlanError reports a structural failure discovered while building
// groups: an operation field with no resolving subgraph, or a field
// whose declared type cannot be found in the composed schema.
type PlanError struct {
	Reason string
}

func (e *PlanError) Error() string { return "query plan: " + e.Reason }

type builder struct {
	ctx          *planctx.Context
	entityGroups map[string]*Group // stepKey -> group, merges repeated boundary fields under one parent
	all          []*Group          // every group created, root and entity, in creation order
}

// descend builds the astref.Field for entry.Field as selected within
// group's service, recursing into children. Crossing a service boundary
// spins off (or reuses) a dependent entity Group rather than including
// the far side's fields inline. selfSiblings is the slice descend is
// appending its own siblings into, used to inject representation key
// fields for the "extension" boundary case (spec.md §4.4 case analysis).
//
// forceLocal suppresses boundary detection entirely: it is set once a
// @provides directive on an ancestor field has already certified this
// subtree resolvable on the current service, so descendants must not
// re-derive a boundary from their own (possibly different) canonical
// owner (spec.md §4.4 "Provides").
func (b *builder) descend(entry visitor.Entry, service federation.ServiceName, group *Group, selfSiblings *[]astref.Selection, path []string, forceLocal bool) (*astref.Field, bool, error) {
	field := entry.Field
	fieldName := field.Name.String()
	parentType := entry.TypeCondition

	fieldType, err := b.ctx.Schema.FieldType(parentType, fieldName)
	if err != nil {
		return nil, false, &PlanError{Reason: err.Error()}
	}

	ref := &astref.Field{
		Name:      fieldName,
		Arguments: convertArguments(field.Arguments),
		TypeName:  fieldType,
	}
	if field.Alias != nil && field.Alias.String() != "" {
		ref.Alias = field.Alias.String()
	}

	fieldPath := append(append([]string{}, path...), ref.ResponseKey())

	boundary := false
	var targetOwner *federation.SubGraph
	if !forceLocal {
		fieldOwner := b.ctx.Schema.Owner(parentType, fieldName)
		entityOwner := b.ctx.Schema.EntityOwner(fieldType)

		targetOwner = fieldOwner
		if fieldOwner == nil || fieldOwner.Name != service {
			boundary = fieldOwner != nil
		}
		if !boundary && entityOwner != nil && entityOwner.Name != service {
			if fieldOwner != nil && providesField(fieldOwner, parentType, fieldName, field.SelectionSet) {
				// The current service declares @provides(fields: ...) on
				// this field covering its requested sub-selection: resolve
				// it (and everything under it) inline instead of spinning
				// off a dependent fetch against entityOwner.
				forceLocal = true
			} else {
				boundary = true
				targetOwner = entityOwner
			}
		}
	}

	if !boundary && len(field.SelectionSet) == 0 {
		return ref, true, nil
	}

	if !boundary {
		children, err := visitor.Collect(b.ctx.Fragments, field.SelectionSet, fieldType)
		if err != nil {
			return nil, false, err
		}
		subs, err := b.collectChildren(children, service, group, fieldType, fieldPath, forceLocal, true)
		if err != nil {
			return nil, false, err
		}
		ref.SubSelections = subs
		return ref, true, nil
	}

	// Boundary field: determine whether we're extending parentType itself
	// (targetOwner declares parentType as an entity extension) or
	// referencing a distinct entity returned by this field.
	extension := false
	if e, ok := targetOwner.Entity(parentType); ok && e.IsExtension {
		extension = true
	}

	entityType := fieldType
	if extension {
		entityType = parentType
	}

	stepKey := fmt.Sprintf("%s:%s:%p:%s", targetOwner.Name, entityType, group, strings.Join(path, "."))
	child, exists := b.entityGroups[stepKey]
	if !exists {
		child = &Group{
			Service:        targetOwner.Name,
			ParentType:     entityType,
			IsEntity:       true,
			Representation: b.representation(entityType, targetOwner),
			Dependencies:   []*Group{group},
		}
		if extension {
			child.MergeAt = path
		} else {
			child.MergeAt = fieldPath
		}
		b.entityGroups[stepKey] = child
		b.all = append(b.all, child)
	}

	if extension {
		// The boundary field belongs entirely to the target service; this
		// group only needs the parent entity's own key fields (plus
		// whatever this field's own @requires(R) demands) as siblings so a
		// representation can be built (spec.md §4.4 step 2a).
		required := fieldRequires(targetOwner, entityType, fieldName)
		mergeNamedFields(&child.Representation, required)
		b.injectRepresentation(selfSiblings, entityType, targetOwner)
		mergeNamedFields(selfSiblings, required)

		nested, err := visitor.Collect(b.ctx.Fragments, field.SelectionSet, fieldType)
		if err != nil {
			return nil, false, err
		}
		childField, err := b.descendAll(nested, targetOwner.Name, child, fieldType, fieldName, field)
		if err != nil {
			return nil, false, err
		}
		child.Selections = append(child.Selections, childField)
		return nil, false, nil
	}

	// Reference case: this group keeps the boundary field but projects
	// only its key fields as children, so the result carries a
	// representation for the dependent group.
	for _, sel := range b.representation(entityType, targetOwner) {
		ref.SubSelections = append(ref.SubSelections, sel)
	}
	nested, err := visitor.Collect(b.ctx.Fragments, field.SelectionSet, fieldType)
	if err != nil {
		return nil, false, err
	}
	childSubs, err := b.collectChildren(nested, targetOwner.Name, child, fieldType, nil, false, false)
	if err != nil {
		return nil, false, err
	}
	child.Selections = append(child.Selections, childSubs...)

	return ref, true, nil
}

// collectChildren descends every entry in children and returns the
// resulting selections, wrapping any entry whose concrete type condition
// differs from fieldType in a synthesized inline fragment so that fields
// selected under "... on ConcreteType" against an interface/union parent
// stay dispatched per concrete type instead of flattening into bare
// fields (spec.md §4.4 "Abstract parent", §6 SelectionSetJSON's
// InlineFragment arm). Entries sharing fieldType itself (no narrowing
// fragment, or a field declared directly on the interface) are kept bare.
func (b *builder) collectChildren(children []visitor.Entry, service federation.ServiceName, group *Group, fieldType string, path []string, forceLocal, includeTypename bool) ([]astref.Selection, error) {
	var bare []astref.Selection
	var order []string
	byType := map[string][]astref.Selection{}

	for _, child := range children {
		if child.Field.Name.String() == "__typename" {
			if includeTypename {
				bare = append(bare, astref.NewField("__typename"))
			}
			continue
		}

		childRef, include, err := b.descend(child, service, group, &bare, path, forceLocal)
		if err != nil {
			return nil, err
		}
		if !include {
			continue
		}

		if child.TypeCondition == "" || child.TypeCondition == fieldType {
			bare = append(bare, childRef)
			continue
		}
		if _, ok := byType[child.TypeCondition]; !ok {
			order = append(order, child.TypeCondition)
		}
		byType[child.TypeCondition] = append(byType[child.TypeCondition], childRef)
	}

	out := append([]astref.Selection{}, bare...)
	for _, tc := range order {
		out = append(out, &astref.InlineFragment{TypeCondition: tc, SubSelections: byType[tc]})
	}
	return out, nil
}

// descendAll folds an entity extension's own boundary field back into
// its target group: the field named fieldName is rebuilt directly under
// the entity type, since from the target service's point of view it is
// just another field of the entity it owns.
func (b *builder) descendAll(nested []visitor.Entry, service federation.ServiceName, group *Group, fieldType, fieldName string, original *ast.Field) (*astref.Field, error) {
	ref := &astref.Field{Name: fieldName, Arguments: convertArguments(original.Arguments), TypeName: fieldType}
	if original.Alias != nil && original.Alias.String() != "" {
		ref.Alias = original.Alias.String()
	}
	subs, err := b.collectChildren(nested, service, group, fieldType, nil, false, true)
	if err != nil {
		return nil, err
	}
	ref.SubSelections = subs
	return ref, nil
}

// representation returns the key-field projection (__typename plus the
// fields of the entity's first key) used both as an entity group's outgoing representation shape and as the
// minimal selection a dependent-on group must keep for the entity it no
// longer owns (spec.md §3 "KeySet"). @requires fields demanded by a
// specific selected field are merged in separately by descend, once the
// field that requires them is actually visited.
func (b *builder) representation(entityType string, owner *federation.SubGraph) []astref.Selection {
	entity, ok := owner.Entity(entityType)
	var fieldNames []string
	if !ok || len(entity.Keys) == 0 {
		fieldNames = []string{"__typename"}
	} else {
		fieldNames = append([]string{"__typename"}, strings.Fields(entity.Keys[0].FieldSet)...)
	}

	seen := make(map[string]bool, len(fieldNames))
	out := make([]astref.Selection, 0, len(fieldNames))
	for _, name := range fieldNames {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, astref.NewField(name))
	}
	return out
}

// injectRepresentation appends the key-field projection for entityType
// as siblings in selections if not already present.
func (b *builder) injectRepresentation(selections *[]astref.Selection, entityType string, owner *federation.SubGraph) {
	var names []string
	for _, sel := range b.representation(entityType, owner) {
		if f, ok := sel.(*astref.Field); ok {
			names = append(names, f.Name)
		}
	}
	mergeNamedFields(selections, names)
}

// fieldRequires returns the @requires(fields: "...") field-set declared
// on (typeName, fieldName) within owner's schema, or nil if none.
func fieldRequires(owner *federation.SubGraph, typeName, fieldName string) []string {
	entity, ok := owner.Entity(typeName)
	if !ok {
		return nil
	}
	meta, ok := entity.Fields[fieldName]
	if !ok {
		return nil
	}
	return meta.Requires
}

// providesField reports whether owner declares @provides(fields: "...")
// on (typeName, fieldName) naming every field selected directly in
// selections (__typename aside). A selection holding a fragment is not
// treated as covered.
func providesField(owner *federation.SubGraph, typeName, fieldName string, selections []ast.Selection) bool {
	entity, ok := owner.Entity(typeName)
	if !ok {
		return false
	}
	meta, ok := entity.Fields[fieldName]
	if !ok || len(meta.Provides) == 0 {
		return false
	}
	provided := make(map[string]bool, len(meta.Provides))
	for _, name := range meta.Provides {
		provided[name] = true
	}
	for _, sel := range selections {
		f, ok := sel.(*ast.Field)
		if !ok {
			return false
		}
		if name := f.Name.String(); name != "__typename" && !provided[name] {
			return false
		}
	}
	return true
}

// mergeNamedFields appends a synthesized leaf field for each name not
// already present (by field name) in *selections.
func mergeNamedFields(selections *[]astref.Selection, names []string) {
	if len(names) == 0 {
		return
	}
	existing := make(map[string]bool, len(*selections))
	for _, s := range *selections {
		if f, ok := s.(*astref.Field); ok {
			existing[f.Name] = true
		}
	}
	for _, name := range names {
		if existing[name] {
			continue
		}
		*selections = append(*selections, astref.NewField(name))
		existing[name] = true
	}
}

func convertArguments(args []*ast.Argument) []astref.Argument {
	if len(args) == 0 {
		return nil
	}
	out := make([]astref.Argument, len(args))
	for i, a := range args {
		out[i] = astref.Argument{Name: a.Name.String(), Value: a.Value}
	}
	return out
}
