package federation

import (
	"fmt"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/token"
)

// SuperGraph is the composed schema plus the per-field ownership index
// built from every subgraph's federation directives (spec.md §3
// "FieldOwner", "KeySet").
type SuperGraph struct {
	SubGraphs []*SubGraph
	Schema    *ast.Document
	ownership map[string][]*SubGraph // "Type.field" -> owning subgraphs, @override-aware
}

// NewSuperGraph composes N subgraph schemas into one and builds the field
// ownership index. Subgraphs missing all federation metadata for an
// object type simply contribute no entities; a composed schema with no
// resolvable owner for a referenced field is a plan-time error, not a
// build-time one (ownership is total only once an operation names the
// field - spec.md §4.1 "Contract").
func NewSuperGraph(subGraphs []*SubGraph) (*SuperGraph, error) {
	if len(subGraphs) == 0 {
		return nil, &InvalidSchemaError{Reason: "no subgraphs supplied"}
	}

	sg := &SuperGraph{
		SubGraphs: subGraphs,
		Schema:    &ast.Document{Definitions: make([]ast.Definition, 0)},
		ownership: make(map[string][]*SubGraph),
	}

	for _, s := range subGraphs {
		sg.mergeSchema(s.Schema)
	}
	sg.buildOwnership()

	return sg, nil
}

func (sg *SuperGraph) mergeSchema(doc *ast.Document) {
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			sg.mergeObjectType(d.Name.String(), d.Fields, d.Directives, d.Interfaces)
		case *ast.ObjectTypeExtension:
			sg.mergeObjectType(d.Name.String(), d.Fields, d.Directives, nil)
		case *ast.InterfaceTypeDefinition:
			sg.mergeInterfaceType(d)
		case *ast.InputObjectTypeDefinition:
			sg.mergeInputType(d)
		case *ast.EnumTypeDefinition:
			sg.mergeEnumType(d)
		case *ast.ScalarTypeDefinition:
			sg.mergeScalarType(d)
		case *ast.UnionTypeDefinition:
			sg.mergeUnionType(d)
		case *ast.DirectiveDefinition:
			sg.mergeDirectiveDef(d)
		case *ast.SchemaDefinition:
			sg.Schema.Definitions = append(sg.Schema.Definitions, d)
		}
	}
}

func (sg *SuperGraph) findObjectType(name string) *ast.ObjectTypeDefinition {
	for _, def := range sg.Schema.Definitions {
		if o, ok := def.(*ast.ObjectTypeDefinition); ok && o.Name.String() == name {
			return o
		}
	}
	return nil
}

func (sg *SuperGraph) mergeObjectType(name string, fields []*ast.FieldDefinition, directives []*ast.Directive, interfaces []*ast.NamedType) {
	if existing := sg.findObjectType(name); existing != nil {
		existing.Fields = mergeFieldDefs(existing.Fields, fields)
		existing.Directives = append(existing.Directives, directives...)
		return
	}
	sg.Schema.Definitions = append(sg.Schema.Definitions, &ast.ObjectTypeDefinition{
		Name:       &ast.Name{Value: name},
		Interfaces: interfaces,
		Fields:     append([]*ast.FieldDefinition{}, fields...),
		Directives: append([]*ast.Directive{}, directives...),
	})
}

func mergeFieldDefs(existing, incoming []*ast.FieldDefinition) []*ast.FieldDefinition {
	seen := make(map[string]bool, len(existing))
	for _, f := range existing {
		seen[f.Name.String()] = true
	}
	for _, f := range incoming {
		if !seen[f.Name.String()] {
			existing = append(existing, f)
			seen[f.Name.String()] = true
		}
	}
	return existing
}

func (sg *SuperGraph) mergeInterfaceType(d *ast.InterfaceTypeDefinition) {
	for _, def := range sg.Schema.Definitions {
		if i, ok := def.(*ast.InterfaceTypeDefinition); ok && i.Name.String() == d.Name.String() {
			i.Fields = append(i.Fields, d.Fields...)
			return
		}
	}
	sg.Schema.Definitions = append(sg.Schema.Definitions, d)
}

func (sg *SuperGraph) mergeInputType(d *ast.InputObjectTypeDefinition) {
	for _, def := range sg.Schema.Definitions {
		if i, ok := def.(*ast.InputObjectTypeDefinition); ok && i.Name.String() == d.Name.String() {
			i.Fields = append(i.Fields, d.Fields...)
			return
		}
	}
	sg.Schema.Definitions = append(sg.Schema.Definitions, d)
}

func (sg *SuperGraph) mergeEnumType(d *ast.EnumTypeDefinition) {
	for _, def := range sg.Schema.Definitions {
		if e, ok := def.(*ast.EnumTypeDefinition); ok && e.Name.String() == d.Name.String() {
			e.Values = append(e.Values, d.Values...)
			return
		}
	}
	sg.Schema.Definitions = append(sg.Schema.Definitions, d)
}

func (sg *SuperGraph) mergeScalarType(d *ast.ScalarTypeDefinition) {
	for _, def := range sg.Schema.Definitions {
		if s, ok := def.(*ast.ScalarTypeDefinition); ok && s.Name.String() == d.Name.String() {
			return
		}
	}
	sg.Schema.Definitions = append(sg.Schema.Definitions, d)
}

func (sg *SuperGraph) mergeUnionType(d *ast.UnionTypeDefinition) {
	for _, def := range sg.Schema.Definitions {
		if u, ok := def.(*ast.UnionTypeDefinition); ok && u.Name.String() == d.Name.String() {
			u.Types = append(u.Types, d.Types...)
			return
		}
	}
	sg.Schema.Definitions = append(sg.Schema.Definitions, d)
}

func (sg *SuperGraph) mergeDirectiveDef(d *ast.DirectiveDefinition) {
	for _, def := range sg.Schema.Definitions {
		if existing, ok := def.(*ast.DirectiveDefinition); ok && existing.Name.String() == d.Name.String() {
			return
		}
	}
	sg.Schema.Definitions = append(sg.Schema.Definitions, d)
}

// buildOwnership walks the composed schema's object types and, for each
// field, records every subgraph able to resolve it (honoring @external
// and @override so a field overridden away from its old owner isn't
// double-counted).
func (sg *SuperGraph) buildOwnership() {
	for _, def := range sg.Schema.Definitions {
		obj, ok := def.(*ast.ObjectTypeDefinition)
		if !ok {
			continue
		}
		typeName := obj.Name.String()

		for _, field := range obj.Fields {
			fieldName := field.Name.String()
			key := typeName + "." + fieldName

			overrideFrom, overrideOwner := sg.findOverride(typeName, fieldName)

			for _, s := range sg.SubGraphs {
				if overrideFrom != "" && string(s.Name) == overrideFrom {
					continue
				}
				if sg.canResolve(s, typeName, fieldName) {
					sg.ownership[key] = append(sg.ownership[key], s)
				}
			}

			if overrideOwner != nil && !containsSubGraph(sg.ownership[key], overrideOwner) {
				sg.ownership[key] = append(sg.ownership[key], overrideOwner)
			}
		}
	}
}

func containsSubGraph(list []*SubGraph, s *SubGraph) bool {
	for _, x := range list {
		if x.Name == s.Name {
			return true
		}
	}
	return false
}

func (sg *SuperGraph) findOverride(typeName, fieldName string) (string, *SubGraph) {
	for _, s := range sg.SubGraphs {
		entity, ok := s.Entity(typeName)
		if !ok {
			continue
		}
		f, ok := entity.Fields[fieldName]
		if !ok || f.OverrideSvc == "" {
			continue
		}
		return f.OverrideSvc, s
	}
	return "", nil
}

func (sg *SuperGraph) canResolve(s *SubGraph, typeName, fieldName string) bool {
	check := func(fields []*ast.FieldDefinition) (bool, bool) {
		for _, f := range fields {
			if f.Name.String() == fieldName {
				return !hasDirective(f.Directives, "external"), true
			}
		}
		return false, false
	}

	for _, def := range s.Schema.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if d.Name.String() == typeName {
				ok, found := check(d.Fields)
				if found {
					return ok
				}
				return false
			}
		case *ast.ObjectTypeExtension:
			if d.Name.String() == typeName {
				ok, found := check(d.Fields)
				if found {
					return ok
				}
				return false
			}
		}
	}
	return false
}

func hasDirective(directives []*ast.Directive, name string) bool {
	for _, d := range directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Owners returns every subgraph able to resolve (typeName, fieldName),
// in the order the subgraphs were passed to NewSuperGraph.
func (sg *SuperGraph) Owners(typeName, fieldName string) []*SubGraph {
	return sg.ownership[typeName+"."+fieldName]
}

// Owner returns the first (canonical) subgraph able to resolve the field.
func (sg *SuperGraph) Owner(typeName, fieldName string) *SubGraph {
	owners := sg.Owners(typeName, fieldName)
	if len(owners) == 0 {
		return nil
	}
	return owners[0]
}

// EntityOwner returns the subgraph that defines (not merely extends)
// typeName as a resolvable entity, falling back to any resolvable
// extension if no base definition is resolvable.
func (sg *SuperGraph) EntityOwner(typeName string) *SubGraph {
	for _, s := range sg.SubGraphs {
		if e, ok := s.Entity(typeName); ok && !e.IsExtension && e.IsResolvable() {
			return s
		}
	}
	for _, s := range sg.SubGraphs {
		if e, ok := s.Entity(typeName); ok && e.IsResolvable() {
			return s
		}
	}
	return nil
}

// IsEntityType reports whether any subgraph declares typeName with a
// resolvable @key.
func (sg *SuperGraph) IsEntityType(typeName string) bool {
	return sg.EntityOwner(typeName) != nil
}

// FieldType returns the named return type of (parentType, fieldName),
// resolving through List/NonNull wrappers.
func (sg *SuperGraph) FieldType(parentType, fieldName string) (string, error) {
	if fieldName == "__typename" {
		return "String", nil
	}
	for _, def := range sg.Schema.Definitions {
		obj, ok := def.(*ast.ObjectTypeDefinition)
		if !ok || obj.Name.String() != parentType {
			continue
		}
		for _, f := range obj.Fields {
			if f.Name.String() == fieldName {
				return namedType(f.Type), nil
			}
		}
	}
	return "", fmt.Errorf("field %s not found on type %s", fieldName, parentType)
}

func namedType(t ast.Type) string {
	switch v := t.(type) {
	case *ast.NamedType:
		return v.Name.String()
	case *ast.ListType:
		return namedType(v.Type)
	case *ast.NonNullType:
		return namedType(v.Type)
	default:
		return ""
	}
}

// RootTypeName returns the object type name bound to an operation kind
// (query/mutation/subscription), honoring an explicit `schema { ... }`
// block if the composed schema declares one.
func (sg *SuperGraph) RootTypeName(operation ast.OperationType) string {
	var fallback string
	switch operation {
	case ast.Query:
		fallback = "Query"
	case ast.Mutation:
		fallback = "Mutation"
	case ast.Subscription:
		fallback = "Subscription"
	}

	for _, def := range sg.Schema.Definitions {
		sd, ok := def.(*ast.SchemaDefinition)
		if !ok {
			continue
		}
		for _, ot := range sd.OperationTypes {
			if operationTokenMatches(ot, operation) {
				return ot.Type.Name.String()
			}
		}
	}

	return fallback
}

func operationTokenMatches(ot *ast.OperationTypeDefinition, operation ast.OperationType) bool {
	switch operation {
	case ast.Query:
		return ot.Operation == token.QUERY
	case ast.Mutation:
		return ot.Operation == token.MUTATION
	case ast.Subscription:
		return ot.Operation == token.SUBSCRIPTION
	}
	return false
}
