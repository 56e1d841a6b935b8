// Package federation extracts federation metadata (ownership, keys,
// requires/provides) from subgraph and composed-schema SDL documents.
package federation

import (
	"fmt"
	"strings"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// ServiceName identifies a backing subgraph service.
type ServiceName string

// Key is a selection set, expressed as a field-set string, that uniquely
// identifies an entity instance within one service.
type Key struct {
	FieldSet   string
	Resolvable bool
}

// FieldMeta carries the @requires/@provides/@shareable/@external metadata
// attached to one field of an entity type.
type FieldMeta struct {
	Name        string
	Type        ast.Type
	Requires    []string
	Provides    []string
	Shareable   bool
	External    bool
	OverrideSvc string // set when @override(from: "...") names this field's previous owner
}

// Entity is an object type declared with @key in some subgraph.
type Entity struct {
	Keys        []Key
	IsExtension bool
	Fields      map[string]*FieldMeta
}

// IsResolvable reports whether at least one declared key can be used to
// fetch the entity (i.e. is not marked resolvable: false).
func (e *Entity) IsResolvable() bool {
	for _, k := range e.Keys {
		if k.Resolvable {
			return true
		}
	}
	return false
}

// SubGraph is one backing service's parsed schema plus its extracted
// entity/key/requires/provides metadata.
type SubGraph struct {
	Name     ServiceName
	Host     string
	Schema   *ast.Document
	entities map[string]*Entity
}

// NewSubGraph parses a subgraph's SDL and extracts its entity metadata.
func NewSubGraph(name ServiceName, sdl []byte, host string) (*SubGraph, error) {
	l := lexer.New(string(sdl))
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		return nil, &InvalidSchemaError{Reason: fmt.Sprintf("%s: parse error: %v", name, p.Errors())}
	}

	sg := &SubGraph{
		Name:     name,
		Host:     host,
		Schema:   doc,
		entities: make(map[string]*Entity),
	}

	for _, def := range doc.Definitions {
		switch t := def.(type) {
		case *ast.ObjectTypeDefinition:
			if isEntity(t.Directives) {
				sg.entities[t.Name.String()] = buildEntity(t.Directives, t.Fields, false)
			}
		case *ast.ObjectTypeExtension:
			if isEntity(t.Directives) {
				sg.entities[t.Name.String()] = buildEntity(t.Directives, t.Fields, true)
			}
		}
	}

	return sg, nil
}

// Entity returns the entity metadata for typeName, if this subgraph
// declares or extends it with @key.
func (sg *SubGraph) Entity(typeName string) (*Entity, bool) {
	e, ok := sg.entities[typeName]
	return e, ok
}

// Entities returns every entity this subgraph contributes to.
func (sg *SubGraph) Entities() map[string]*Entity {
	return sg.entities
}

func buildEntity(directives []*ast.Directive, fields []*ast.FieldDefinition, isExtension bool) *Entity {
	e := &Entity{
		Keys:        parseKeys(directives),
		IsExtension: isExtension,
		Fields:      make(map[string]*FieldMeta),
	}
	for _, f := range fields {
		e.Fields[f.Name.String()] = parseFieldMeta(f)
	}
	return e
}

func isEntity(directives []*ast.Directive) bool {
	for _, d := range directives {
		if d.Name == "key" {
			return true
		}
	}
	return false
}

func parseKeys(directives []*ast.Directive) []Key {
	var keys []Key
	for _, d := range directives {
		if d.Name != "key" {
			continue
		}
		k := Key{Resolvable: true}
		for _, arg := range d.Arguments {
			switch arg.Name.String() {
			case "fields":
				k.FieldSet = strings.Trim(arg.Value.String(), `"`)
			case "resolvable":
				if arg.Value.String() == "false" {
					k.Resolvable = false
				}
			}
		}
		keys = append(keys, k)
	}
	return keys
}

func parseFieldMeta(field *ast.FieldDefinition) *FieldMeta {
	f := &FieldMeta{
		Name:     field.Name.String(),
		Type:     field.Type,
		Requires: []string{},
		Provides: []string{},
	}

	for _, d := range field.Directives {
		switch d.Name {
		case "requires":
			if len(d.Arguments) > 0 {
				f.Requires = strings.Fields(strings.Trim(d.Arguments[0].Value.String(), `"`))
			}
		case "provides":
			if len(d.Arguments) > 0 {
				f.Provides = strings.Fields(strings.Trim(d.Arguments[0].Value.String(), `"`))
			}
		case "shareable":
			f.Shareable = true
		case "external":
			f.External = true
		case "override":
			for _, arg := range d.Arguments {
				if arg.Name.String() == "from" {
					f.OverrideSvc = strings.Trim(arg.Value.String(), `"`)
				}
			}
		}
	}

	return f
}
