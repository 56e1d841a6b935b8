// Package format is a deterministic pretty-printer shared by every
// component that needs to turn a selection tree into subgraph operation
// text (spec.md §4.8). It is the sole producer of stringly-typed planner
// output.
package format

import "strings"

// Displayable is implemented by anything the formatter can render:
// original AST nodes, synthesized fields, and the astref reference
// variants all share this one contract (spec.md §4.7).
type Displayable interface {
	Display(f *Formatter)
}

// Formatter accumulates pretty-printed GraphQL text with consistent
// indentation and space-before-block, mirroring the original
// graphql-parser crate's query formatter (margin/indent/start_block/
// end_block/endline).
//
// In compact mode (NewCompact) the same calls instead accumulate the
// minified, single-line text subgraph fetches are sent as on the wire
// (spec.md §6, confirmed against the query-planner-wasm reference's
// "{me{name}}"-style operation text): no indentation, no space before a
// block, and exactly one space between sibling selections. Indent,
// StartBlock, Write, and WriteQuoted all flush a pending separator
// before writing, so callers need no compact-specific branching beyond
// the few places spec.md's examples show a token genuinely dropped
// (the leading "query " keyword, the space before "{").
type Formatter struct {
	buf     strings.Builder
	depth   int
	indent  string
	compact bool
	pendSep bool
}

// New creates a Formatter using tabs for indentation, matching the
// subgraph operation text the teacher's query builder emits.
func New() *Formatter {
	return &Formatter{indent: "\t"}
}

// NewCompact creates a Formatter that renders minified, keyword-terse
// operation text, matching the query planner's stable wire format for
// Fetch.operation (spec.md §6).
func NewCompact() *Formatter {
	return &Formatter{compact: true}
}

// Compact reports whether f renders minified text, letting callers that
// build their own literal punctuation (astref's Field/InlineFragment
// Display methods) skip tokens compact mode never emits.
func (f *Formatter) Compact() bool {
	return f.compact
}

func (f *Formatter) flushSep() {
	if f.compact && f.pendSep {
		f.buf.WriteByte(' ')
		f.pendSep = false
	}
}

// Write appends raw text with no indentation or newline handling.
func (f *Formatter) Write(s string) {
	f.flushSep()
	f.buf.WriteString(s)
}

// WriteQuoted appends a double-quoted string literal.
func (f *Formatter) WriteQuoted(s string) {
	f.flushSep()
	f.buf.WriteByte('"')
	f.buf.WriteString(s)
	f.buf.WriteByte('"')
}

// Indent writes the current depth's leading whitespace, or in compact
// mode flushes a single pending inter-sibling separator instead.
func (f *Formatter) Indent() {
	if f.compact {
		f.flushSep()
		return
	}
	for i := 0; i < f.depth; i++ {
		f.buf.WriteString(f.indent)
	}
}

// StartBlock opens a "{ ... }" block and increases the indent depth.
func (f *Formatter) StartBlock() {
	f.flushSep()
	if f.compact {
		f.buf.WriteString("{")
		f.depth++
		return
	}
	f.buf.WriteString("{\n")
	f.depth++
}

// EndBlock closes a block, restoring the previous indent depth.
func (f *Formatter) EndBlock() {
	f.depth--
	if f.compact {
		f.buf.WriteString("}")
		f.pendSep = true
		return
	}
	f.Indent()
	f.buf.WriteString("}\n")
}

// Endline terminates a leaf line (a field with no sub-selection); in
// compact mode it instead marks a separator due before the next sibling.
func (f *Formatter) Endline() {
	if f.compact {
		f.pendSep = true
		return
	}
	f.buf.WriteString("\n")
}

// String returns the accumulated text with any trailing newline trimmed,
// matching spec.md §6 "no trailing whitespace".
func (f *Formatter) String() string {
	return strings.TrimRight(f.buf.String(), "\n")
}

// Arguments writes a `(name: value, ...)` argument list using name/value
// pairs already rendered to strings by the caller. Compact mode drops the
// space after each comma and colon.
func Arguments(f *Formatter, names []string, values []string) {
	if len(names) == 0 {
		return
	}
	sep, colon := ", ", ": "
	if f.Compact() {
		sep, colon = ",", ":"
	}
	f.Write("(")
	for i := range names {
		if i > 0 {
			f.Write(sep)
		}
		f.Write(names[i])
		f.Write(colon)
		f.Write(values[i])
	}
	f.Write(")")
}
