package federation

// InvalidSchemaError is returned when composed or subgraph schema text is
// malformed, or is missing federation metadata the planner requires
// (spec.md §4.1 "Errors", §7 "Schema validation").
type InvalidSchemaError struct {
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	return "invalid schema: " + e.Reason
}
