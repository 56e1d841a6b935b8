package planner

import "fmt"

// QueryPlanError is the sum type every Plan() failure is reported as,
// mirroring the original Rust query planner's QueryPlanError enum
// (original_source/query-planner/src/lib.rs): schema parsing, query
// parsing, and "everything else" are kept distinct so callers can tell
// a malformed request apart from a broken deployment.
type QueryPlanError struct {
	Kind   ErrorKind
	Reason string
}

// ErrorKind discriminates QueryPlanError the way the Rust enum's three
// variants do.
type ErrorKind string

const (
	ErrFailedParsingSchema ErrorKind = "FailedParsingSchema"
	ErrFailedParsingQuery  ErrorKind = "FailedParsingQuery"
	ErrInvalidQuery        ErrorKind = "InvalidQuery"
)

func (e *QueryPlanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func schemaError(reason string) *QueryPlanError {
	return &QueryPlanError{Kind: ErrFailedParsingSchema, Reason: reason}
}

func queryError(reason string) *QueryPlanError {
	return &QueryPlanError{Kind: ErrFailedParsingQuery, Reason: reason}
}

func invalidQuery(reason string) *QueryPlanError {
	return &QueryPlanError{Kind: ErrInvalidQuery, Reason: reason}
}
