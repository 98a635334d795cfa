package jsonx

import "fmt"

// SchemaError reports that decoded generator output violated the expected
// shape. It names the offending field so failures are diagnosable without
// dumping the raw payload.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("jsonx: schema violation at %q: %s", e.Field, e.Reason)
}

// Schemaf builds a SchemaError with a formatted reason.
func Schemaf(field, format string, args ...any) *SchemaError {
	return &SchemaError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
