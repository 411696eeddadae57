package domain

import "fmt"

// UnresolvedSymbolError indicates a name with no binding in any applicable
// mapping layer. Always fatal to the current resolution.
type UnresolvedSymbolError struct {
	Token   string // the name that failed to resolve
	Layer   string // last layer consulted, or "" when no layer applied
	Context string // formula or slice the token came from
}

func (e *UnresolvedSymbolError) Error() string {
	msg := fmt.Sprintf("unresolved symbol %q", e.Token)
	if e.Layer != "" {
		msg += fmt.Sprintf(" (last layer: %s)", e.Layer)
	}
	if e.Context != "" {
		msg += fmt.Sprintf(" in %s", e.Context)
	}
	return msg
}

// SchemaMismatchError indicates a fully resolved name that is not present
// in the actual dataset schema.
type SchemaMismatchError struct {
	Column  string
	Dataset string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("resolved column %q not present in dataset %q", e.Column, e.Dataset)
}

// EmptyAnalysisSetError indicates an analysis slice that matched zero rows.
// A model fit over no data is not meaningful, so this is fatal for analyses.
// Derivations over zero matched rows are not an error.
type EmptyAnalysisSetError struct {
	AnalysisID string
	Dataset    string
}

func (e *EmptyAnalysisSetError) Error() string {
	return fmt.Sprintf("analysis %q: slice matched zero rows in dataset %q", e.AnalysisID, e.Dataset)
}

// SpecificationError indicates a malformed or incomplete formula or role
// specification (e.g., no dependent variable for a model-based analysis).
type SpecificationError struct {
	Message string
}

func (e *SpecificationError) Error() string { return e.Message }

// NotFoundError indicates a metadata record was not found in the catalog.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError indicates a write that collides with an existing record,
// such as a second class binding for the same symbol and dataset.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ValidationError indicates invalid input at the API boundary.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrUnresolved creates an UnresolvedSymbolError for the given token.
func ErrUnresolved(token, layer, context string) *UnresolvedSymbolError {
	return &UnresolvedSymbolError{Token: token, Layer: layer, Context: context}
}

// ErrSchemaMismatch creates a SchemaMismatchError.
func ErrSchemaMismatch(column, dataset string) *SchemaMismatchError {
	return &SchemaMismatchError{Column: column, Dataset: dataset}
}

// ErrEmptyAnalysisSet creates an EmptyAnalysisSetError.
func ErrEmptyAnalysisSet(analysisID, dataset string) *EmptyAnalysisSetError {
	return &EmptyAnalysisSetError{AnalysisID: analysisID, Dataset: dataset}
}

// ErrSpecification creates a SpecificationError with a formatted message.
func ErrSpecification(format string, args ...interface{}) *SpecificationError {
	return &SpecificationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
