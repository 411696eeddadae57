// Package domain defines core types, interfaces, and errors for the
// analysis-concepts resolution and execution engine.
package domain

// ConceptBinding maps a study-independent semantic name (a data concept,
// e.g. "change_value") to a standard class-level symbol (e.g. "CHG").
// Several semantic names may map to the same class symbol across tables,
// but within one resolution chain each semantic name resolves to exactly
// one class symbol.
type ConceptBinding struct {
	SemanticName string `yaml:"concept" json:"concept" validate:"required"`
	ClassSymbol  string `yaml:"class_symbol" json:"classSymbol" validate:"required"`
}

// ClassBinding associates a class-level symbol with a concrete column in a
// concrete study dataset. One class symbol may bind to different study
// variables in different datasets, but never to two variables within the
// same dataset.
type ClassBinding struct {
	ClassSymbol   string `yaml:"class_symbol" json:"classSymbol" validate:"required"`
	Dataset       string `yaml:"dataset" json:"dataset" validate:"required"`
	StudyVariable string `yaml:"study_variable" json:"studyVariable" validate:"required"`
}

// SliceConstraint fixes one attribute to one value. Attribute names are
// semantic or class names and are resolved through the binding chain
// before evaluation.
type SliceConstraint struct {
	Attribute string      `yaml:"attribute" json:"attribute" validate:"required"`
	Value     interface{} `yaml:"value" json:"value"`
}

// Slice is a set of constraints whose semantics are the AND of
// per-constraint equality tests against resolved columns. A slice with
// zero constraints matches all rows.
type Slice []SliceConstraint

// FormulaSpec declares a derived column. The expression references only
// semantic or class-level names, never raw dataset column names. All
// resolution happens through the binding chain at execution time.
type FormulaSpec struct {
	ID         string `yaml:"id" json:"id"`
	OutputName string `yaml:"output" json:"output" validate:"required"`
	Expression string `yaml:"expression" json:"expression" validate:"required"`
}

// Variable roles for model-based analyses.
const (
	RoleDependent  = "dependent"
	RoleCovariate  = "covariate"
	RoleFactor     = "factor"
	RoleIdentifier = "identifier"
)

// RoleAssignment tags a variable (by semantic or class name) with its
// statistical role in a model specification.
type RoleAssignment struct {
	Variable string `yaml:"variable" json:"variable" validate:"required"`
	Role     string `yaml:"role" json:"role" validate:"required,oneof=dependent covariate factor identifier"`
}

// AnalysisSpec declares a model-based analysis: a set of role-tagged
// variables assembled into a model specification at execution time.
type AnalysisSpec struct {
	ID    string           `yaml:"id" json:"id"`
	Name  string           `yaml:"name" json:"name"`
	Roles []RoleAssignment `yaml:"roles" json:"roles" validate:"required,dive"`
}

// ModelSpec is a fully resolved model specification handed to a
// ModelFitter. All variable names are concrete dataset columns.
type ModelSpec struct {
	Dependent   string
	Covariates  []string
	Factors     []string
	Identifiers []string
}

// Formula renders the model specification in the conventional
// "dependent ~ term + term" notation, for logging and fitter consumption.
func (m ModelSpec) Formula() string {
	rhs := ""
	for _, t := range append(append([]string{}, m.Factors...), m.Covariates...) {
		if rhs != "" {
			rhs += " + "
		}
		rhs += t
	}
	if rhs == "" {
		rhs = "1"
	}
	return m.Dependent + " ~ " + rhs
}
