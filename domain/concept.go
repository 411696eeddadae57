package domain

// ConceptInput is one input of an analysis concept: the source variable,
// its statistical role, and whether the concept requires it.
type ConceptInput struct {
	InputID  string `json:"inputId" yaml:"input_id" validate:"required"`
	Variable string `json:"variable" yaml:"variable" validate:"required"`
	Role     string `json:"role" yaml:"role" validate:"required"`
	Required bool   `json:"required" yaml:"required"`
	DataType string `json:"dataType" yaml:"data_type" validate:"omitempty,oneof=Numeric Character Date Integer Boolean"`
}

// ConceptOutput is one output variable an analysis concept produces.
type ConceptOutput struct {
	OutputID string `json:"outputId" yaml:"output_id" validate:"required"`
	Variable string `json:"variable" yaml:"variable" validate:"required"`
	DataType string `json:"dataType" yaml:"data_type" validate:"omitempty,oneof=Numeric Character Date Integer Boolean"`
}

// AnalysisConcept is the full metadata record for one analysis concept,
// browsable through the API. The engine itself only consumes the derived
// FormulaSpec / AnalysisSpec forms.
type AnalysisConcept struct {
	ID         string          `json:"id" yaml:"id" validate:"required"`
	Name       string          `json:"name" yaml:"name" validate:"required,max=200"`
	Purpose    string          `json:"purpose" yaml:"purpose" validate:"required"`
	Inputs     []ConceptInput  `json:"inputs" yaml:"inputs" validate:"dive"`
	Outputs    []ConceptOutput `json:"outputs" yaml:"outputs" validate:"dive"`
	Population string          `json:"population" yaml:"population"`
	Grouping   []string        `json:"grouping" yaml:"grouping"`
	Status     string          `json:"status" yaml:"status" validate:"omitempty,oneof=Draft 'In Progress' Complete Deprecated"`
}
