package domain

// Attribute is a constant qualifying metadata entry on an OutputCube,
// typically one slice constraint carried through for traceability.
type Attribute struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// CubeRow holds one point of an OutputCube: coordinates along the named
// dimensions and one value per named measure.
type CubeRow struct {
	Dims     map[string]string  `json:"dims"`
	Measures map[string]float64 `json:"measures"`
}

// OutputCube is the dimensional result of one analysis output group:
// named dimensions for grouping keys, named measures for computed values,
// and named attributes for constant qualifying metadata. A cube is created
// fresh per execution and never mutated afterwards; ownership passes to
// the caller.
type OutputCube struct {
	Name        string      `json:"name"`
	ExecutionID string      `json:"executionId"`
	Dimensions  []string    `json:"dimensions"`
	Measures    []string    `json:"measures"`
	Attributes  []Attribute `json:"attributes"`
	Rows        []CubeRow   `json:"rows"`
}

// FitGroup is one logical output group produced by a model fitter, e.g.
// per-treatment estimates or pairwise comparisons. The engine maps each
// group to one OutputCube.
type FitGroup struct {
	Name       string
	Dimensions []string
	Measures   []string
	Rows       []CubeRow
}

// FitResult is the raw outcome of an external model fit, before the
// engine packages it into OutputCubes.
type FitResult struct {
	Groups []FitGroup
}
