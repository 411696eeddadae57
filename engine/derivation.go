package engine

import (
	"context"
	"fmt"

	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/domain"
	"github.com/cdisc-org/analysis-concepts-sub000/formula"
	"github.com/cdisc-org/analysis-concepts-sub000/resolver"
	"github.com/cdisc-org/analysis-concepts-sub000/slice"
)

// ExecuteDerivation resolves the formula and slice, computes the output
// for matched rows, and returns a new dataset with one added column.
// Unmatched rows get an explicitly missing cell, never a computed or
// default value. Zero matched rows is not an error: the result is an
// all-missing column. Nothing is written on any failure.
func (e *Engine) ExecuteDerivation(ctx context.Context, spec domain.FormulaSpec, sl domain.Slice, ds *dataset.Dataset, chain *resolver.Chain) (*dataset.Dataset, error) {
	outputName, err := chain.ResolveIn(spec.OutputName, fmt.Sprintf("derivation %q output", spec.ID))
	if err != nil {
		return nil, err
	}
	if ds.HasColumn(outputName) {
		return nil, domain.ErrSpecification("derivation %q: output column %q already exists in dataset %q", spec.ID, outputName, ds.Name())
	}

	parsed, err := formula.Parse(spec.Expression)
	if err != nil {
		return nil, err
	}
	resolved, err := parsed.Resolve(chain)
	if err != nil {
		return nil, err
	}

	// Every referenced column must exist before any row is touched.
	inputs := resolved.Identifiers()
	for _, col := range inputs {
		if !ds.HasColumn(col) {
			return nil, domain.ErrSchemaMismatch(col, ds.Name())
		}
	}

	pred, err := slice.Build(sl, chain, ds)
	if err != nil {
		return nil, err
	}
	matched, err := slice.Matched(pred, ds)
	if err != nil {
		return nil, err
	}

	cells := make([]interface{}, ds.Rows())
	for _, row := range matched {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env := make(map[string]interface{}, len(inputs))
		for _, col := range inputs {
			env[col] = ds.Value(row, col)
		}
		v, err := resolved.Eval(env)
		if err != nil {
			return nil, fmt.Errorf("derivation %q row %d: %w", spec.ID, row, err)
		}
		cells[row] = v
	}

	col, err := dataset.NewColumn(outputName, outputType(cells), widen(cells))
	if err != nil {
		return nil, fmt.Errorf("derivation %q: %w", spec.ID, err)
	}
	out, err := ds.WithColumn(col)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("derivation executed",
		"derivation", spec.ID,
		"output", outputName,
		"formula", resolved.String(),
		"matched", len(matched),
		"rows", ds.Rows())
	return out, nil
}

// outputType infers the output column type from the computed cells.
// A single float anywhere makes the column Float; all-missing columns
// default to Float, since derivations are numeric.
func outputType(cells []interface{}) dataset.ColumnType {
	typ := dataset.Float
	allInt := true
	for _, c := range cells {
		switch c.(type) {
		case nil:
		case int64:
		case float64:
			return dataset.Float
		case string:
			return dataset.String
		case bool:
			return dataset.Bool
		default:
			allInt = false
		}
	}
	if allInt {
		hasAny := false
		for _, c := range cells {
			if c != nil {
				hasAny = true
				break
			}
		}
		if hasAny {
			return dataset.Integer
		}
	}
	return typ
}

// widen promotes int64 cells to float64 when the column type is Float so
// mixed int/float results stay in one typed column.
func widen(cells []interface{}) []interface{} {
	if outputType(cells) != dataset.Float {
		return cells
	}
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		if n, ok := c.(int64); ok {
			out[i] = float64(n)
		} else {
			out[i] = c
		}
	}
	return out
}
