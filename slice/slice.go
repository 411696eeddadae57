// Package slice builds row-selection predicates from fixed-attribute
// constraints. A slice is the AND of per-constraint equality tests over
// resolved columns; a slice with zero constraints matches every row.
package slice

import (
	"fmt"

	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/domain"
	"github.com/cdisc-org/analysis-concepts-sub000/resolver"
)

// RowPredicate reports whether a dataset row is selected.
type RowPredicate func(ds *dataset.Dataset, row int) (bool, error)

// Build resolves every constraint attribute through the chain and
// constructs the conjunctive predicate. Any attribute that fails to
// resolve aborts the whole construction; there are no partial slices. The
// predicate is a pure function of the constraints, chain, and schema.
func Build(constraints domain.Slice, chain *resolver.Chain, ds *dataset.Dataset) (RowPredicate, error) {
	type test struct {
		column string
		typ    dataset.ColumnType
		want   interface{}
	}

	tests := make([]test, 0, len(constraints))
	for _, c := range constraints {
		column, err := chain.ResolveIn(c.Attribute, "slice")
		if err != nil {
			return nil, err
		}
		col, ok := ds.Column(column)
		if !ok {
			return nil, domain.ErrSchemaMismatch(column, ds.Name())
		}
		want, err := normalize(col.Type, c.Value)
		if err != nil {
			return nil, domain.ErrSpecification("slice constraint %s: %v", c.Attribute, err)
		}
		tests = append(tests, test{column: column, typ: col.Type, want: want})
	}

	return func(d *dataset.Dataset, row int) (bool, error) {
		for _, t := range tests {
			cell := d.Value(row, t.column)
			if cell == nil || cell != t.want {
				return false, nil
			}
		}
		return true, nil
	}, nil
}

// Matched evaluates the predicate over the whole dataset and returns the
// selected row indices in order.
func Matched(pred RowPredicate, ds *dataset.Dataset) ([]int, error) {
	var rows []int
	for i := 0; i < ds.Rows(); i++ {
		ok, err := pred(ds, i)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// normalize checks the constraint value against the column's declared
// type. Exact equality only; the single permitted adjustment is widening
// an integral constant to a float column's type, since structured inputs
// (JSON, YAML) do not distinguish 2 from 2.0.
func normalize(typ dataset.ColumnType, v interface{}) (interface{}, error) {
	switch typ {
	case dataset.Float:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case dataset.Integer:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		}
	case dataset.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case dataset.Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) does not match column type %s", v, v, typ)
}
