package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/domain"
	"github.com/cdisc-org/analysis-concepts-sub000/resolver"
)

// labDataset builds 100 rows; rows 0-41 carry PARAMCD=X and ANLFL=Y and
// match the standard test slice, the remaining 58 do not.
func labDataset(t *testing.T) *dataset.Dataset {
	t.Helper()

	const rows = 100
	aval := make([]interface{}, rows)
	base := make([]interface{}, rows)
	param := make([]interface{}, rows)
	flag := make([]interface{}, rows)
	for i := 0; i < rows; i++ {
		aval[i] = float64(i) + 10.0
		base[i] = 10.0
		if i < 42 {
			param[i] = "X"
			flag[i] = "Y"
		} else if i < 70 {
			param[i] = "X"
			flag[i] = "N"
		} else {
			param[i] = "Y"
			flag[i] = "Y"
		}
	}

	cols := make([]*dataset.Column, 0, 4)
	for _, spec := range []struct {
		name  string
		typ   dataset.ColumnType
		cells []interface{}
	}{
		{"AVAL", dataset.Float, aval},
		{"BASE", dataset.Float, base},
		{"PARAMCD", dataset.String, param},
		{"ANLFL", dataset.String, flag},
	} {
		col, err := dataset.NewColumn(spec.name, spec.typ, spec.cells)
		require.NoError(t, err)
		cols = append(cols, col)
	}
	ds, err := dataset.New("ADLB", cols...)
	require.NoError(t, err)
	return ds
}

func labChain() *resolver.Chain {
	concepts := resolver.NewLayer("concepts", nil,
		"change_value", "CHG",
		"analysis_value", "AVAL",
		"baseline_value", "BASE",
		"parameter", "PARAM",
		"analysis_flag", "ANLFL",
	)
	classes := resolver.NewLayer("class:ADLB", nil,
		"CHG", "CHG",
		"AVAL", "AVAL",
		"BASE", "BASE",
		"PARAM", "PARAMCD",
		"ANLFL", "ANLFL",
	)
	return resolver.NewChain(concepts, classes)
}

func changeSpec() domain.FormulaSpec {
	return domain.FormulaSpec{
		ID:         "D_AC_001",
		OutputName: "change_value",
		Expression: "analysis_value - baseline_value",
	}
}

func labSlice() domain.Slice {
	return domain.Slice{
		{Attribute: "parameter", Value: "X"},
		{Attribute: "analysis_flag", Value: "Y"},
	}
}

func TestExecuteDerivationMatchedAndUnmatched(t *testing.T) {
	e := New(nil, nil)
	ds := labDataset(t)

	out, err := e.ExecuteDerivation(context.Background(), changeSpec(), labSlice(), ds, labChain())
	require.NoError(t, err)

	col, ok := out.Column("CHG")
	require.True(t, ok, "resolved output column CHG must exist")
	assert.Equal(t, dataset.Float, col.Type)

	computed, missing := 0, 0
	for i := 0; i < out.Rows(); i++ {
		if col.Value(i) == nil {
			missing++
		} else {
			computed++
			assert.Equal(t, float64(i), col.Value(i), "row %d", i)
		}
	}
	assert.Equal(t, 42, computed)
	assert.Equal(t, 58, missing)

	// The input dataset is untouched.
	assert.False(t, ds.HasColumn("CHG"))
}

func TestExecuteDerivationEmptySliceComputesAllRows(t *testing.T) {
	e := New(nil, nil)
	ds := labDataset(t)

	out, err := e.ExecuteDerivation(context.Background(), changeSpec(), nil, ds, labChain())
	require.NoError(t, err)

	col, _ := out.Column("CHG")
	for i := 0; i < out.Rows(); i++ {
		require.NotNil(t, col.Value(i), "row %d", i)
	}
}

func TestExecuteDerivationZeroMatchedRowsIsNotAnError(t *testing.T) {
	e := New(nil, nil)
	ds := labDataset(t)
	sl := domain.Slice{{Attribute: "parameter", Value: "Z"}}

	out, err := e.ExecuteDerivation(context.Background(), changeSpec(), sl, ds, labChain())
	require.NoError(t, err)

	col, _ := out.Column("CHG")
	for i := 0; i < out.Rows(); i++ {
		require.Nil(t, col.Value(i), "row %d", i)
	}
}

func TestExecuteDerivationUnresolvedSliceAttribute(t *testing.T) {
	e := New(nil, nil)
	sl := domain.Slice{{Attribute: "population_flag", Value: "Y"}}

	_, err := e.ExecuteDerivation(context.Background(), changeSpec(), sl, labDataset(t), labChain())
	require.Error(t, err)

	var unresolved *domain.UnresolvedSymbolError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "population_flag", unresolved.Token)
}

func TestExecuteDerivationSchemaMismatch(t *testing.T) {
	e := New(nil, nil)
	chain := resolver.NewChain(
		resolver.NewLayer("concepts", nil,
			"change_value", "CHG",
			"analysis_value", "AVAL",
			"baseline_value", "BL2"),
		resolver.NewLayer("class:ADLB", nil,
			"CHG", "CHG", "AVAL", "AVAL", "BL2", "BL2"),
	)

	_, err := e.ExecuteDerivation(context.Background(), changeSpec(), nil, labDataset(t), chain)
	require.Error(t, err)

	var mismatch *domain.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "BL2", mismatch.Column)
}

func TestExecuteDerivationMissingInputPropagates(t *testing.T) {
	aval, err := dataset.NewColumn("AVAL", dataset.Float, []interface{}{1.0, nil, 3.0})
	require.NoError(t, err)
	base, err := dataset.NewColumn("BASE", dataset.Float, []interface{}{1.0, 1.0, nil})
	require.NoError(t, err)
	ds, err := dataset.New("ADLB", aval, base)
	require.NoError(t, err)

	e := New(nil, nil)
	out, err := e.ExecuteDerivation(context.Background(), changeSpec(), nil, ds, labChain())
	require.NoError(t, err)

	col, _ := out.Column("CHG")
	assert.Equal(t, 0.0, col.Value(0))
	assert.Nil(t, col.Value(1))
	assert.Nil(t, col.Value(2))
}

func TestExecuteDerivationOutputColumnCollision(t *testing.T) {
	e := New(nil, nil)
	ds := labDataset(t)
	spec := domain.FormulaSpec{
		ID:         "D_AC_002",
		OutputName: "analysis_value", // resolves to the existing AVAL
		Expression: "baseline_value * 2",
	}

	_, err := e.ExecuteDerivation(context.Background(), spec, nil, ds, labChain())
	require.Error(t, err)

	var specErr *domain.SpecificationError
	assert.ErrorAs(t, err, &specErr)
}

func TestRunBatchIndependentDerivations(t *testing.T) {
	e := New(nil, nil)
	ds := labDataset(t)

	reqs := []DerivationRequest{
		{Spec: changeSpec(), Slice: labSlice()},
		{Spec: domain.FormulaSpec{
			ID:         "D_AC_003",
			OutputName: "PCHG",
			Expression: "(analysis_value - baseline_value) / baseline_value * 100",
		}},
	}
	// PCHG has no binding; it must be registered to resolve.
	chain := resolver.NewChain(
		resolver.NewLayer("concepts", nil,
			"change_value", "CHG",
			"analysis_value", "AVAL",
			"baseline_value", "BASE",
			"parameter", "PARAM",
			"analysis_flag", "ANLFL"),
		resolver.NewLayer("class:ADLB", nil,
			"CHG", "CHG", "AVAL", "AVAL", "BASE", "BASE",
			"PARAM", "PARAMCD", "ANLFL", "ANLFL", "PCHG", "PCHG"),
	)

	results, err := e.RunBatch(context.Background(), reqs, ds, chain)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].HasColumn("CHG"))
	assert.False(t, results[0].HasColumn("PCHG"))
	assert.True(t, results[1].HasColumn("PCHG"))
	assert.False(t, results[1].HasColumn("CHG"))
}

func TestRunBatchFirstErrorAborts(t *testing.T) {
	e := New(nil, nil)
	reqs := []DerivationRequest{
		{Spec: changeSpec()},
		{Spec: domain.FormulaSpec{ID: "bad", OutputName: "CHG", Expression: "no_such_thing"}},
	}

	_, err := e.RunBatch(context.Background(), reqs, labDataset(t), labChain())
	require.Error(t, err)

	var unresolved *domain.UnresolvedSymbolError
	assert.ErrorAs(t, err, &unresolved)
}
