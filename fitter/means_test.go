package fitter

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/domain"
)

func fitData(t *testing.T) *dataset.Dataset {
	t.Helper()
	chg, err := dataset.NewColumn("CHG", dataset.Float,
		[]interface{}{1.0, 3.0, 10.0, 14.0, nil, 5.0})
	require.NoError(t, err)
	trt, err := dataset.NewColumn("TRT01P", dataset.String,
		[]interface{}{"A", "A", "B", "B", "A", nil})
	require.NoError(t, err)

	ds, err := dataset.New("ADLB", chg, trt)
	require.NoError(t, err)
	return ds
}

func modelSpec() domain.ModelSpec {
	return domain.ModelSpec{Dependent: "CHG", Factors: []string{"TRT01P"}}
}

func TestFitGroupEstimates(t *testing.T) {
	res, err := Means{}.Fit(context.Background(), modelSpec(), fitData(t))
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)

	estimates := res.Groups[0]
	assert.Equal(t, "estimates", estimates.Name)
	assert.Equal(t, []string{"TRT01P"}, estimates.Dimensions)
	require.Len(t, estimates.Rows, 2)

	// Rows with a missing dependent or factor cell are excluded.
	a := estimates.Rows[0]
	assert.Equal(t, "A", a.Dims["TRT01P"])
	assert.Equal(t, 2.0, a.Measures["n"])
	assert.Equal(t, 2.0, a.Measures["mean"])
	assert.InDelta(t, math.Sqrt2, a.Measures["sd"], 1e-9)

	b := estimates.Rows[1]
	assert.Equal(t, "B", b.Dims["TRT01P"])
	assert.Equal(t, 12.0, b.Measures["mean"])
}

func TestFitPairwiseContrasts(t *testing.T) {
	res, err := Means{}.Fit(context.Background(), modelSpec(), fitData(t))
	require.NoError(t, err)

	contrasts := res.Groups[1]
	assert.Equal(t, "contrasts", contrasts.Name)
	require.Len(t, contrasts.Rows, 1)

	row := contrasts.Rows[0]
	assert.Equal(t, "A", row.Dims["TRT01P"])
	assert.Equal(t, "B", row.Dims["TRT01P_ref"])
	assert.Equal(t, -10.0, row.Measures["diff"])
}

func TestFitRequiresFactor(t *testing.T) {
	spec := domain.ModelSpec{Dependent: "CHG"}
	_, err := Means{}.Fit(context.Background(), spec, fitData(t))
	require.Error(t, err)
}

func TestFitRequiresNumericDependent(t *testing.T) {
	spec := domain.ModelSpec{Dependent: "TRT01P", Factors: []string{"TRT01P"}}
	_, err := Means{}.Fit(context.Background(), spec, fitData(t))
	require.Error(t, err)
}

func TestFitNoUsableRows(t *testing.T) {
	chg, err := dataset.NewColumn("CHG", dataset.Float, []interface{}{nil, nil})
	require.NoError(t, err)
	trt, err := dataset.NewColumn("TRT01P", dataset.String, []interface{}{"A", "B"})
	require.NoError(t, err)
	ds, err := dataset.New("ADLB", chg, trt)
	require.NoError(t, err)

	_, err = Means{}.Fit(context.Background(), modelSpec(), ds)
	require.Error(t, err)
}
