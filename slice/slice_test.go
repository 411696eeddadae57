package slice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/domain"
	"github.com/cdisc-org/analysis-concepts-sub000/resolver"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	param, err := dataset.NewColumn("PARAMCD", dataset.String,
		[]interface{}{"X", "X", "Y", "X", nil})
	require.NoError(t, err)
	flag, err := dataset.NewColumn("ANLFL", dataset.String,
		[]interface{}{"Y", "N", "Y", "Y", "Y"})
	require.NoError(t, err)
	visit, err := dataset.NewColumn("AVISITN", dataset.Integer,
		[]interface{}{int64(1), int64(1), int64(2), int64(2), int64(1)})
	require.NoError(t, err)

	ds, err := dataset.New("ADLB", param, flag, visit)
	require.NoError(t, err)
	return ds
}

func testChain() *resolver.Chain {
	concepts := resolver.NewLayer("concepts", nil,
		"parameter", "PARAM",
		"analysis_flag", "ANLFL",
	)
	classes := resolver.NewLayer("class:ADLB", nil,
		"PARAM", "PARAMCD",
		"ANLFL", "ANLFL",
		"AVISITN", "AVISITN",
	)
	return resolver.NewChain(concepts, classes)
}

func TestEmptySliceMatchesAllRows(t *testing.T) {
	ds := testDataset(t)
	pred, err := Build(nil, testChain(), ds)
	require.NoError(t, err)

	matched, err := Matched(pred, ds)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, matched)
}

func TestConjunctiveSemantics(t *testing.T) {
	ds := testDataset(t)
	constraints := domain.Slice{
		{Attribute: "parameter", Value: "X"},
		{Attribute: "analysis_flag", Value: "Y"},
	}

	pred, err := Build(constraints, testChain(), ds)
	require.NoError(t, err)

	matched, err := Matched(pred, ds)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, matched)
}

func TestMissingCellNeverMatches(t *testing.T) {
	ds := testDataset(t)
	pred, err := Build(domain.Slice{{Attribute: "parameter", Value: "X"}}, testChain(), ds)
	require.NoError(t, err)

	ok, err := pred(ds, 4)
	require.NoError(t, err)
	assert.False(t, ok, "row with missing PARAMCD must not match")
}

func TestBuildIsIdempotent(t *testing.T) {
	ds := testDataset(t)
	constraints := domain.Slice{{Attribute: "AVISITN", Value: int64(1)}}

	first, err := Build(constraints, testChain(), ds)
	require.NoError(t, err)
	second, err := Build(constraints, testChain(), ds)
	require.NoError(t, err)

	m1, err := Matched(first, ds)
	require.NoError(t, err)
	m2, err := Matched(second, ds)
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
}

func TestUnresolvedAttributeAbortsConstruction(t *testing.T) {
	ds := testDataset(t)
	constraints := domain.Slice{
		{Attribute: "parameter", Value: "X"},
		{Attribute: "population_flag", Value: "Y"},
	}

	_, err := Build(constraints, testChain(), ds)
	require.Error(t, err)

	var unresolved *domain.UnresolvedSymbolError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "population_flag", unresolved.Token)
}

func TestResolvedColumnMissingFromSchema(t *testing.T) {
	ds := testDataset(t)
	chain := resolver.NewChain(
		resolver.NewLayer("concepts", nil, "dose", "TRTDOSE"),
		resolver.NewLayer("class:ADLB", nil, "TRTDOSE", "TRTDOSE"),
	)

	_, err := Build(domain.Slice{{Attribute: "dose", Value: 10}}, chain, ds)
	require.Error(t, err)

	var mismatch *domain.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "TRTDOSE", mismatch.Column)
}

func TestConstraintTypeMismatch(t *testing.T) {
	ds := testDataset(t)
	_, err := Build(domain.Slice{{Attribute: "parameter", Value: 7}}, testChain(), ds)
	require.Error(t, err)

	var specErr *domain.SpecificationError
	assert.ErrorAs(t, err, &specErr)
}

func TestJSONNumberMatchesIntegerColumn(t *testing.T) {
	// Structured inputs decode numbers as float64; an integral constant
	// must still match an integer column exactly.
	ds := testDataset(t)
	pred, err := Build(domain.Slice{{Attribute: "AVISITN", Value: float64(2)}}, testChain(), ds)
	require.NoError(t, err)

	matched, err := Matched(pred, ds)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, matched)
}
