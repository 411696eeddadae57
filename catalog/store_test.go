package catalog

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdisc-org/analysis-concepts-sub000/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db))
	return NewStore(db)
}

func TestConceptBindingsKeepTableOrder(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	bindings := []domain.ConceptBinding{
		{SemanticName: "change_value", ClassSymbol: "CHG"},
		{SemanticName: "analysis_value", ClassSymbol: "AVAL"},
		{SemanticName: "baseline_value", ClassSymbol: "BASE"},
	}
	for _, b := range bindings {
		require.NoError(t, store.AddConceptBinding(ctx, b))
	}

	got, err := store.ListConceptBindings(ctx)
	require.NoError(t, err)
	assert.Equal(t, bindings, got)
}

func TestClassBindingUniquePerDataset(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddClassBinding(ctx,
		domain.ClassBinding{ClassSymbol: "CHG", Dataset: "ADLB", StudyVariable: "CHG"}))
	// Same symbol in another dataset is fine.
	require.NoError(t, store.AddClassBinding(ctx,
		domain.ClassBinding{ClassSymbol: "CHG", Dataset: "ADVS", StudyVariable: "CHGVS"}))
	// Second binding within one dataset violates the invariant.
	err := store.AddClassBinding(ctx,
		domain.ClassBinding{ClassSymbol: "CHG", Dataset: "ADLB", StudyVariable: "CHG2"})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestDerivationRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	spec := domain.FormulaSpec{
		ID:         "D_AC_001",
		OutputName: "change_value",
		Expression: "analysis_value - baseline_value",
	}
	require.NoError(t, store.CreateDerivation(ctx, spec))
	require.NoError(t, store.SetSpecDataset(ctx, spec.ID, "ADLB"))

	got, err := store.GetDerivation(ctx, "D_AC_001")
	require.NoError(t, err)
	assert.Equal(t, spec, got)

	ds, err := store.SpecDataset(ctx, "D_AC_001")
	require.NoError(t, err)
	assert.Equal(t, "ADLB", ds)

	_, err = store.GetDerivation(ctx, "D_AC_999")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestAnalysisRoundTripKeepsRoleOrder(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	spec := domain.AnalysisSpec{
		ID:   "A_AC_001",
		Name: "change by treatment",
		Roles: []domain.RoleAssignment{
			{Variable: "change_value", Role: domain.RoleDependent},
			{Variable: "treatment", Role: domain.RoleFactor},
			{Variable: "baseline_value", Role: domain.RoleCovariate},
		},
	}
	require.NoError(t, store.CreateAnalysis(ctx, spec))

	got, err := store.GetAnalysis(ctx, "A_AC_001")
	require.NoError(t, err)
	assert.Equal(t, spec, got)
}

func TestConceptRecordRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	c := domain.AnalysisConcept{
		ID:      "D_AC_001",
		Name:    "Change from Baseline",
		Purpose: "Derive the change from baseline for a continuous endpoint",
		Inputs: []domain.ConceptInput{
			{InputID: "IN_001", Variable: "analysis_value", Role: "input", Required: true, DataType: "Numeric"},
		},
		Outputs: []domain.ConceptOutput{
			{OutputID: "OUT_001", Variable: "change_value", DataType: "Numeric"},
		},
		Status: "Draft",
	}
	require.NoError(t, store.CreateConcept(ctx, c))

	got, err := store.GetConcept(ctx, "D_AC_001")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	list, err := store.ListConcepts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestLoadBindingSetAndChain(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddConceptBinding(ctx,
		domain.ConceptBinding{SemanticName: "change_value", ClassSymbol: "CHG"}))
	require.NoError(t, store.AddClassBinding(ctx,
		domain.ClassBinding{ClassSymbol: "CHG", Dataset: "ADLB", StudyVariable: "CHG"}))
	require.NoError(t, store.AddClassBinding(ctx,
		domain.ClassBinding{ClassSymbol: "CHG", Dataset: "ADVS", StudyVariable: "CHGVS"}))
	require.NoError(t, store.SetSpecDataset(ctx, "D_AC_001", "ADVS"))

	bindings, err := store.LoadBindingSet(ctx)
	require.NoError(t, err)

	dsName, err := bindings.DatasetFor("D_AC_001")
	require.NoError(t, err)
	assert.Equal(t, "ADVS", dsName)

	// The chain is dataset-scoped: CHG resolves differently per dataset.
	got, err := bindings.ChainFor("ADVS", nil).Resolve("change_value")
	require.NoError(t, err)
	assert.Equal(t, "CHGVS", got)

	got, err = bindings.ChainFor("ADLB", nil).Resolve("change_value")
	require.NoError(t, err)
	assert.Equal(t, "CHG", got)
}
